// Package editor applies single field-level or list-level edits to a resume
// document. Every operation works on a clone and returns the new value; the
// input document is never modified and is returned unchanged on error.
package editor

import (
	"encoding/json"
	"fmt"
	"math"

	"resumeCraft/internal/resume"
)

// Lens 指向文档中的一个标量叶子字段。
type Lens struct {
	path  string
	focus func(d *resume.Document) (leaf, error)
}

// Path 返回点号加下标形式的路径，如 "experience.1.role"。
func (l Lens) Path() string { return l.path }

// Get 读取叶子的当前值：字符串或等级整数。
func (l Lens) Get(doc resume.Document) (any, error) {
	lf, err := l.focus(&doc)
	if err != nil {
		return nil, err
	}
	if lf.str != nil {
		return *lf.str, nil
	}
	return *lf.num, nil
}

// Set 替换 lens 指向的叶子并返回新文档；失败时原样返回 doc。
func Set(doc resume.Document, lens Lens, value any) (resume.Document, error) {
	if lens.focus == nil {
		return doc, fmt.Errorf("%w: empty lens", resume.ErrInvalidPath)
	}
	next := doc.Clone()
	lf, err := lens.focus(&next)
	if err != nil {
		return doc, err
	}
	if err := lf.assign(lens.path, value); err != nil {
		return doc, err
	}
	return next, nil
}

// leaf 恰好指向一个字符串字段或一个等级字段。
type leaf struct {
	str *string
	num *int
}

func strLeaf(p *string) leaf { return leaf{str: p} }
func levelLeaf(p *int) leaf  { return leaf{num: p} }

func (l leaf) assign(path string, value any) error {
	if l.str != nil {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s expects a string, got %T", resume.ErrInvalidValue, path, value)
		}
		*l.str = s
		return nil
	}

	n, err := toLevel(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", resume.ErrInvalidValue, path, err)
	}
	*l.num = n
	return nil
}

// toLevel 接受 JSON 解码后常见的数值类型，并要求是 [0,100] 内的整数。
func toLevel(value any) (int, error) {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("level %q is not a number", v.String())
		}
		f = parsed
	default:
		return 0, fmt.Errorf("level must be a number, got %T", value)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("level %v is not an integer", f)
	}
	if f < 0 || f > 100 {
		return 0, fmt.Errorf("level %v outside [0,100]", f)
	}
	return int(f), nil
}

// TitleLens 指向文档标题。
func TitleLens() Lens {
	return Lens{path: "title", focus: func(d *resume.Document) (leaf, error) {
		return strLeaf(&d.Title), nil
	}}
}

// ProfileLens 指向 profile 下的一个字段。
func ProfileLens(name string, field func(*resume.Profile) *string) Lens {
	return Lens{path: "profile." + name, focus: func(d *resume.Document) (leaf, error) {
		return strLeaf(field(&d.Profile)), nil
	}}
}

// ContactLens 指向 contact 下的一个字段。
func ContactLens(name string, field func(*resume.Contact) *string) Lens {
	return Lens{path: "contact." + name, focus: func(d *resume.Document) (leaf, error) {
		return strLeaf(field(&d.Contact)), nil
	}}
}

// ExperienceLens 指向第 i 段工作经历的一个字段。
func ExperienceLens(i int, name string, field func(*resume.Experience) *string) Lens {
	return elemLens(resume.SectionExperience, i, name, func(d *resume.Document) []resume.Experience { return d.Experience },
		func(e *resume.Experience) leaf { return strLeaf(field(e)) })
}

// EducationLens 指向第 i 段教育经历的一个字段。
func EducationLens(i int, name string, field func(*resume.Education) *string) Lens {
	return elemLens(resume.SectionEducation, i, name, func(d *resume.Document) []resume.Education { return d.Education },
		func(e *resume.Education) leaf { return strLeaf(field(e)) })
}

// ProjectLens 指向第 i 个项目的一个字段。
func ProjectLens(i int, name string, field func(*resume.Project) *string) Lens {
	return elemLens(resume.SectionProjects, i, name, func(d *resume.Document) []resume.Project { return d.Projects },
		func(p *resume.Project) leaf { return strLeaf(field(p)) })
}

// CertificationLens 指向第 i 个证书的一个字段。
func CertificationLens(i int, name string, field func(*resume.Certification) *string) Lens {
	return elemLens(resume.SectionCertifications, i, name, func(d *resume.Document) []resume.Certification { return d.Certifications },
		func(c *resume.Certification) leaf { return strLeaf(field(c)) })
}

// SkillNameLens 指向第 i 项技能的名称。
func SkillNameLens(i int) Lens {
	return elemLens(resume.SectionSkills, i, "name", func(d *resume.Document) []resume.Skill { return d.Skills },
		func(s *resume.Skill) leaf { return strLeaf(&s.Name) })
}

// SkillLevelLens 指向第 i 项技能的等级，取值 [0,100]。
func SkillLevelLens(i int) Lens {
	return elemLens(resume.SectionSkills, i, "level", func(d *resume.Document) []resume.Skill { return d.Skills },
		func(s *resume.Skill) leaf { return levelLeaf(&s.Level) })
}

// LanguageNameLens 指向第 i 种语言的名称。
func LanguageNameLens(i int) Lens {
	return elemLens(resume.SectionLanguages, i, "name", func(d *resume.Document) []resume.Language { return d.Languages },
		func(l *resume.Language) leaf { return strLeaf(&l.Name) })
}

// LanguageLevelLens 指向第 i 种语言的等级。
func LanguageLevelLens(i int) Lens {
	return elemLens(resume.SectionLanguages, i, "level", func(d *resume.Document) []resume.Language { return d.Languages },
		func(l *resume.Language) leaf { return levelLeaf(&l.Level) })
}

// InterestLens 指向第 i 个兴趣。
func InterestLens(i int) Lens {
	return Lens{path: fmt.Sprintf("interests.%d", i), focus: func(d *resume.Document) (leaf, error) {
		if i < 0 || i >= len(d.Interests) {
			return leaf{}, fmt.Errorf("%w: interests index %d out of bounds (len %d)", resume.ErrInvalidPath, i, len(d.Interests))
		}
		return strLeaf(&d.Interests[i]), nil
	}}
}

// elemLens 在访问时才检查下标，越界返回 ErrInvalidPath，不会补齐元素。
func elemLens[T any](section resume.Section, i int, name string, list func(*resume.Document) []T, field func(*T) leaf) Lens {
	return Lens{
		path: fmt.Sprintf("%s.%d.%s", section, i, name),
		focus: func(d *resume.Document) (leaf, error) {
			items := list(d)
			if i < 0 || i >= len(items) {
				return leaf{}, fmt.Errorf("%w: %s index %d out of bounds (len %d)", resume.ErrInvalidPath, section, i, len(items))
			}
			return field(&items[i]), nil
		},
	}
}
