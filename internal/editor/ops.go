package editor

import (
	"encoding/json"
	"fmt"

	"resumeCraft/internal/resume"
)

// AppendItem 在分区末尾追加一项。item 为 nil 时追加零值元素；
// 类型必须与分区元素类型一致（值或指针均可）。
func AppendItem(doc resume.Document, section resume.Section, item any) (resume.Document, error) {
	next := doc.Clone()
	var err error
	switch section {
	case resume.SectionExperience:
		next.Experience, err = appendTyped(next.Experience, section, item)
	case resume.SectionEducation:
		next.Education, err = appendTyped(next.Education, section, item)
	case resume.SectionSkills:
		var s resume.Skill
		if s, err = coerce[resume.Skill](section, item); err == nil {
			err = checkLevel(section, s.Level)
			next.Skills = append(next.Skills, s)
		}
	case resume.SectionProjects:
		next.Projects, err = appendTyped(next.Projects, section, item)
	case resume.SectionCertifications:
		next.Certifications, err = appendTyped(next.Certifications, section, item)
	case resume.SectionLanguages:
		var l resume.Language
		if l, err = coerce[resume.Language](section, item); err == nil {
			err = checkLevel(section, l.Level)
			next.Languages = append(next.Languages, l)
		}
	case resume.SectionInterests:
		next.Interests, err = appendTyped(next.Interests, section, item)
	default:
		err = fmt.Errorf("%w: unknown section %q", resume.ErrInvalidPath, section)
	}
	if err != nil {
		return doc, err
	}
	return next, nil
}

// RemoveItem 删除分区中 index 位置的元素。
func RemoveItem(doc resume.Document, section resume.Section, index int) (resume.Document, error) {
	if _, err := resume.ParseSection(string(section)); err != nil {
		return doc, err
	}
	n := doc.Len(section)
	if index < 0 || index >= n {
		return doc, fmt.Errorf("%w: %s index %d, len %d", resume.ErrIndexOutOfRange, section, index, n)
	}

	next := doc.Clone()
	switch section {
	case resume.SectionExperience:
		next.Experience = removeAt(next.Experience, index)
	case resume.SectionEducation:
		next.Education = removeAt(next.Education, index)
	case resume.SectionSkills:
		next.Skills = removeAt(next.Skills, index)
	case resume.SectionProjects:
		next.Projects = removeAt(next.Projects, index)
	case resume.SectionCertifications:
		next.Certifications = removeAt(next.Certifications, index)
	case resume.SectionLanguages:
		next.Languages = removeAt(next.Languages, index)
	case resume.SectionInterests:
		next.Interests = removeAt(next.Interests, index)
	}
	return next, nil
}

// SetTemplate 切换主题。colors 为空时使用该主题的第一个默认配色。
// 只改 template 字段，分区内容不受影响。
func SetTemplate(doc resume.Document, themeID string, colors []string) (resume.Document, error) {
	theme, ok := resume.LookupTheme(themeID)
	if !ok {
		return doc, fmt.Errorf("%w: %q", resume.ErrUnknownTemplate, themeID)
	}
	palette := theme.DefaultPalette()
	if colors != nil {
		p, err := resume.ParsePalette(colors)
		if err != nil {
			return doc, err
		}
		palette = p
	}

	next := doc.Clone()
	next.Template = resume.Template{ThemeID: theme.ID, ColorPalette: palette.Slice()}
	return next, nil
}

// SetColorPalette 要求恰好三个颜色。
func SetColorPalette(doc resume.Document, colors []string) (resume.Document, error) {
	p, err := resume.ParsePalette(colors)
	if err != nil {
		return doc, err
	}
	next := doc.Clone()
	next.Template.ColorPalette = p.Slice()
	return next, nil
}

// DecodeItem 把 JSON 表示的分区元素解码为对应的 Go 类型，供 AppendItem 使用。
// 空输入得到零值元素。
func DecodeItem(section resume.Section, raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch section {
	case resume.SectionExperience:
		return decodeAs[resume.Experience](section, raw)
	case resume.SectionEducation:
		return decodeAs[resume.Education](section, raw)
	case resume.SectionSkills:
		return decodeAs[resume.Skill](section, raw)
	case resume.SectionProjects:
		return decodeAs[resume.Project](section, raw)
	case resume.SectionCertifications:
		return decodeAs[resume.Certification](section, raw)
	case resume.SectionLanguages:
		return decodeAs[resume.Language](section, raw)
	case resume.SectionInterests:
		return decodeAs[string](section, raw)
	}
	return nil, fmt.Errorf("%w: unknown section %q", resume.ErrInvalidPath, section)
}

func decodeAs[T any](section resume.Section, raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %s item: %v", resume.ErrInvalidValue, section, err)
	}
	return v, nil
}

func appendTyped[T any](list []T, section resume.Section, item any) ([]T, error) {
	v, err := coerce[T](section, item)
	if err != nil {
		return list, err
	}
	return append(list, v), nil
}

func coerce[T any](section resume.Section, item any) (T, error) {
	var zero T
	switch v := item.(type) {
	case nil:
		return zero, nil
	case T:
		return v, nil
	case *T:
		if v == nil {
			return zero, nil
		}
		return *v, nil
	}
	return zero, fmt.Errorf("%w: %s expects %T, got %T", resume.ErrInvalidValue, section, zero, item)
}

func checkLevel(section resume.Section, level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("%w: %s level %d outside [0,100]", resume.ErrInvalidValue, section, level)
	}
	return nil
}

// removeAt 返回新切片，不复用原底层数组，避免旧快照被改写。
func removeAt[T any](list []T, i int) []T {
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
