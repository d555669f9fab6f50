package editor

import (
	"fmt"
	"strconv"
	"strings"

	"resumeCraft/internal/resume"
)

var profileFields = map[string]func(*resume.Profile) *string{
	"fullName":    func(p *resume.Profile) *string { return &p.FullName },
	"designation": func(p *resume.Profile) *string { return &p.Designation },
	"summary":     func(p *resume.Profile) *string { return &p.Summary },
	"photoUrl":    func(p *resume.Profile) *string { return &p.PhotoURL },
}

var contactFields = map[string]func(*resume.Contact) *string{
	"email":    func(c *resume.Contact) *string { return &c.Email },
	"phone":    func(c *resume.Contact) *string { return &c.Phone },
	"location": func(c *resume.Contact) *string { return &c.Location },
	"linkedIn": func(c *resume.Contact) *string { return &c.LinkedIn },
	"github":   func(c *resume.Contact) *string { return &c.GitHub },
	"website":  func(c *resume.Contact) *string { return &c.Website },
}

var experienceFields = map[string]func(*resume.Experience) *string{
	"company":     func(e *resume.Experience) *string { return &e.Company },
	"role":        func(e *resume.Experience) *string { return &e.Role },
	"startDate":   func(e *resume.Experience) *string { return &e.StartDate },
	"endDate":     func(e *resume.Experience) *string { return &e.EndDate },
	"description": func(e *resume.Experience) *string { return &e.Description },
}

var educationFields = map[string]func(*resume.Education) *string{
	"institution": func(e *resume.Education) *string { return &e.Institution },
	"degree":      func(e *resume.Education) *string { return &e.Degree },
	"startDate":   func(e *resume.Education) *string { return &e.StartDate },
	"endDate":     func(e *resume.Education) *string { return &e.EndDate },
}

var projectFields = map[string]func(*resume.Project) *string{
	"name":        func(p *resume.Project) *string { return &p.Name },
	"description": func(p *resume.Project) *string { return &p.Description },
	"repoLink":    func(p *resume.Project) *string { return &p.RepoLink },
	"demoLink":    func(p *resume.Project) *string { return &p.DemoLink },
}

var certificationFields = map[string]func(*resume.Certification) *string{
	"title":          func(c *resume.Certification) *string { return &c.Title },
	"issuer":         func(c *resume.Certification) *string { return &c.Issuer },
	"issueDate":      func(c *resume.Certification) *string { return &c.IssueDate },
	"credentialLink": func(c *resume.Certification) *string { return &c.CredentialLink },
}

// ParsePath 把 "experience.1.company" 这类 UI 绑定路径解析为 Lens。
// 只做语法与字段名校验，下标越界在 Set 时按当前文档判定。
func ParsePath(path string) (Lens, error) {
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return Lens{}, invalidPath(path, "empty segment")
		}
	}

	head := segs[0]
	switch head {
	case "title":
		if len(segs) != 1 {
			return Lens{}, invalidPath(path, "title is a leaf")
		}
		return TitleLens(), nil
	case "profile":
		return objectLens(path, segs, profileFields, ProfileLens)
	case "contact":
		return objectLens(path, segs, contactFields, ContactLens)
	case "template":
		return Lens{}, invalidPath(path, "template is changed through setTemplate or setColorPalette")
	}

	section, err := resume.ParseSection(head)
	if err != nil {
		return Lens{}, invalidPath(path, "unknown root "+strconv.Quote(head))
	}
	if len(segs) < 2 {
		return Lens{}, invalidPath(path, "missing index")
	}
	idx, err := strconv.Atoi(segs[1])
	if err != nil || idx < 0 {
		return Lens{}, invalidPath(path, "index must be a non-negative integer")
	}

	if section == resume.SectionInterests {
		if len(segs) != 2 {
			return Lens{}, invalidPath(path, "interests entries are plain strings")
		}
		return InterestLens(idx), nil
	}
	if len(segs) != 3 {
		return Lens{}, invalidPath(path, "expected section.index.field")
	}
	field := segs[2]

	switch section {
	case resume.SectionExperience:
		return elemField(path, idx, field, experienceFields, ExperienceLens)
	case resume.SectionEducation:
		return elemField(path, idx, field, educationFields, EducationLens)
	case resume.SectionProjects:
		return elemField(path, idx, field, projectFields, ProjectLens)
	case resume.SectionCertifications:
		return elemField(path, idx, field, certificationFields, CertificationLens)
	case resume.SectionSkills:
		switch field {
		case "name":
			return SkillNameLens(idx), nil
		case "level":
			return SkillLevelLens(idx), nil
		}
	case resume.SectionLanguages:
		switch field {
		case "name":
			return LanguageNameLens(idx), nil
		case "level":
			return LanguageLevelLens(idx), nil
		}
	}
	return Lens{}, invalidPath(path, "unknown field "+strconv.Quote(field))
}

// SetField 是 ParsePath 与 Set 的组合。
func SetField(doc resume.Document, path string, value any) (resume.Document, error) {
	lens, err := ParsePath(path)
	if err != nil {
		return doc, err
	}
	return Set(doc, lens, value)
}

func objectLens[T any](path string, segs []string, fields map[string]func(*T) *string, mk func(string, func(*T) *string) Lens) (Lens, error) {
	if len(segs) != 2 {
		return Lens{}, invalidPath(path, "expected "+segs[0]+".field")
	}
	f, ok := fields[segs[1]]
	if !ok {
		return Lens{}, invalidPath(path, "unknown field "+strconv.Quote(segs[1]))
	}
	return mk(segs[1], f), nil
}

func elemField[T any](path string, idx int, name string, fields map[string]func(*T) *string, mk func(int, string, func(*T) *string) Lens) (Lens, error) {
	f, ok := fields[name]
	if !ok {
		return Lens{}, invalidPath(path, "unknown field "+strconv.Quote(name))
	}
	return mk(idx, name, f), nil
}

func invalidPath(path, reason string) error {
	return fmt.Errorf("%w: %q: %s", resume.ErrInvalidPath, path, reason)
}
