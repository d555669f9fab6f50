package resume

import "fmt"

// Section 标识文档中的有序列表分区，取值与 JSON 字段名一致。
type Section string

const (
	SectionExperience     Section = "experience"
	SectionEducation      Section = "education"
	SectionSkills         Section = "skills"
	SectionProjects       Section = "projects"
	SectionCertifications Section = "certifications"
	SectionLanguages      Section = "languages"
	SectionInterests      Section = "interests"
)

// Sections 按展示顺序列出全部分区。
func Sections() []Section {
	return []Section{
		SectionExperience,
		SectionEducation,
		SectionSkills,
		SectionProjects,
		SectionCertifications,
		SectionLanguages,
		SectionInterests,
	}
}

// ParseSection 把分区名解析为 Section。
func ParseSection(name string) (Section, error) {
	for _, s := range Sections() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown section %q", ErrInvalidPath, name)
}

// Len 返回分区当前的元素个数。
func (d Document) Len(s Section) int {
	switch s {
	case SectionExperience:
		return len(d.Experience)
	case SectionEducation:
		return len(d.Education)
	case SectionSkills:
		return len(d.Skills)
	case SectionProjects:
		return len(d.Projects)
	case SectionCertifications:
		return len(d.Certifications)
	case SectionLanguages:
		return len(d.Languages)
	case SectionInterests:
		return len(d.Interests)
	default:
		return 0
	}
}
