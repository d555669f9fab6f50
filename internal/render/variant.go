package render

import (
	"fmt"

	"resumeCraft/internal/resume"
)

// Variant 是三种固定版式之一：Classic、TwoColumn、Bold。
// compose 未导出，其他包无法新增实现。
type Variant interface {
	ThemeID() string
	Name() string
	compose(doc resume.Document, colors Colors) Layout
}

// 三种版式分别对应主题 01、02、03。
type Classic struct{}
type TwoColumn struct{}
type Bold struct{}

func (Classic) ThemeID() string   { return resume.ThemeClassic }
func (TwoColumn) ThemeID() string { return resume.ThemeTwoColumn }
func (Bold) ThemeID() string      { return resume.ThemeBold }

func (Classic) Name() string   { return "classic" }
func (TwoColumn) Name() string { return "two-column" }
func (Bold) Name() string      { return "bold" }

// VariantFor 按主题 ID 选择版式，未注册的 ID 返回 ErrUnknownTemplate。
func VariantFor(themeID string) (Variant, error) {
	switch themeID {
	case resume.ThemeClassic:
		return Classic{}, nil
	case resume.ThemeTwoColumn:
		return TwoColumn{}, nil
	case resume.ThemeBold:
		return Bold{}, nil
	}
	return nil, fmt.Errorf("%w: %q", resume.ErrUnknownTemplate, themeID)
}

// Minimal Classic：单栏，居中抬头。
func (v Classic) compose(doc resume.Document, colors Colors) Layout {
	return Layout{
		ThemeID: v.ThemeID(),
		Variant: v.Name(),
		Font:    "Georgia, serif",
		Colors:  colors,
		Header:  header(doc, HeaderCentered),
		Columns: []Column{{
			Name:     "main",
			WidthPct: 100,
			Blocks: collect(doc,
				titled("Professional Summary", summaryBlock),
				titled("Experience", experienceBlock),
				titled("Education", educationBlock),
				leveled("Skills", IndicatorBar, skillsBlock),
				titled("Projects", projectsBlock),
				titled("Certifications", certificationsBlock),
				leveled("Languages", IndicatorBar, languagesBlock),
				titled("Interests", interestsBlock),
			),
		}},
	}
}

// Modern Two-Column：左侧 35% 着色侧栏放抬头与技能类分区。
func (v TwoColumn) compose(doc resume.Document, colors Colors) Layout {
	return Layout{
		ThemeID: v.ThemeID(),
		Variant: v.Name(),
		Font:    "'Inter', 'Segoe UI', sans-serif",
		Colors:  colors,
		Header:  header(doc, HeaderSidebar),
		Columns: []Column{
			{
				Name:     "sidebar",
				WidthPct: 35,
				Shaded:   true,
				Blocks: collect(doc,
					leveled("Skills", IndicatorPercent, skillsBlock),
					leveled("Languages", IndicatorPercent, languagesBlock),
					titled("Interests", interestsBlock),
				),
			},
			{
				Name:     "main",
				WidthPct: 65,
				Blocks: collect(doc,
					titled("About Me", summaryBlock),
					titled("Experience", experienceBlock),
					titled("Education", educationBlock),
					titled("Projects", projectsBlock),
					titled("Certifications", certificationsBlock),
				),
			},
		},
	}
}

// Creative Bold：渐变横幅抬头，摘要在上，正文两等分栏。
func (v Bold) compose(doc resume.Document, colors Colors) Layout {
	return Layout{
		ThemeID: v.ThemeID(),
		Variant: v.Name(),
		Font:    "'Montserrat', 'Segoe UI', sans-serif",
		Colors:  colors,
		Header:  header(doc, HeaderBanner),
		Columns: []Column{
			{
				Name:     "left",
				WidthPct: 50,
				Blocks: collect(doc,
					titled("Summary", summaryBlock),
					titled("Experience", experienceBlock),
					titled("Projects", projectsBlock),
				),
			},
			{
				Name:     "right",
				WidthPct: 50,
				Blocks: collect(doc,
					titled("Education", educationBlock),
					leveled("Skills", IndicatorDots, skillsBlock),
					titled("Certifications", certificationsBlock),
					leveled("Languages", IndicatorBar, languagesBlock),
					titled("Interests", interestsBlock),
				),
			},
		},
	}
}
