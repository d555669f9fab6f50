package render

import (
	"math"
	"strings"

	"resumeCraft/internal/resume"
)

const sectionSummary = "summary"

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func orPlaceholder(s, placeholder string) string {
	if blank(s) {
		return placeholder
	}
	return s
}

func period(start, end string) string {
	switch {
	case blank(start) && blank(end):
		return ""
	case blank(end):
		return start + " - Present"
	case blank(start):
		return end
	}
	return start + " - " + end
}

func header(doc resume.Document, style HeaderStyle) Header {
	h := Header{
		Style:    style,
		Name:     orPlaceholder(doc.Profile.FullName, PlaceholderName),
		Title:    orPlaceholder(doc.Profile.Designation, PlaceholderTitle),
		PhotoURL: strings.TrimSpace(doc.Profile.PhotoURL),
	}
	c := doc.Contact
	for _, line := range []ContactLine{
		{"email", c.Email},
		{"phone", c.Phone},
		{"location", c.Location},
		{"linkedIn", c.LinkedIn},
		{"github", c.GitHub},
		{"website", c.Website},
	} {
		if !blank(line.Value) {
			h.Contacts = append(h.Contacts, line)
		}
	}
	return h
}

func level(percent int, style IndicatorStyle) *Level {
	percent = min(max(percent, 0), 100)
	l := &Level{Percent: percent, Style: style}
	if style == IndicatorDots {
		filled := int(math.Round(float64(percent) / (100.0 / dotCount)))
		l.Dots = make([]bool, dotCount)
		for i := 0; i < filled; i++ {
			l.Dots[i] = true
		}
	}
	return l
}

// 以下构造函数在分区为空时返回 false，调用方据此跳过整个分区（包括标题）。

func summaryBlock(doc resume.Document, heading string) (Block, bool) {
	if blank(doc.Profile.Summary) {
		return Block{}, false
	}
	return Block{Section: sectionSummary, Heading: heading, Text: doc.Profile.Summary}, true
}

func experienceBlock(doc resume.Document, heading string) (Block, bool) {
	b := Block{Section: string(resume.SectionExperience), Heading: heading}
	for _, e := range doc.Experience {
		b.Entries = append(b.Entries, Entry{
			Title:    e.Role,
			Subtitle: e.Company,
			Period:   period(e.StartDate, e.EndDate),
			Body:     e.Description,
		})
	}
	return b, len(b.Entries) > 0
}

func educationBlock(doc resume.Document, heading string) (Block, bool) {
	b := Block{Section: string(resume.SectionEducation), Heading: heading}
	for _, e := range doc.Education {
		b.Entries = append(b.Entries, Entry{
			Title:    e.Degree,
			Subtitle: e.Institution,
			Period:   period(e.StartDate, e.EndDate),
		})
	}
	return b, len(b.Entries) > 0
}

func skillsBlock(doc resume.Document, heading string, style IndicatorStyle) (Block, bool) {
	b := Block{Section: string(resume.SectionSkills), Heading: heading}
	for _, s := range doc.Skills {
		b.Entries = append(b.Entries, Entry{Title: s.Name, Level: level(s.Level, style)})
	}
	return b, len(b.Entries) > 0
}

func projectsBlock(doc resume.Document, heading string) (Block, bool) {
	b := Block{Section: string(resume.SectionProjects), Heading: heading}
	for _, p := range doc.Projects {
		e := Entry{Title: p.Name, Body: p.Description}
		if !blank(p.RepoLink) {
			e.Links = append(e.Links, Link{Label: "GitHub", URL: p.RepoLink})
		}
		if !blank(p.DemoLink) {
			e.Links = append(e.Links, Link{Label: "Live Demo", URL: p.DemoLink})
		}
		b.Entries = append(b.Entries, e)
	}
	return b, len(b.Entries) > 0
}

func certificationsBlock(doc resume.Document, heading string) (Block, bool) {
	b := Block{Section: string(resume.SectionCertifications), Heading: heading}
	for _, c := range doc.Certifications {
		e := Entry{Title: c.Title, Subtitle: c.Issuer, Period: c.IssueDate}
		if !blank(c.CredentialLink) {
			e.Links = append(e.Links, Link{Label: "Credential", URL: c.CredentialLink})
		}
		b.Entries = append(b.Entries, e)
	}
	return b, len(b.Entries) > 0
}

func languagesBlock(doc resume.Document, heading string, style IndicatorStyle) (Block, bool) {
	b := Block{Section: string(resume.SectionLanguages), Heading: heading}
	for _, l := range doc.Languages {
		b.Entries = append(b.Entries, Entry{Title: l.Name, Level: level(l.Level, style)})
	}
	return b, len(b.Entries) > 0
}

func interestsBlock(doc resume.Document, heading string) (Block, bool) {
	b := Block{Section: string(resume.SectionInterests), Heading: heading}
	for _, i := range doc.Interests {
		if !blank(i) {
			b.Tags = append(b.Tags, i)
		}
	}
	return b, len(b.Tags) > 0
}

type part func(resume.Document) (Block, bool)

func titled(heading string, fn func(resume.Document, string) (Block, bool)) part {
	return func(d resume.Document) (Block, bool) { return fn(d, heading) }
}

func leveled(heading string, style IndicatorStyle, fn func(resume.Document, string, IndicatorStyle) (Block, bool)) part {
	return func(d resume.Document) (Block, bool) { return fn(d, heading, style) }
}

// collect 把非空分区依次放入一栏。
func collect(doc resume.Document, parts ...part) []Block {
	out := []Block{}
	for _, p := range parts {
		if b, ok := p(doc); ok {
			out = append(out, b)
		}
	}
	return out
}
