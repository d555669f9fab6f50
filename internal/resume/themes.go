package resume

import (
	"fmt"
	"strings"
)

// 已注册的模板 ID。
const (
	ThemeClassic   = "01"
	ThemeTwoColumn = "02"
	ThemeBold      = "03"

	DefaultThemeID = ThemeClassic
)

// Palette 是 primary/secondary/accent 三色组。
type Palette [3]string

func (p Palette) Primary() string   { return p[0] }
func (p Palette) Secondary() string { return p[1] }
func (p Palette) Accent() string    { return p[2] }

// Slice 返回新的切片，调用方可以自由修改。
func (p Palette) Slice() []string {
	return []string{p[0], p[1], p[2]}
}

// Theme 描述一个内置模板及其可选配色。
type Theme struct {
	ID       string
	Name     string
	Premium  bool
	Palettes []Palette
}

// DefaultPalette 返回主题的第一个内置配色。
func (t Theme) DefaultPalette() Palette {
	return t.Palettes[0]
}

var themes = []Theme{
	{
		ID:   ThemeClassic,
		Name: "Minimal Classic",
		Palettes: []Palette{
			{"#0ea5e9", "#1e293b", "#64748b"},
			{"#10b981", "#065f46", "#34d399"},
			{"#f59e0b", "#b45309", "#fbbf24"},
			{"#8b5cf6", "#5b21b6", "#a78bfa"},
		},
	},
	{
		ID:      ThemeTwoColumn,
		Name:    "Modern Two-Column",
		Premium: true,
		Palettes: []Palette{
			{"#0891b2", "#164e63", "#06b6d4"},
			{"#7c3aed", "#4c1d95", "#8b5cf6"},
			{"#b45309", "#7b341e", "#d97706"},
			{"#be123c", "#881337", "#fb7185"},
		},
	},
	{
		ID:      ThemeBold,
		Name:    "Creative Bold",
		Premium: true,
		Palettes: []Palette{
			{"#059669", "#065f46", "#10b981"},
			{"#d97706", "#92400e", "#fbbf24"},
			{"#dc2626", "#991b1b", "#f87171"},
			{"#2563eb", "#1e3a8a", "#60a5fa"},
		},
	},
}

// Themes 返回全部内置主题（副本）。
func Themes() []Theme {
	out := make([]Theme, len(themes))
	for i, t := range themes {
		t.Palettes = append([]Palette(nil), t.Palettes...)
		out[i] = t
	}
	return out
}

// ThemeIDs 按注册顺序返回主题 ID。
func ThemeIDs() []string {
	ids := make([]string, 0, len(themes))
	for _, t := range themes {
		ids = append(ids, t.ID)
	}
	return ids
}

// LookupTheme 按 ID 查找主题。
func LookupTheme(id string) (Theme, bool) {
	for _, t := range themes {
		if t.ID == id {
			t.Palettes = append([]Palette(nil), t.Palettes...)
			return t, true
		}
	}
	return Theme{}, false
}

// ParsePalette 要求恰好三个颜色值，且每个都是合法的 CSS 颜色。
func ParsePalette(colors []string) (Palette, error) {
	if len(colors) != 3 {
		return Palette{}, fmt.Errorf("%w: want 3 colors, got %d", ErrInvalidPalette, len(colors))
	}
	var p Palette
	for i, c := range colors {
		c = strings.TrimSpace(c)
		if err := validate.Var(c, "required,iscolor"); err != nil {
			return Palette{}, fmt.Errorf("%w: color %d %q is not a color", ErrInvalidPalette, i, c)
		}
		p[i] = c
	}
	return p, nil
}
