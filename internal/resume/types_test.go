package resume

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyDocumentWithDefaultTheme(t *testing.T) {
	doc := New("")

	assert.Equal(t, DefaultTitle, doc.Title)
	assert.Equal(t, ThemeClassic, doc.Template.ThemeID)
	assert.Equal(t, []string{"#0ea5e9", "#1e293b", "#64748b"}, doc.Template.ColorPalette)
	for _, s := range Sections() {
		assert.Zerof(t, doc.Len(s), "section %s should start empty", s)
	}
	assert.NotNil(t, doc.Experience)
	assert.NotNil(t, doc.Interests)
	assert.Empty(t, doc.ID)
}

func TestClone_DoesNotShareSlices(t *testing.T) {
	doc := New("cv")
	doc.Skills = append(doc.Skills, Skill{Name: "Go", Level: 80})
	doc.Interests = append(doc.Interests, "chess")

	cp := doc.Clone()
	cp.Skills[0].Name = "Rust"
	cp.Interests[0] = "go"
	cp.Template.ColorPalette[0] = "#000000"

	assert.Equal(t, "Go", doc.Skills[0].Name)
	assert.Equal(t, "chess", doc.Interests[0])
	assert.Equal(t, "#0ea5e9", doc.Template.ColorPalette[0])
}

func TestNormalize_FillsPaletteAndSections(t *testing.T) {
	doc := Document{Title: "x", Template: Template{ThemeID: ThemeTwoColumn, ColorPalette: []string{"#fff"}}}

	out := doc.Normalize()

	assert.Equal(t, []string{"#0891b2", "#164e63", "#06b6d4"}, out.Template.ColorPalette)
	assert.NotNil(t, out.Projects)
	assert.Equal(t, []string{"#fff"}, doc.Template.ColorPalette, "input must stay untouched")
}

func TestNormalize_KeepsUnknownTheme(t *testing.T) {
	out := Document{Template: Template{ThemeID: "99"}}.Normalize()

	assert.Equal(t, "99", out.Template.ThemeID)
	assert.Nil(t, out.Template.ColorPalette)
}

func TestParsePalette(t *testing.T) {
	_, err := ParsePalette([]string{"#111111", "#222222"})
	assert.ErrorIs(t, err, ErrInvalidPalette)

	_, err = ParsePalette([]string{"#111111", "#222222", "#333333", "#444444"})
	assert.ErrorIs(t, err, ErrInvalidPalette)

	_, err = ParsePalette([]string{"#111111", "not-a-color", "#333333"})
	assert.ErrorIs(t, err, ErrInvalidPalette)

	p, err := ParsePalette([]string{"#111111", "rgb(1,2,3)", "#333"})
	require.NoError(t, err)
	assert.Equal(t, "#111111", p.Primary())
	assert.Equal(t, "rgb(1,2,3)", p.Secondary())
	assert.Equal(t, "#333", p.Accent())
}

func TestLookupTheme(t *testing.T) {
	theme, ok := LookupTheme(ThemeBold)
	require.True(t, ok)
	assert.True(t, theme.Premium)
	assert.Len(t, theme.Palettes, 4)

	theme.Palettes[0] = Palette{"a", "b", "c"}
	again, _ := LookupTheme(ThemeBold)
	assert.Equal(t, "#059669", again.DefaultPalette().Primary())

	_, ok = LookupTheme("04")
	assert.False(t, ok)
	assert.Equal(t, []string{"01", "02", "03"}, ThemeIDs())
}

func TestParseSection(t *testing.T) {
	s, err := ParseSection("skills")
	require.NoError(t, err)
	assert.Equal(t, SectionSkills, s)

	_, err = ParseSection("hobbies")
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestValidate(t *testing.T) {
	doc := New("cv")
	require.NoError(t, doc.Validate())

	doc.Skills = append(doc.Skills, Skill{Name: "Go", Level: 101})
	assert.ErrorIs(t, doc.Validate(), ErrInvalidValue)

	doc = New("cv")
	doc.Title = ""
	assert.ErrorIs(t, doc.Validate(), ErrInvalidValue)

	doc = New("cv")
	doc.Template.ColorPalette = []string{"#fff", "#000"}
	assert.ErrorIs(t, doc.Validate(), ErrInvalidValue)
}

func TestValidateJSON(t *testing.T) {
	require.NoError(t, ValidateJSON([]byte(`{"title":"cv","skills":[{"name":"Go","level":80}]}`)))

	err := ValidateJSON([]byte(`{"title":"cv","skills":[{"name":"Go","level":"high"}]}`))
	assert.ErrorIs(t, err, ErrSchema)

	err = ValidateJSON([]byte(`{"skills":[]}`))
	assert.ErrorIs(t, err, ErrSchema)

	err = ValidateJSON([]byte(`{"title":"cv","languages":[{"name":"fr","level":140}]}`))
	assert.ErrorIs(t, err, ErrSchema)
}
