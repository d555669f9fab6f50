package render

// A4 页面在 96 DPI 下的像素尺寸。
const (
	PageWidth  = 794
	PageHeight = 1123
)

// 空白抬头的占位文本。
const (
	PlaceholderName  = "Your Name"
	PlaceholderTitle = "Your Title"
)

// Layout 是渲染结果：与缩放无关的内容加上按 Scale 计算的页面尺寸。
type Layout struct {
	ThemeID string  `json:"themeId"`
	Variant string  `json:"variant"`
	Scale   float64 `json:"scale"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Font    string  `json:"font"`
	Colors  Colors  `json:"colors"`
	Header  Header  `json:"header"`
	// Columns 从左到右排列。
	Columns []Column `json:"columns"`
}

// Colors 是解析后的调色板。
type Colors struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Accent    string `json:"accent"`
}

// HeaderStyle 决定抬头的排布方式。
type HeaderStyle string

const (
	HeaderCentered HeaderStyle = "centered"
	HeaderSidebar  HeaderStyle = "sidebar"
	HeaderBanner   HeaderStyle = "banner"
)

type Header struct {
	Style    HeaderStyle   `json:"style"`
	Name     string        `json:"name"`
	Title    string        `json:"title"`
	PhotoURL string        `json:"photoUrl,omitempty"`
	Contacts []ContactLine `json:"contacts,omitempty"`
}

type ContactLine struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Column 是页面中的一栏，Shaded 为 true 时以 secondary 色作为背景。
type Column struct {
	Name     string  `json:"name"`
	WidthPct int     `json:"widthPct"`
	Shaded   bool    `json:"shaded,omitempty"`
	Blocks   []Block `json:"blocks"`
}

// Block 是一个带标题的内容分区。Summary 块只有 Text，interests 只有 Tags。
type Block struct {
	Section string   `json:"section"`
	Heading string   `json:"heading"`
	Text    string   `json:"text,omitempty"`
	Entries []Entry  `json:"entries,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type Entry struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Period   string `json:"period,omitempty"`
	Body     string `json:"body,omitempty"`
	Links    []Link `json:"links,omitempty"`
	Level    *Level `json:"level,omitempty"`
}

type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// IndicatorStyle 是等级指示器的外观。
type IndicatorStyle string

const (
	IndicatorBar     IndicatorStyle = "bar"
	IndicatorPercent IndicatorStyle = "percent"
	IndicatorDots    IndicatorStyle = "dots"
)

// dotCount 是 IndicatorDots 的总点数。
const dotCount = 5

type Level struct {
	Percent int            `json:"percent"`
	Style   IndicatorStyle `json:"style"`
	// Dots 仅在 IndicatorDots 时填充，true 表示实心点。
	Dots []bool `json:"dots,omitempty"`
}

// Blocks 按栏顺序返回全部内容块。
func (l Layout) Blocks() []Block {
	var out []Block
	for _, c := range l.Columns {
		out = append(out, c.Blocks...)
	}
	return out
}

// Block 按分区名查找内容块。
func (l Layout) Block(section string) (Block, bool) {
	for _, b := range l.Blocks() {
		if b.Section == section {
			return b, true
		}
	}
	return Block{}, false
}
