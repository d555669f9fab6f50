// Package render turns a resume document into a layout for one of the three
// built-in templates and prints that layout as standalone HTML.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"regexp"
	"runtime/debug"

	"resumeCraft/internal/errcode"
	"resumeCraft/internal/resume"
)

//go:embed templates/page.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.New("page.html.tmpl").Funcs(template.FuncMap{
	// 颜色在 ParsePalette 中已校验，字体来自固定版式。
	"color":      func(s string) template.CSS { return template.CSS(s) },
	"font":       func(s string) template.CSS { return template.CSS(s) },
	"photo":      photoSrc,
	"pageWidth":  func() int { return PageWidth },
	"pageHeight": func() int { return PageHeight },
}).ParseFS(templateFS, "templates/page.html.tmpl"))

var inlineImage = regexp.MustCompile(`^data:image/(png|jpeg|webp|gif);base64,[A-Za-z0-9+/]+=*$`)

// photoSrc 放行内联的 base64 图片，其余地址交给 html/template 过滤。
func photoSrc(s string) any {
	if inlineImage.MatchString(s) {
		return template.URL(s)
	}
	return s
}

// Renderer 是渲染边界：内部任何 panic 都在这里被捕获并记录，
// 以 ErrRenderFailed 返回给调用方。
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer 返回渲染器，logger 为 nil 时使用默认 logger。
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Render 以给定缩放渲染文档。scale 不是正的有限数（含 NaN、Inf）时视为 1。
// 内容与缩放无关，缩放只影响 Width/Height/Scale。
func (r *Renderer) Render(doc resume.Document, scale float64) (Layout, error) {
	doc = doc.Normalize()
	v, err := VariantFor(doc.Template.ThemeID)
	if err != nil {
		r.logger.Warn("render: unknown template", slog.String("theme_id", doc.Template.ThemeID))
		return Layout{}, err
	}
	return r.render(v, doc, scale)
}

func (r *Renderer) render(v Variant, doc resume.Document, scale float64) (layout Layout, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("render: template panicked",
				slog.String("variant", v.Name()),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			layout = Layout{}
			err = fmt.Errorf("%w: %v", errcode.ErrRenderFailed, rec)
		}
	}()

	if !(scale > 0) || math.IsInf(scale, 0) {
		scale = 1
	}
	layout = v.compose(doc, resolveColors(v, doc))
	layout.Scale = scale
	layout.Width = PageWidth * scale
	layout.Height = PageHeight * scale
	return layout, nil
}

// HTML 输出完整的 HTML 页面。
func (r *Renderer) HTML(layout Layout) ([]byte, error) {
	if layout.Variant == "" {
		return nil, fmt.Errorf("%w: empty layout", errcode.ErrRenderFailed)
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, layout); err != nil {
		r.logger.Error("render: execute page template", slog.String("variant", layout.Variant), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", errcode.ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

// RenderHTML 是 Render 与 HTML 的组合。
func (r *Renderer) RenderHTML(doc resume.Document, scale float64) ([]byte, Layout, error) {
	layout, err := r.Render(doc, scale)
	if err != nil {
		return nil, Layout{}, err
	}
	html, err := r.HTML(layout)
	if err != nil {
		return nil, Layout{}, err
	}
	return html, layout, nil
}

// resolveColors 按位置取 primary/secondary/accent；配色缺失或非法时用版式自带的默认三色。
func resolveColors(v Variant, doc resume.Document) Colors {
	p, err := resume.ParsePalette(doc.Template.ColorPalette)
	if err != nil {
		theme, _ := resume.LookupTheme(v.ThemeID())
		p = theme.DefaultPalette()
	}
	return Colors{Primary: p.Primary(), Secondary: p.Secondary(), Accent: p.Accent()}
}
