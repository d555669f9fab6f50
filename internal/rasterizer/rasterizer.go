// Package rasterizer prints rendered resume HTML through a headless browser.
package rasterizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"resumeCraft/internal/preview"
)

const (
	BackendRod      = "rod"
	BackendChromedp = "chromedp"
	BackendDisabled = "disabled"
)

// A4 纸张尺寸（英寸）。
const (
	paperWidthIn  = 8.27
	paperHeightIn = 11.69
)

// rootSelector 是渲染模板中页面根节点的选择器。
const rootSelector = "#resume-root"

var ErrDisabled = errors.New("rasterizer disabled")

type Options struct {
	Backend     string
	ChromePath  string
	Timeout     time.Duration
	JPEGQuality int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = 80
	}
	return o
}

// New 根据配置选择后端，空值默认为 rod。
func New(opts Options, logger *slog.Logger) (preview.Rasterizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendRod:
		return NewRod(opts, logger), nil
	case BackendChromedp:
		return NewChromedp(opts, logger), nil
	case BackendDisabled:
		return Disabled{}, nil
	}
	return nil, fmt.Errorf("unknown rasterizer backend %q", opts.Backend)
}

// Disabled 总是失败：缩略图因此降级为无，导出返回 ExportFailed。
type Disabled struct{}

func (Disabled) Screenshot(context.Context, []byte, int, int) ([]byte, error) {
	return nil, ErrDisabled
}

func (Disabled) PDF(context.Context, []byte) ([]byte, error) {
	return nil, ErrDisabled
}

// waitFontsScript 等待 WebFont 就绪，最多 3 秒，避免回退字体导致排版差异。
const waitFontsScript = `() => {
  if (document && document.fonts && document.fonts.ready) {
    return Promise.race([
      document.fonts.ready.then(() => true),
      new Promise((resolve) => setTimeout(() => resolve(true), 3000))
    ]);
  }
  return true;
}`
