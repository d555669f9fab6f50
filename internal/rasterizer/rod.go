package rasterizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Rod 每次调用启动一个独立的无头 Chromium，结束后清理。
type Rod struct {
	opts   Options
	logger *slog.Logger
}

func NewRod(opts Options, logger *slog.Logger) *Rod {
	return &Rod{opts: opts.withDefaults(), logger: logger}
}

func (r *Rod) PDF(ctx context.Context, html []byte) ([]byte, error) {
	page, cleanup, err := r.open(ctx, html)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	if err := (proto.EmulationSetEmulatedMedia{Media: "print"}).Call(page); err != nil {
		return nil, fmt.Errorf("set emulated media to print: %w", err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PaperWidth:        float64Ptr(paperWidthIn),
		PaperHeight:       float64Ptr(paperHeightIn),
		MarginTop:         float64Ptr(0),
		MarginBottom:      float64Ptr(0),
		MarginLeft:        float64Ptr(0),
		MarginRight:       float64Ptr(0),
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return data, nil
}

// Screenshot 把视口设为 width x height 后截取 JPEG。
func (r *Rod) Screenshot(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	page, cleanup, err := r.open(ctx, html)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: intPtr(r.opts.JPEGQuality),
	})
	if err != nil {
		return nil, fmt.Errorf("page screenshot: %w", err)
	}
	return data, nil
}

func (r *Rod) open(ctx context.Context, html []byte) (_ *rod.Page, cleanup func(), err error) {
	cleanup = func() {}

	launch := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true)
	if r.opts.ChromePath != "" {
		launch = launch.Bin(r.opts.ChromePath)
	} else if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		launch.Cleanup()
		return nil, cleanup, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(browserURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		launch.Cleanup()
		return nil, cleanup, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Timeout(r.opts.Timeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		launch.Cleanup()
		return nil, cleanup, fmt.Errorf("create page: %w", err)
	}
	cleanup = func() {
		_ = page.Close()
		_ = browser.Close()
		launch.Cleanup()
	}

	page = page.Timeout(r.opts.Timeout)
	if err := page.SetDocumentContent(string(html)); err != nil {
		return nil, cleanup, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, cleanup, fmt.Errorf("wait load: %w", err)
	}
	if _, err := page.Timeout(5 * time.Second).Eval(waitFontsScript); err != nil {
		r.logger.Warn("rasterizer: document.fonts.ready wait failed, continue", slog.Any("error", err))
	}
	if _, err := page.Element(rootSelector); err != nil {
		return nil, cleanup, fmt.Errorf("wait for %s: %w", rootSelector, err)
	}
	return page, cleanup, nil
}

func float64Ptr(value float64) *float64 {
	return &value
}

func intPtr(value int) *int {
	return &value
}
