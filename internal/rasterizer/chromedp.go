package rasterizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Chromedp 是基于 chromedp 的备选后端，适用于镜像里只有 Chrome 可执行文件、
// rod 无法自动下载浏览器的部署环境。
type Chromedp struct {
	opts   Options
	logger *slog.Logger
}

func NewChromedp(opts Options, logger *slog.Logger) *Chromedp {
	return &Chromedp{opts: opts.withDefaults(), logger: logger}
}

func (c *Chromedp) PDF(ctx context.Context, html []byte) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, html,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidthIn).
				WithPaperHeight(paperHeightIn).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp print to pdf: %w", err)
	}
	return buf, nil
}

func (c *Chromedp) Screenshot(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, html,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatJpeg).
				WithQuality(int64(c.opts.JPEGQuality)).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp screenshot: %w", err)
	}
	return buf, nil
}

func (c *Chromedp) run(ctx context.Context, html []byte, actions ...chromedp.Action) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.opts.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, c.opts.Timeout)
	defer cancel()

	steps := []chromedp.Action{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("get frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitReady(rootSelector, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var ok bool
			if err := chromedp.Evaluate(`document.fonts ? document.fonts.status === "loaded" : true`, &ok).Do(ctx); err != nil {
				c.logger.Warn("rasterizer: font status check failed, continue", slog.Any("error", err))
			}
			return nil
		}),
	}
	return chromedp.Run(runCtx, append(steps, actions...)...)
}
