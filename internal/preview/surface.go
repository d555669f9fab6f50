// Package preview hosts the template renderer at a display scale and captures
// the rendered page as a thumbnail image or a printable PDF.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"resumeCraft/internal/errcode"
	"resumeCraft/internal/render"
	"resumeCraft/internal/resume"
)

// Rasterizer 把一段 HTML 转成图片或 PDF，具体由无头浏览器实现。
type Rasterizer interface {
	Screenshot(ctx context.Context, html []byte, width, height int) ([]byte, error)
	PDF(ctx context.Context, html []byte) ([]byte, error)
}

// View 是一次预览渲染的结果。
type View struct {
	Layout render.Layout
	HTML   []byte
}

// Surface 把渲染器与光栅化后端组合在一起，负责预览、截图与导出。
type Surface struct {
	renderer *render.Renderer
	raster   Rasterizer
	logger   *slog.Logger
}

// NewSurface 构造 Surface。renderer 为 nil 时新建一个；raster 为 nil 时截图和导出都不可用。
func NewSurface(renderer *render.Renderer, raster Rasterizer, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	if renderer == nil {
		renderer = render.NewRenderer(logger)
	}
	return &Surface{renderer: renderer, raster: raster, logger: logger}
}

// RenderPreview 以给定缩放渲染文档。
func (s *Surface) RenderPreview(doc resume.Document, scale float64) (View, error) {
	html, layout, err := s.renderer.RenderHTML(doc, scale)
	if err != nil {
		return View{}, err
	}
	return View{Layout: layout, HTML: html}, nil
}

// CaptureThumbnail 按视图当前尺寸截图。失败时记录日志并返回 nil，
// 调用方应当在没有缩略图的情况下继续。
func (s *Surface) CaptureThumbnail(ctx context.Context, view View) []byte {
	if s.raster == nil || len(view.HTML) == 0 {
		return nil
	}
	w := int(view.Layout.Width + 0.5)
	h := int(view.Layout.Height + 0.5)
	img, err := s.raster.Screenshot(ctx, view.HTML, w, h)
	if err != nil {
		s.logger.Warn("preview: thumbnail capture failed, continuing without thumbnail",
			slog.String("variant", view.Layout.Variant),
			slog.Any("error", err),
		)
		return nil
	}
	if len(img) == 0 {
		s.logger.Warn("preview: rasterizer returned an empty thumbnail")
		return nil
	}
	return img
}

// CaptureDocument 以 1:1 比例重新输出页面并打印为 PDF。
func (s *Surface) CaptureDocument(ctx context.Context, view View) ([]byte, error) {
	if s.raster == nil {
		return nil, fmt.Errorf("%w: no rasterizer configured", errcode.ErrExportFailed)
	}
	if view.Layout.Variant == "" {
		return nil, fmt.Errorf("%w: nothing rendered", errcode.ErrExportFailed)
	}

	printable := view.Layout
	printable.Scale = 1
	printable.Width = render.PageWidth
	printable.Height = render.PageHeight
	html, err := s.renderer.HTML(printable)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.ErrExportFailed, err)
	}

	pdf, err := s.raster.PDF(ctx, html)
	if err != nil {
		s.logger.Error("preview: pdf capture failed", slog.String("variant", view.Layout.Variant), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", errcode.ErrExportFailed, err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: rasterizer output is not a pdf", errcode.ErrExportFailed)
	}
	return pdf, nil
}

// ExportToFile 把 PDF 写入 path。先写同目录临时文件再 rename，
// 任一步失败都会删除临时文件，path 不会出现半成品。
func (s *Surface) ExportToFile(ctx context.Context, view View, path string) (err error) {
	pdf, err := s.CaptureDocument(ctx, view)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", errcode.ErrExportFailed, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(pdf); err != nil {
		return fmt.Errorf("%w: write: %w", errcode.ErrExportFailed, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", errcode.ErrExportFailed, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", errcode.ErrExportFailed, err)
	}
	if err = ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errcode.ErrExportFailed, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: rename: %w", errcode.ErrExportFailed, err)
	}
	return nil
}
