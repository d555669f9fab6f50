package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"resumeCraft/internal/assets"
	"resumeCraft/internal/config"
	"resumeCraft/internal/logging"
	"resumeCraft/internal/preview"
	"resumeCraft/internal/rasterizer"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/resume"
	"resumeCraft/internal/storage"
)

var (
	exportEmail    string
	exportResumeID string
	exportOut      string
	exportHTMLOnly bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render a stored resume to a local PDF (or HTML) file",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportEmail, "email", "", "简历所属账号邮箱（必填）")
	exportCmd.Flags().StringVar(&exportResumeID, "resume", "", "简历 ID（必填）")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "输出文件路径（必填）")
	exportCmd.Flags().BoolVar(&exportHTMLOnly, "html", false, "只写出渲染后的 HTML，不启动浏览器")
	for _, name := range []string{"email", "resume", "out"} {
		if err := exportCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("mark %s flag required: %v", name, err))
		}
	}
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, db, err := openDB(false)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)
	ctx := cmd.Context()

	user, err := repository.NewUsers(db).ByEmail(ctx, exportEmail)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	doc, err := repository.NewResumes(db).Get(ctx, user.ID, strings.TrimSpace(exportResumeID))
	if err != nil {
		return fmt.Errorf("load resume: %w", err)
	}

	doc, err = inlinePhoto(ctx, cfg, logger, user.ID, doc)
	if err != nil {
		return err
	}

	var raster preview.Rasterizer = rasterizer.Disabled{}
	if !exportHTMLOnly {
		raster, err = rasterizer.New(rasterizer.Options{
			Backend:     cfg.Renderer.Backend,
			ChromePath:  cfg.Renderer.ChromePath,
			Timeout:     cfg.Renderer.Timeout,
			JPEGQuality: cfg.Renderer.JPEGQuality,
		}, logger)
		if err != nil {
			return fmt.Errorf("init rasterizer: %w", err)
		}
	}

	if err := exportDocument(ctx, preview.NewSurface(nil, raster, logger), doc, exportOut, exportHTMLOnly); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", exportOut)
	return nil
}

// inlinePhoto 在对象存储可用时内联头像；不可用时去掉头像继续导出。
func inlinePhoto(ctx context.Context, cfg *config.Config, logger *slog.Logger, userID uint, doc resume.Document) (resume.Document, error) {
	if strings.TrimSpace(doc.Profile.PhotoURL) == "" {
		return doc, nil
	}
	objects, err := storage.NewClient(cfg.MinIO, logger)
	if err != nil {
		logger.Warn("storage unavailable, exporting without photo", slog.Any("error", err))
		out := doc.Clone()
		out.Profile.PhotoURL = ""
		return out, nil
	}
	out, missing, err := assets.NewResolver(objects, logger).ForPrint(ctx, userID, doc)
	if err != nil {
		return doc, fmt.Errorf("resolve photo: %w", err)
	}
	if len(missing) > 0 {
		logger.Warn("photo object missing", slog.Any("keys", missing))
	}
	return out, nil
}

// exportDocument 以 1.0 缩放渲染 doc 并写入 path。
func exportDocument(ctx context.Context, surface *preview.Surface, doc resume.Document, path string, htmlOnly bool) error {
	view, err := surface.RenderPreview(doc, 1)
	if err != nil {
		return err
	}
	if htmlOnly {
		if err := os.WriteFile(path, view.HTML, 0o644); err != nil {
			return fmt.Errorf("write html: %w", err)
		}
		return nil
	}
	return surface.ExportToFile(ctx, view, path)
}
