package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"resumeCraft/internal/database"
	"resumeCraft/internal/errcode"
	"resumeCraft/internal/metrics"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/resume"
	"resumeCraft/internal/session"
	"resumeCraft/internal/tasks"
)

// ResumeStore 由 *repository.Resumes 实现。
type ResumeStore interface {
	Get(ctx context.Context, ownerID uint, id string) (resume.Document, error)
	SetExport(ctx context.Context, ownerID uint, id, status, objectKey string) error
	SetThumbnail(ctx context.Context, ownerID uint, id, url string) error
}

// ObjectStore 由 *storage.Client 实现。
type ObjectStore interface {
	UploadPDF(ctx context.Context, userID uint, resumeID string, pdf []byte) (string, error)
	UploadThumbnail(ctx context.Context, userID uint, resumeID string, jpeg []byte) (string, error)
	ReadAll(ctx context.Context, key string) ([]byte, error)
}

// PhotoResolver 由 *assets.Resolver 实现。
type PhotoResolver interface {
	ForPrint(ctx context.Context, userID uint, doc resume.Document) (resume.Document, []string, error)
}

// ExportTaskHandler 消费 pdf:generate 任务：打印 PDF，同时刷新缩略图。
type ExportTaskHandler struct {
	resumes        ResumeStore
	objects        ObjectStore
	capture        session.Capturer
	photos         PhotoResolver
	notifier       Notifier
	logger         *slog.Logger
	thumbnailScale float64
}

func NewExportTaskHandler(resumes ResumeStore, objects ObjectStore, capture session.Capturer, photos PhotoResolver, notifier Notifier, logger *slog.Logger, thumbnailScale float64) *ExportTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if thumbnailScale <= 0 {
		thumbnailScale = 0.3
	}
	return &ExportTaskHandler{
		resumes:        resumes,
		objects:        objects,
		capture:        capture,
		photos:         photos,
		notifier:       notifier,
		logger:         logger,
		thumbnailScale: thumbnailScale,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.PDFGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("resume_id", payload.ResumeID),
		slog.Uint64("user_id", uint64(payload.UserID)),
	)
	log.Info("export: starting")

	doc, err := h.resumes.Get(ctx, payload.UserID, payload.ResumeID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("export: resume not found, skipping task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load resume: %w", err)
	}

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		if err := h.resumes.SetExport(ctx, payload.UserID, payload.ResumeID, database.StatusFailed, ""); err != nil {
			log.Error("export: mark failed", slog.Any("error", err))
		}
		h.notify(ctx, log, payload.UserID, Notification{
			Type:          NotifyExport,
			Status:        StatusError,
			ResumeID:      payload.ResumeID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.Of(retErr),
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		})
	}()

	if err := h.resumes.SetExport(ctx, payload.UserID, payload.ResumeID, database.StatusExporting, ""); err != nil {
		return err
	}

	doc, missing, err := resolvePhotos(ctx, h.photos, payload.UserID, doc)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		log.Warn("export: image assets missing, continuing without them", slog.Any("missing_keys", missing))
	}

	view, err := h.capture.RenderPreview(doc, 1)
	if err != nil {
		return fmt.Errorf("%w: %w", errcode.ErrExportFailed, err)
	}
	pdf, err := h.capture.CaptureDocument(ctx, view)
	metrics.ObserveCapture("pdf", err == nil)
	if err != nil {
		log.Error("export: capture document failed", slog.Any("error", err))
		return err
	}

	var objectKey string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		key, err := h.objects.UploadPDF(gctx, payload.UserID, payload.ResumeID, pdf)
		if err != nil {
			return fmt.Errorf("%w: %w", errcode.ErrUploadFailed, err)
		}
		objectKey = key
		return nil
	})
	g.Go(func() error {
		// 缩略图失败不影响导出
		h.refreshThumbnail(gctx, log, payload.UserID, doc)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("export: upload failed", slog.Any("error", err))
		return err
	}

	if err := h.resumes.SetExport(ctx, payload.UserID, payload.ResumeID, database.StatusExported, objectKey); err != nil {
		return err
	}

	done := Notification{
		Type:          NotifyExport,
		Status:        StatusCompleted,
		ResumeID:      payload.ResumeID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if len(missing) > 0 {
		done.ErrorCode = errcode.ResourceMissing
		done.ErrorMessage = "some images are missing and were skipped"
		done.MissingKeys = missing
	}
	h.notify(ctx, log, payload.UserID, done)
	log.Info("export: completed", slog.String("object_key", objectKey), slog.Int("bytes", len(pdf)))
	return nil
}

func (h *ExportTaskHandler) refreshThumbnail(ctx context.Context, log *slog.Logger, userID uint, doc resume.Document) {
	view, err := h.capture.RenderPreview(doc, h.thumbnailScale)
	if err != nil {
		log.Warn("export: thumbnail render failed", slog.Any("error", err))
		return
	}
	img := h.capture.CaptureThumbnail(ctx, view)
	metrics.ObserveCapture("thumbnail", img != nil)
	if img == nil {
		return
	}
	url, err := h.objects.UploadThumbnail(ctx, userID, doc.ID, img)
	if err != nil {
		log.Warn("export: thumbnail upload failed", slog.Any("error", err))
		return
	}
	if err := h.resumes.SetThumbnail(ctx, userID, doc.ID, url); err != nil {
		log.Warn("export: thumbnail update failed", slog.Any("error", err))
	}
}

func (h *ExportTaskHandler) notify(ctx context.Context, log *slog.Logger, userID uint, n Notification) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Notify(ctx, userID, n); err != nil {
		log.Error("publish notification failed", slog.Any("error", err))
	}
}

func resolvePhotos(ctx context.Context, photos PhotoResolver, userID uint, doc resume.Document) (resume.Document, []string, error) {
	if photos == nil {
		return doc, nil, nil
	}
	return photos.ForPrint(ctx, userID, doc)
}
