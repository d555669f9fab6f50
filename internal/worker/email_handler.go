package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"resumeCraft/internal/errcode"
	"resumeCraft/internal/mailer"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/session"
	"resumeCraft/internal/tasks"
)

// EmailTaskHandler 消费 email:send 任务。
type EmailTaskHandler struct {
	sender   mailer.Sender
	resumes  ResumeStore
	objects  ObjectStore
	capture  session.Capturer
	photos   PhotoResolver
	notifier Notifier
	logger   *slog.Logger
}

func NewEmailTaskHandler(sender mailer.Sender, resumes ResumeStore, objects ObjectStore, capture session.Capturer, photos PhotoResolver, notifier Notifier, logger *slog.Logger) *EmailTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailTaskHandler{
		sender:   sender,
		resumes:  resumes,
		objects:  objects,
		capture:  capture,
		photos:   photos,
		notifier: notifier,
		logger:   logger,
	}
}

func (h *EmailTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.EmailSendPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	log := h.logger.With(
		slog.String("correlation_id", p.CorrelationID),
		slog.String("kind", p.Kind),
		slog.Uint64("user_id", uint64(p.UserID)),
	)

	var msg mailer.Message
	switch p.Kind {
	case tasks.EmailVerification:
		msg = mailer.VerificationMessage(p.To, p.Name, p.Link)
	case tasks.EmailResume:
		pdf, title, err := h.resumePDF(ctx, p)
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("email: resume not found, skipping task", slog.String("resume_id", p.ResumeID))
			return nil
		}
		if err != nil {
			h.failed(ctx, log, p, err)
			return err
		}
		msg = mailer.ResumeMessage(p.To, p.Subject, p.Body, title, pdf)
	default:
		log.Error("email: unknown kind")
		return fmt.Errorf("unknown email kind %q: %w", p.Kind, asynq.SkipRetry)
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		h.failed(ctx, log, p, err)
		return err
	}
	log.Info("email: sent")
	if p.Kind == tasks.EmailResume && h.notifier != nil {
		_ = h.notifier.Notify(ctx, p.UserID, Notification{
			Type:          NotifyEmail,
			Status:        StatusCompleted,
			ResumeID:      p.ResumeID,
			CorrelationID: p.CorrelationID,
		})
	}
	return nil
}

// resumePDF 优先读取已导出的对象，否则现场渲染当前存储的文档。
func (h *EmailTaskHandler) resumePDF(ctx context.Context, p tasks.EmailSendPayload) ([]byte, string, error) {
	doc, err := h.resumes.Get(ctx, p.UserID, p.ResumeID)
	if err != nil {
		return nil, "", err
	}
	if p.ObjectKey != "" && h.objects != nil {
		pdf, err := h.objects.ReadAll(ctx, p.ObjectKey)
		if err == nil {
			return pdf, doc.Title, nil
		}
		h.logger.Warn("email: read exported pdf failed, rendering again", slog.Any("error", err))
	}
	doc, _, err = resolvePhotos(ctx, h.photos, p.UserID, doc)
	if err != nil {
		return nil, "", err
	}
	view, err := h.capture.RenderPreview(doc, 1)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", errcode.ErrExportFailed, err)
	}
	pdf, err := h.capture.CaptureDocument(ctx, view)
	if err != nil {
		return nil, "", err
	}
	return pdf, doc.Title, nil
}

func (h *EmailTaskHandler) failed(ctx context.Context, log *slog.Logger, p tasks.EmailSendPayload, err error) {
	log.Error("email: failed", slog.Any("error", err))
	if p.Kind != tasks.EmailResume || h.notifier == nil || !isFinalAsynqAttempt(ctx) {
		return
	}
	if nerr := h.notifier.Notify(ctx, p.UserID, Notification{
		Type:          NotifyEmail,
		Status:        StatusError,
		ResumeID:      p.ResumeID,
		CorrelationID: p.CorrelationID,
		ErrorCode:     errcode.Of(err),
		ErrorMessage:  err.Error(),
	}); nerr != nil {
		log.Error("publish notification failed", slog.Any("error", nerr))
	}
}
