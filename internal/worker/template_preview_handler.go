package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"resumeCraft/internal/resume"
	"resumeCraft/internal/session"
	"resumeCraft/internal/tasks"
)

// TemplatePreviewStore 由 *storage.Client 实现。
type TemplatePreviewStore interface {
	UploadTemplatePreview(ctx context.Context, themeID string, jpeg []byte) (string, error)
}

// TemplatePreviewHandler 用示例简历渲染模板缩略图，供模板列表展示。
type TemplatePreviewHandler struct {
	capture session.Capturer
	objects TemplatePreviewStore
	logger  *slog.Logger
	scale   float64
}

func NewTemplatePreviewHandler(capture session.Capturer, objects TemplatePreviewStore, logger *slog.Logger, scale float64) *TemplatePreviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if scale <= 0 {
		scale = 0.3
	}
	return &TemplatePreviewHandler{capture: capture, objects: objects, logger: logger, scale: scale}
}

func (h *TemplatePreviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.TemplatePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal template preview payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("theme_id", payload.ThemeID),
		slog.String("correlation_id", payload.CorrelationID),
	)

	theme, ok := resume.LookupTheme(payload.ThemeID)
	if !ok {
		log.Warn("template not found, skipping task")
		return nil
	}
	log.Info("starting template preview generation")

	view, err := h.capture.RenderPreview(sampleResume(theme), h.scale)
	if err != nil {
		log.Error("render template sample failed", slog.Any("error", err))
		return fmt.Errorf("render template sample: %v: %w", err, asynq.SkipRetry)
	}
	jpeg := h.capture.CaptureThumbnail(ctx, view)
	if len(jpeg) == 0 {
		return fmt.Errorf("capture template %s preview: empty screenshot", theme.ID)
	}

	key, err := h.objects.UploadTemplatePreview(ctx, theme.ID, jpeg)
	if err != nil {
		log.Error("upload template preview failed", slog.Any("error", err))
		return err
	}

	log.Info("template preview generation completed", slog.String("object_key", key))
	return nil
}

// sampleResume 是模板缩略图使用的示例内容，覆盖所有分区。
func sampleResume(theme resume.Theme) resume.Document {
	doc := resume.New(theme.Name)
	doc.Template = resume.Template{ThemeID: theme.ID, ColorPalette: theme.DefaultPalette().Slice()}
	doc.Profile = resume.Profile{
		FullName:    "Alex Morgan",
		Designation: "Senior Software Engineer",
		Summary:     "Backend engineer building reliable distributed systems and developer tooling.",
	}
	doc.Contact = resume.Contact{
		Email:    "alex.morgan@example.com",
		Phone:    "+1 555 0100",
		Location: "Berlin",
		GitHub:   "github.com/alexmorgan",
	}
	doc.Experience = []resume.Experience{
		{Company: "Northwind", Role: "Senior Engineer", StartDate: "2021-03", EndDate: "Present", Description: "Led the migration of billing services to an event-driven architecture."},
		{Company: "Contoso", Role: "Software Engineer", StartDate: "2017-06", EndDate: "2021-02", Description: "Built internal APIs and the deployment pipeline."},
	}
	doc.Education = []resume.Education{
		{Institution: "TU Berlin", Degree: "MSc Computer Science", StartDate: "2015", EndDate: "2017"},
	}
	doc.Skills = []resume.Skill{{Name: "Go", Level: 90}, {Name: "PostgreSQL", Level: 80}, {Name: "Kubernetes", Level: 70}}
	doc.Projects = []resume.Project{{Name: "queue-inspector", Description: "Web UI for task queues."}}
	doc.Certifications = []resume.Certification{{Title: "CKA", Issuer: "CNCF", IssueDate: "2022"}}
	doc.Languages = []resume.Language{{Name: "English", Level: 100}, {Name: "German", Level: 60}}
	doc.Interests = []string{"Climbing", "Chess"}
	return doc
}
