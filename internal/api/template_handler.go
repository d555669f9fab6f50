package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resumeCraft/internal/entitlement"
	"resumeCraft/internal/errcode"
	"resumeCraft/internal/resume"
	"resumeCraft/internal/storage"
)

// templatePreviews 由 *storage.Client 实现。
type templatePreviews interface {
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// TemplateHandler 返回内置模板目录与当前用户可用的模板。
type TemplateHandler struct {
	entitlements *entitlement.Service
	previews     templatePreviews
	logger       *slog.Logger
}

// NewTemplateHandler 构造模板处理器。previews 为 nil 时缩略图接口返回 404。
func NewTemplateHandler(entitlements *entitlement.Service, previews templatePreviews, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{entitlements: entitlements, previews: previews, logger: logger}
}

type templateResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Premium   bool       `json:"premium"`
	Available bool       `json:"available"`
	Palettes  [][]string `json:"palettes"`
	Preview   string     `json:"previewUrl"`
}

// ListTemplates 返回 {availableTemplates, allTemplates, isPremium}。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	catalogue, err := h.entitlements.Templates(c.Request.Context(), id)
	if err != nil {
		requestLogger(c, h.logger).Error("load templates failed", slog.Any("error", err))
		Internal(c, "failed to load templates")
		return
	}
	c.JSON(http.StatusOK, catalogue)
}

// GetTemplate 返回单个模板的配色，并标明当前用户能否使用。
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	theme, found := resume.LookupTheme(c.Param("id"))
	if !found {
		NotFound(c, "template not found")
		return
	}

	err := h.entitlements.Check(c.Request.Context(), id, theme.ID)
	if err != nil && !errors.Is(err, errcode.ErrPremiumRequired) {
		requestLogger(c, h.logger).Error("check template failed", slog.Any("error", err))
		Internal(c, "failed to load template")
		return
	}

	palettes := make([][]string, 0, len(theme.Palettes))
	for _, p := range theme.Palettes {
		palettes = append(palettes, p.Slice())
	}
	c.JSON(http.StatusOK, templateResponse{
		ID:        theme.ID,
		Name:      theme.Name,
		Premium:   theme.Premium,
		Available: err == nil,
		Palettes:  palettes,
		Preview:   "/v1/templates/" + theme.ID + "/preview",
	})
}

// Preview 重定向到模板缩略图的预签名地址。缩略图由 template:preview 任务生成。
func (h *TemplateHandler) Preview(c *gin.Context) {
	theme, found := resume.LookupTheme(c.Param("id"))
	if !found || h.previews == nil {
		NotFound(c, "template preview not found")
		return
	}
	url, err := h.previews.GeneratePresignedURL(c.Request.Context(), storage.TemplatePreviewKey(theme.ID), time.Hour)
	if err != nil {
		requestLogger(c, h.logger).Error("presign template preview failed", slog.Any("error", err))
		Internal(c, "failed to load template preview")
		return
	}
	c.Redirect(http.StatusFound, url)
}
