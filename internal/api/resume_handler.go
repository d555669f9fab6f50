package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"resumeCraft/internal/api/middleware"
	"resumeCraft/internal/auth"
	"resumeCraft/internal/database"
	"resumeCraft/internal/entitlement"
	"resumeCraft/internal/errcode"
	"resumeCraft/internal/preview"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/resume"
	"resumeCraft/internal/session"
	"resumeCraft/internal/storage"
	"resumeCraft/internal/tasks"
)

const (
	downloadLinkTTL = 5 * time.Minute
	// 超过该时长仍处于 exporting 的记录视为 worker 异常退出，允许重新导出。
	exportStaleAfter = 15 * time.Minute
	maxDocumentSize  = 1 << 20
	maxPreviewScale  = 2.0
)

// previewRenderer 由 *preview.Surface 实现。
type previewRenderer interface {
	RenderPreview(doc resume.Document, scale float64) (preview.View, error)
}

// browserPhotos 由 *assets.Resolver 实现。
type browserPhotos interface {
	ForBrowser(ctx context.Context, userID uint, doc resume.Document) resume.Document
}

// resumeObjects 由 *storage.Client 实现。
type resumeObjects interface {
	DownloadURL(ctx context.Context, key, fileName string, ttl time.Duration) (string, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// ResumeHandler 负责简历的增删改查、预览、导出与邮件分享。
type ResumeHandler struct {
	resumes      *repository.Resumes
	entitlements *entitlement.Service
	surface      previewRenderer
	photos       browserPhotos
	sessions     *session.Manager
	objects      resumeObjects
	queue        taskQueue
	logger       *slog.Logger
	maxResumes   int
}

// NewResumeHandler 构造简历处理器。sessions 可为 nil，此时预览总是使用已保存的文档。
func NewResumeHandler(
	resumes *repository.Resumes,
	entitlements *entitlement.Service,
	surface previewRenderer,
	photos browserPhotos,
	sessions *session.Manager,
	objects resumeObjects,
	queue taskQueue,
	logger *slog.Logger,
	maxResumes int,
) *ResumeHandler {
	return &ResumeHandler{
		resumes:      resumes,
		entitlements: entitlements,
		surface:      surface,
		photos:       photos,
		sessions:     sessions,
		objects:      objects,
		queue:        queue,
		logger:       logger,
		maxResumes:   maxResumes,
	}
}

// ListResumes 按更新时间倒序列出简历。
func (h *ResumeHandler) ListResumes(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	docs, err := h.resumes.List(c.Request.Context(), userID)
	if err != nil {
		h.loggerFromContext(c).Error("list resumes failed", slog.Any("error", err))
		Internal(c, "failed to list resumes")
		return
	}
	c.JSON(http.StatusOK, docs)
}

type createResumeRequest struct {
	Title string `json:"title" binding:"max=255"`
}

// CreateResume 创建一份空白简历。
func (h *ResumeHandler) CreateResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	if h.maxResumes > 0 {
		count, err := h.resumes.Count(ctx, userID)
		if err != nil {
			logger.Error("count resumes failed", slog.Any("error", err))
			Internal(c, "failed to create resume")
			return
		}
		if count >= int64(h.maxResumes) {
			Forbidden(c, "resume limit reached")
			return
		}
	}

	doc, err := h.resumes.Create(ctx, userID, resume.New(req.Title))
	if err != nil {
		logger.Error("create resume failed", slog.Any("error", err))
		Internal(c, "failed to create resume")
		return
	}

	logger.Info("resume created", slog.String("resume_id", doc.ID))
	c.JSON(http.StatusCreated, doc)
}

// GetResume 返回已保存的文档。
func (h *ResumeHandler) GetResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	doc, err := h.resumes.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// UpdateResume 整文档替换。文档先经 schema 校验，再检查模板权限。
func (h *ResumeHandler) UpdateResume(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentSize+1))
	if err != nil {
		BadRequest(c, "failed to read body")
		return
	}
	if len(raw) > maxDocumentSize {
		Error(c, http.StatusRequestEntityTooLarge, "document too large")
		return
	}
	if err := resume.ValidateJSON(raw); err != nil {
		Fail(c, err)
		return
	}

	var doc resume.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		Fail(c, fmt.Errorf("%w: %v", resume.ErrInvalidValue, err))
		return
	}
	doc.ID = c.Param("id")
	// Normalize 会把非法调色板换成主题默认值，客户端显式提交的调色板需要先校验。
	if len(doc.Template.ColorPalette) > 0 {
		if _, err := resume.ParsePalette(doc.Template.ColorPalette); err != nil {
			Fail(c, err)
			return
		}
	}
	doc = doc.Normalize()
	if err := doc.Validate(); err != nil {
		Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.entitlements.Check(ctx, id, doc.Template.ThemeID); err != nil {
		h.fail(c, err)
		return
	}

	saved, err := h.resumes.Replace(ctx, id.UserID, doc)
	if err != nil {
		h.fail(c, err)
		return
	}

	// 打开中的会话持有旧的工作副本，直接关闭，下次打开时重新加载。
	h.closeSession(id, saved.ID)
	c.JSON(http.StatusOK, saved)
}

// DeleteResume 软删除简历。
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	resumeID := c.Param("id")
	if err := h.resumes.Delete(c.Request.Context(), id.UserID, resumeID); err != nil {
		h.fail(c, err)
		return
	}
	h.closeSession(id, resumeID)
	// 缩略图与 PDF 清理失败不影响删除结果。
	if err := h.objects.DeletePrefix(c.Request.Context(), storage.ResumePrefix(id.UserID, resumeID)); err != nil {
		requestLogger(c, h.logger).Warn("delete resume objects failed", slog.String("resume_id", resumeID), slog.Any("error", err))
	}
	c.Status(http.StatusNoContent)
}

// Preview 返回可打印的 HTML。会话打开时使用工作副本，否则使用已保存的文档。
func (h *ResumeHandler) Preview(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	scale := 1.0
	if raw := c.Query("scale"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > maxPreviewScale {
			BadRequest(c, "scale must be in (0, 2]")
			return
		}
		scale = v
	}

	ctx := c.Request.Context()
	resumeID := c.Param("id")

	var doc resume.Document
	if s, open := h.session(id, resumeID); open {
		doc = s.Document()
	} else {
		stored, err := h.resumes.Get(ctx, id.UserID, resumeID)
		if err != nil {
			h.fail(c, err)
			return
		}
		doc = stored
	}
	if h.photos != nil {
		doc = h.photos.ForBrowser(ctx, id.UserID, doc)
	}

	view, err := h.surface.RenderPreview(doc, scale)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", view.HTML)
}

// Thumbnail 重定向到缩略图的预签名地址。
func (h *ResumeHandler) Thumbnail(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	rec, err := h.resumes.Record(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if rec.Thumbnail == "" {
		NotFound(c, "thumbnail not found")
		return
	}

	url, err := h.objects.GeneratePresignedURL(c.Request.Context(), storage.ThumbnailKey(userID, rec.PublicID), assetURLTTL)
	if err != nil {
		h.loggerFromContext(c).Error("presign thumbnail failed", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Redirect(http.StatusFound, url)
}

// ExportResume 将 PDF 生成任务入队并立即返回 202，完成后通过 WebSocket 通知。
func (h *ResumeHandler) ExportResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	rec, err := h.resumes.Record(ctx, userID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	// 先在数据库里抢占 exporting 状态，并发的第二次提交会在这里失败。
	claimed, err := h.resumes.ClaimExport(ctx, userID, rec.PublicID, time.Now().Add(-exportStaleAfter))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !claimed {
		Fail(c, fmt.Errorf("%w: export", errcode.ErrInFlight))
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewPDFGenerateTask(userID, rec.PublicID, correlationID)
	if err != nil {
		h.releaseExport(c, userID, rec)
		Internal(c, "failed to create task")
		return
	}

	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		h.releaseExport(c, userID, rec)
		h.loggerFromContext(c).Error("enqueue pdf generation failed", slog.Any("error", err))
		Internal(c, "failed to enqueue pdf generation")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "PDF generation request accepted",
		"task_id": info.ID,
	})
}

// releaseExport 在入队失败时恢复原状态。
func (h *ResumeHandler) releaseExport(c *gin.Context, userID uint, rec *database.Resume) {
	status := rec.Status
	if status == "" || status == database.StatusExporting {
		status = database.StatusDraft
	}
	if err := h.resumes.SetExport(c.Request.Context(), userID, rec.PublicID, status, ""); err != nil {
		h.loggerFromContext(c).Warn("release export claim failed", slog.String("resume_id", rec.PublicID), slog.Any("error", err))
	}
}

// GetDownloadLink 生成简历 PDF 的预签名下载链接。
func (h *ResumeHandler) GetDownloadLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	rec, err := h.resumes.Record(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	if rec.PdfObjectKey == "" || rec.Status != database.StatusExported {
		Conflict(c, "pdf not ready")
		return
	}

	signedURL, err := h.objects.DownloadURL(c.Request.Context(), rec.PdfObjectKey, rec.Title, downloadLinkTTL)
	if err != nil {
		h.loggerFromContext(c).Error("generate download link failed", slog.Any("error", err))
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

type emailResumeRequest struct {
	RecipientEmail string `json:"recipientEmail" binding:"required,email"`
	Subject        string `json:"subject" binding:"max=200"`
	Message        string `json:"message" binding:"max=5000"`
}

// EmailResume 把简历 PDF 通过邮件发送给收件人。已导出时直接附带导出的文件。
func (h *ResumeHandler) EmailResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req emailResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	rec, err := h.resumes.Record(ctx, userID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	payload := tasks.EmailSendPayload{
		Kind:          tasks.EmailResume,
		UserID:        userID,
		To:            req.RecipientEmail,
		Subject:       req.Subject,
		Body:          req.Message,
		ResumeID:      rec.PublicID,
		CorrelationID: middleware.GetCorrelationID(c),
	}
	if payload.Subject == "" {
		payload.Subject = rec.Title
	}
	if rec.Status == database.StatusExported {
		payload.ObjectKey = rec.PdfObjectKey
	}

	task, err := tasks.NewEmailSendTask(payload)
	if err != nil {
		Internal(c, "failed to create task")
		return
	}
	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		h.loggerFromContext(c).Error("enqueue resume email failed", slog.Any("error", err))
		Internal(c, "failed to enqueue email")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "email queued",
		"task_id": info.ID,
	})
}

func (h *ResumeHandler) session(id auth.Identity, resumeID string) (*session.Session, bool) {
	if h.sessions == nil {
		return nil, false
	}
	return h.sessions.Get(id, resumeID)
}

func (h *ResumeHandler) closeSession(id auth.Identity, resumeID string) {
	if h.sessions != nil && h.sessions.Close(id, resumeID) {
		orDefault(h.logger).Info("session closed after resume change", slog.String("resume_id", resumeID))
	}
}

// fail 记录系统错误后输出错误响应。
func (h *ResumeHandler) fail(c *gin.Context, err error) {
	if !errors.Is(err, repository.ErrNotFound) && !errcode.Recoverable(err) {
		h.loggerFromContext(c).Error("resume request failed", slog.Any("error", err))
	}
	Fail(c, err)
}

func (h *ResumeHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	return requestLogger(c, h.logger)
}
