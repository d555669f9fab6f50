package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resumeCraft/internal/editor"
	"resumeCraft/internal/entitlement"
	"resumeCraft/internal/metrics"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/resume"
	"resumeCraft/internal/session"
)

const maxOpsSize = 256 << 10

// SessionHandler 暴露编辑会话：打开、批量编辑、保存、导出与关闭。
type SessionHandler struct {
	sessions     *session.Manager
	entitlements *entitlement.Service
	logger       *slog.Logger
}

func NewSessionHandler(sessions *session.Manager, entitlements *entitlement.Service, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, entitlements: entitlements, logger: logger}
}

type sessionResponse struct {
	Document resume.Document `json:"document"`
	Dirty    bool            `json:"dirty"`
	Saving   bool            `json:"saving"`
}

func stateOf(s *session.Session, doc resume.Document) sessionResponse {
	return sessionResponse{Document: doc, Dirty: s.Dirty(), Saving: s.InFlight("save")}
}

// Open 打开（或复用）会话并返回工作副本。
func (h *SessionHandler) Open(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	s, err := h.sessions.Open(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.SetActiveSessions(h.sessions.Len())
	c.JSON(http.StatusOK, stateOf(s, s.Document()))
}

// Edit 按顺序执行一批编辑，任一失败则整批不生效。
// 请求体为 {"ops":[...]} 或直接为数组。
func (h *SessionHandler) Edit(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxOpsSize+1))
	if err != nil {
		BadRequest(c, "failed to read body")
		return
	}
	if len(raw) > maxOpsSize {
		Error(c, http.StatusRequestEntityTooLarge, "too many edits")
		return
	}

	ops, err := editor.DecodeOps(unwrapOps(raw))
	if err != nil {
		metrics.ObserveEditorOp("decode", err)
		Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	s, err := h.sessions.Open(ctx, id, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.entitlements.CheckOps(ctx, id, ops); err != nil {
		metrics.ObserveEditorOp("setTemplate", err)
		h.fail(c, err)
		return
	}

	doc, err := s.Apply(ops...)
	for _, op := range ops {
		metrics.ObserveEditorOp(op.Name(), err)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stateOf(s, doc))
}

// unwrapOps 接受 {"ops":[...]} 包装，其余原样交给解码器。
func unwrapOps(raw []byte) []byte {
	var wrapped struct {
		Ops json.RawMessage `json:"ops"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Ops) > 0 {
		return wrapped.Ops
	}
	return raw
}

// Save 保存工作副本并等待结果。请求先于保存结束时返回 202，保存继续在后台进行。
func (h *SessionHandler) Save(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	s, open := h.sessions.Get(id, c.Param("id"))
	if !open {
		NotFound(c, "session not open")
		return
	}

	task, err := s.Save(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	out, err := task.Wait(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusAccepted, gin.H{"message": "save in progress"})
		return
	}
	if out.Discarded {
		Conflict(c, "session closed before save finished")
		return
	}
	if out.Err != nil {
		h.fail(c, out.Err)
		return
	}
	c.JSON(http.StatusOK, stateOf(s, s.Document()))
}

// Export 把工作副本直接打印为 PDF 返回，不经过队列，也不写入存储。
// 同一会话同时只允许一次导出；请求等待期间会话被关闭时返回 409。
func (h *SessionHandler) Export(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	s, open := h.sessions.Get(id, c.Param("id"))
	if !open {
		NotFound(c, "session not open")
		return
	}

	task, err := s.Export(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	out, err := task.Wait(c.Request.Context())
	if err != nil {
		Error(c, http.StatusGatewayTimeout, "export timed out")
		return
	}
	metrics.ObserveCapture("session_pdf", out.Err == nil && !out.Discarded)
	if out.Discarded {
		Conflict(c, "session closed before export finished")
		return
	}
	if out.Err != nil {
		h.fail(c, out.Err)
		return
	}

	doc := s.Document()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName(doc.Title)))
	c.Data(http.StatusOK, "application/pdf", out.Value)
}

// exportFileName 去掉标题中不适合出现在文件名里的字符。
func exportFileName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\n', '\r':
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "resume"
	}
	return name + ".pdf"
}

// Close 关闭会话，未完成的保存结果会被丢弃。
func (h *SessionHandler) Close(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	if !h.sessions.Close(id, c.Param("id")) {
		NotFound(c, "session not open")
		return
	}
	metrics.SetActiveSessions(h.sessions.Len())
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, session.ErrClosed) {
		Conflict(c, "session closed")
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		requestLogger(c, h.logger).Info("session request failed", slog.Any("error", err))
	}
	Fail(c, err)
}
