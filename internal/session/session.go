// Package session owns the working copy of a resume while it is being edited.
// Edits are applied synchronously; save and export run in the background,
// at most one of each at a time, and their results are dropped if the
// session has been closed by the time they resolve.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"resumeCraft/internal/editor"
	"resumeCraft/internal/errcode"
	"resumeCraft/internal/preview"
	"resumeCraft/internal/resume"
)

var ErrClosed = errors.New("session closed")

// Store 是持久化服务的整文档读写接口。
type Store interface {
	Get(ctx context.Context, ownerID uint, id string) (resume.Document, error)
	Replace(ctx context.Context, ownerID uint, doc resume.Document) (resume.Document, error)
}

// ThumbnailUploader 上传缩略图并返回可访问的地址。
type ThumbnailUploader interface {
	UploadThumbnail(ctx context.Context, ownerID uint, resumeID string, jpeg []byte) (string, error)
}

// Capturer 由 *preview.Surface 实现。
type Capturer interface {
	RenderPreview(doc resume.Document, scale float64) (preview.View, error)
	CaptureThumbnail(ctx context.Context, view preview.View) []byte
	CaptureDocument(ctx context.Context, view preview.View) ([]byte, error)
}

type Deps struct {
	Store   Store
	Capture Capturer
	Thumbs  ThumbnailUploader
	Logger  *slog.Logger
	// ThumbnailScale 是保存时截图使用的缩放，默认 0.3。
	ThumbnailScale float64
	// OpTimeout 限制单次保存/导出的耗时，默认 2 分钟。
	OpTimeout time.Duration
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.ThumbnailScale <= 0 {
		d.ThumbnailScale = 0.3
	}
	if d.OpTimeout <= 0 {
		d.OpTimeout = 2 * time.Minute
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

const (
	opSave   = "save"
	opExport = "export"
)

type Session struct {
	deps    Deps
	ownerID uint

	mu       sync.Mutex
	working  resume.Document
	rev      uint64
	savedRev uint64
	inFlight map[string]bool
	closed   bool
	lastUsed time.Time
}

// New 以 doc 作为工作副本创建会话，doc 视为已保存状态。
func New(deps Deps, ownerID uint, doc resume.Document) *Session {
	deps = deps.withDefaults()
	return &Session{
		deps:     deps,
		ownerID:  ownerID,
		working:  doc.Normalize(),
		inFlight: map[string]bool{},
		lastUsed: deps.Now(),
	}
}

func (s *Session) OwnerID() uint { return s.ownerID }

func (s *Session) ResumeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working.ID
}

// Document 返回工作副本的快照。
func (s *Session) Document() resume.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.deps.Now()
	return s.working.Clone()
}

// Dirty 报告工作副本是否有未保存的修改。
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev != s.savedRev
}

// InFlight 报告 op（"save" 或 "export"）是否正在进行。
func (s *Session) InFlight(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[op]
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Apply 同步执行一批编辑。任一操作失败则整批不生效，工作副本保持不变。
func (s *Session) Apply(ops ...editor.Op) (resume.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return resume.Document{}, ErrClosed
	}
	s.lastUsed = s.deps.Now()

	next, err := editor.Apply(s.working, ops...)
	if err != nil {
		return s.working.Clone(), err
	}
	if len(ops) > 0 {
		s.working = next
		s.rev++
	}
	return s.working.Clone(), nil
}

// Save 在后台保存当前快照：先截缩略图并上传（失败则不带缩略图继续），
// 再整文档替换。同一时间只允许一次保存。
func (s *Session) Save(ctx context.Context) (*Task[resume.Document], error) {
	snap, rev, err := s.begin(opSave)
	if err != nil {
		return nil, err
	}

	task := newTask[resume.Document]()
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.OpTimeout)
	go func() {
		defer cancel()
		saved, err := s.save(opCtx, snap)

		s.mu.Lock()
		delete(s.inFlight, opSave)
		discarded := s.closed
		if !discarded && err == nil {
			s.working.ID = saved.ID
			s.working.Thumbnail = saved.Thumbnail
			s.working.CreatedAt = saved.CreatedAt
			s.working.UpdatedAt = saved.UpdatedAt
			if s.rev == rev {
				s.savedRev = rev
			}
		}
		s.mu.Unlock()

		if discarded {
			s.deps.Logger.Info("session: save resolved after close, result discarded",
				slog.String("resume_id", snap.ID), slog.Bool("failed", err != nil))
		}
		task.resolve(Outcome[resume.Document]{Value: saved, Err: err, Discarded: discarded})
	}()
	return task, nil
}

func (s *Session) save(ctx context.Context, doc resume.Document) (resume.Document, error) {
	logger := s.deps.Logger.With(slog.String("resume_id", doc.ID), slog.Uint64("user_id", uint64(s.ownerID)))
	if s.deps.Store == nil {
		return resume.Document{}, fmt.Errorf("%w: no store configured", errcode.ErrSaveFailed)
	}

	if url := s.thumbnail(ctx, logger, doc); url != "" {
		doc.Thumbnail = url
	}

	// 截图期间会话被关闭时，文档可能已被整体替换或删除，旧快照不再写回。
	if s.Closed() {
		logger.Info("session: closed before store write, snapshot dropped")
		return resume.Document{}, fmt.Errorf("%w: %w", errcode.ErrSaveFailed, ErrClosed)
	}

	saved, err := s.deps.Store.Replace(ctx, s.ownerID, doc)
	if err != nil {
		logger.Error("session: save failed", slog.Any("error", err))
		return resume.Document{}, fmt.Errorf("%w: %w", errcode.ErrSaveFailed, err)
	}
	logger.Info("session: saved", slog.Bool("thumbnail", doc.Thumbnail != ""))
	return saved, nil
}

// thumbnail 返回空字符串表示本次保存没有新缩略图。
func (s *Session) thumbnail(ctx context.Context, logger *slog.Logger, doc resume.Document) string {
	if s.deps.Capture == nil || s.deps.Thumbs == nil {
		return ""
	}
	view, err := s.deps.Capture.RenderPreview(doc, s.deps.ThumbnailScale)
	if err != nil {
		logger.Warn("session: thumbnail render failed", slog.Any("error", err))
		return ""
	}
	img := s.deps.Capture.CaptureThumbnail(ctx, view)
	if img == nil {
		return ""
	}
	url, err := s.deps.Thumbs.UploadThumbnail(ctx, s.ownerID, doc.ID, img)
	if err != nil {
		logger.Warn("session: thumbnail upload failed, saving without it", slog.Any("error", err))
		return ""
	}
	return url
}

// Export 在后台把当前快照打印为 PDF。
func (s *Session) Export(ctx context.Context) (*Task[[]byte], error) {
	snap, _, err := s.begin(opExport)
	if err != nil {
		return nil, err
	}

	task := newTask[[]byte]()
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.OpTimeout)
	go func() {
		defer cancel()
		pdf, err := s.export(opCtx, snap)

		s.mu.Lock()
		delete(s.inFlight, opExport)
		discarded := s.closed
		s.mu.Unlock()

		if discarded {
			pdf = nil
		}
		task.resolve(Outcome[[]byte]{Value: pdf, Err: err, Discarded: discarded})
	}()
	return task, nil
}

func (s *Session) export(ctx context.Context, doc resume.Document) ([]byte, error) {
	if s.deps.Capture == nil {
		return nil, fmt.Errorf("%w: no capture surface", errcode.ErrExportFailed)
	}
	view, err := s.deps.Capture.RenderPreview(doc, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errcode.ErrExportFailed, err)
	}
	return s.deps.Capture.CaptureDocument(ctx, view)
}

func (s *Session) begin(op string) (resume.Document, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return resume.Document{}, 0, ErrClosed
	}
	if s.inFlight[op] {
		return resume.Document{}, 0, fmt.Errorf("%w: %s", errcode.ErrInFlight, op)
	}
	s.inFlight[op] = true
	s.lastUsed = s.deps.Now()
	return s.working.Clone(), s.rev, nil
}

// Close 关闭会话；之后解决的任务结果都会被丢弃。
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed, len(s.inFlight) > 0
}
