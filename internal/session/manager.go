package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"resumeCraft/internal/auth"
)

type key struct {
	userID   uint
	resumeID string
}

// Manager 按 (用户, 简历) 管理会话，空闲超过 ttl 的会话会被关闭回收。
type Manager struct {
	deps Deps
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[key]*Session
}

func NewManager(deps Deps, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{deps: deps.withDefaults(), ttl: ttl, sessions: map[key]*Session{}}
}

// Open 返回已有会话，或从持久化服务加载文档创建新会话。
func (m *Manager) Open(ctx context.Context, id auth.Identity, resumeID string) (*Session, error) {
	k := key{id.UserID, resumeID}
	if s, ok := m.Get(id, resumeID); ok {
		return s, nil
	}

	doc, err := m.deps.Store.Get(ctx, id.UserID, resumeID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[k]; ok {
		return s, nil
	}
	s := New(m.deps, id.UserID, doc)
	m.sessions[k] = s
	m.deps.Logger.Info("session: opened", slog.Uint64("user_id", uint64(id.UserID)), slog.String("resume_id", resumeID))
	return s, nil
}

func (m *Manager) Get(id auth.Identity, resumeID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key{id.UserID, resumeID}]
	return s, ok
}

// Close 关闭并移除会话，返回会话是否存在。
func (m *Manager) Close(id auth.Identity, resumeID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[key{id.UserID, resumeID}]
	delete(m.sessions, key{id.UserID, resumeID})
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// Len 返回当前会话数。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep 关闭空闲超时的会话，有进行中操作的会话不回收。
func (m *Manager) Sweep() int {
	now := m.deps.Now()
	m.mu.Lock()
	var expired []*Session
	for k, s := range m.sessions {
		last, busy := s.idleSince()
		if busy || now.Sub(last) < m.ttl {
			continue
		}
		delete(m.sessions, k)
		expired = append(expired, s)
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.deps.Logger.Info("session: evicted idle sessions", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Run 定期执行 Sweep，直到 ctx 结束。
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
