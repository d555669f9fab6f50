package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"resumeCraft/internal/api/middleware"
	"resumeCraft/internal/auth"
	"resumeCraft/internal/worker"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongWait     = 2 * wsPingInterval
	wsWriteWait    = 5 * time.Second
)

// notificationFeed 按用户订阅任务通知。ctx 结束后返回的 channel 会被关闭。
type notificationFeed interface {
	Subscribe(ctx context.Context, userID uint) (<-chan []byte, error)
}

// redisFeed 通过 Redis Pub/Sub 接收 worker 发布的通知。
type redisFeed struct {
	client redis.UniversalClient
}

func (f redisFeed) Subscribe(ctx context.Context, userID uint) (<-chan []byte, error) {
	channel := worker.NotifyChannel(userID)
	pubsub := f.client.Subscribe(ctx, channel)
	// 等订阅确认，Redis 不可用时在升级后的第一时间告诉客户端。
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// WsHandler 在 WebSocket 上推送导出与邮件任务的完成通知。
// 连接建立后第一条消息必须是 {"type":"auth","token":"<access token>"}。
type WsHandler struct {
	feed     notificationFeed
	tokens   middleware.TokenValidator
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWsHandler 构造 WebSocket 处理器。allowedOrigins 为空时只允许同源。
func NewWsHandler(feed notificationFeed, tokens middleware.TokenValidator, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	return &WsHandler{
		feed:     feed,
		tokens:   tokens,
		logger:   orDefault(logger),
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) == 0 {
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		}
		for _, o := range allowed {
			if origin == o {
				return true
			}
		}
		return false
	}
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// wsRejection 是认证失败的原因，reason 作为关闭帧文本发给客户端。
type wsRejection struct {
	reason string
	cause  error
}

func (r *wsRejection) Error() string {
	if r.cause == nil {
		return r.reason
	}
	return r.reason + ": " + r.cause.Error()
}

// HandleConnection 升级连接、完成认证，然后把该用户的通知逐条转发。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := requestLogger(c, h.logger).With(slog.String("client_ip", c.ClientIP()))

	id, rej := h.authenticate(conn)
	if rej != nil {
		writeClose(conn, websocket.ClosePolicyViolation, rej.reason)
		log.Warn("websocket authentication failed", slog.Any("error", rej))
		return
	}
	log = log.With(slog.Uint64("user_id", uint64(id.UserID)))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if h.feed == nil {
		writeClose(conn, websocket.CloseTryAgainLater, "notifications unavailable")
		return
	}
	feed, err := h.feed.Subscribe(ctx, id.UserID)
	if err != nil {
		writeClose(conn, websocket.CloseTryAgainLater, "notifications unavailable")
		log.Error("subscribe notifications failed", slog.Any("error", err))
		return
	}
	log.Info("websocket authenticated")

	go readPump(conn, cancel)
	err = h.writePump(ctx, conn, feed, log)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("websocket connection closed", slog.Any("error", err))
}

func (h *WsHandler) authenticate(conn *websocket.Conn) (auth.Identity, *wsRejection) {
	_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	var msg wsAuthMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return auth.Identity{}, &wsRejection{reason: "invalid auth payload", cause: err}
	}
	if msg.Type != "auth" || msg.Token == "" {
		return auth.Identity{}, &wsRejection{reason: "auth required"}
	}
	id, err := h.tokens.ValidateAccessToken(msg.Token)
	if err != nil || id.UserID == 0 {
		return auth.Identity{}, &wsRejection{reason: "unauthorized", cause: err}
	}
	if id.MustChangePassword {
		return auth.Identity{}, &wsRejection{reason: "password change required"}
	}
	_ = conn.SetReadDeadline(time.Time{})
	return id, nil
}

// readPump 只负责发现断开和续期 pong，认证后客户端发来的消息都被忽略。
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// writePump 是唯一的写者：转发通过校验的通知并定期 ping。
func (h *WsHandler) writePump(ctx context.Context, conn *websocket.Conn, feed <-chan []byte, log *slog.Logger) error {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-feed:
			if !ok {
				writeClose(conn, websocket.CloseGoingAway, "notifications closed")
				return errors.New("notification feed closed")
			}
			n, err := worker.DecodeNotification(payload)
			if err != nil {
				log.Warn("dropping malformed notification", slog.Any("error", err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(n); err != nil {
				return fmt.Errorf("write notification: %w", err)
			}
			log.Debug("notification forwarded",
				slog.String("type", n.Type),
				slog.String("status", n.Status),
				slog.String("resume_id", n.ResumeID),
				slog.String("correlation_id", n.CorrelationID),
			)
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}
