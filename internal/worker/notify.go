package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type Notification struct {
	Type          string   `json:"type"`
	Status        string   `json:"status"`
	ResumeID      string   `json:"resume_id,omitempty"`
	CorrelationID string   `json:"correlation_id"`
	ErrorCode     int      `json:"error_code"`
	ErrorMessage  string   `json:"error_message"`
	MissingKeys   []string `json:"missing_keys,omitempty"`
}

const (
	NotifyExport = "export"
	NotifyEmail  = "email"

	StatusCompleted = "completed"
	StatusError     = "error"
)

// NotifyChannel 是用户通知的 Redis 频道名。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// DecodeNotification 解析频道上的一条消息，类型或状态不在协议内时返回错误。
func DecodeNotification(payload []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	switch n.Type {
	case NotifyExport, NotifyEmail:
	default:
		return Notification{}, fmt.Errorf("unknown notification type %q", n.Type)
	}
	switch n.Status {
	case StatusCompleted, StatusError:
	default:
		return Notification{}, fmt.Errorf("unknown notification status %q", n.Status)
	}
	return n, nil
}

// Notifier 把任务结果推送给用户。
type Notifier interface {
	Notify(ctx context.Context, userID uint, n Notification) error
}

type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (r *RedisNotifier) Notify(ctx context.Context, userID uint, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(userID)
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
