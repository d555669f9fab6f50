package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"resumeCraft/internal/api/middleware"
	"resumeCraft/internal/auth"
)

// taskQueue 由 *asynq.Client 实现。
type taskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}

// identityFromContext 优先读取中间件写入的完整身份，退化为只有 userID 的身份。
func identityFromContext(c *gin.Context) (auth.Identity, bool) {
	if id, ok := middleware.IdentityFromContext(c); ok {
		return id, true
	}
	userID, ok := userIDFromContext(c)
	if !ok || userID == 0 {
		return auth.Identity{}, false
	}
	return auth.Identity{UserID: userID}, true
}

func requestLogger(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	return middleware.LoggerOr(c, fallback)
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
