package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resumeCraft/internal/auth"
)

// TokenValidator 由 *auth.AuthService 实现。
type TokenValidator interface {
	ValidateAccessToken(token string) (auth.Identity, error)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// AuthMiddleware 校验访问令牌，把身份写入请求 context，并兼容地注入 userID。
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		rawToken := parts[1]
		if strings.TrimSpace(rawToken) == "" {
			abortUnauthorized(c)
			return
		}

		id, err := validator.ValidateAccessToken(rawToken)
		if err != nil || id.UserID == 0 {
			abortUnauthorized(c)
			return
		}

		SetIdentity(c, id)
		c.Next()
	}
}

// SetIdentity 把身份放进 gin 与请求 context。测试中也用它模拟登录。
func SetIdentity(c *gin.Context, id auth.Identity) {
	c.Set("userID", id.UserID)
	c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
}

// IdentityFromContext 取出 AuthMiddleware 写入的身份。
func IdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	if c.Request == nil {
		return auth.Identity{}, false
	}
	return auth.IdentityFrom(c.Request.Context())
}
