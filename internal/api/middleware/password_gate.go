package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequirePasswordChangeCompletedMiddleware 拦截仍需改密的账号（管理员创建的初始账号）。
// 只看 access token 中的声明，不查库；必须放在 AuthMiddleware 之后。
func RequirePasswordChangeCompletedMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFromContext(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		if id.MustChangePassword {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":  "password change required",
				"action": "change_password",
			})
			return
		}
		c.Next()
	}
}
