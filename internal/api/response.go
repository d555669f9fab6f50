package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumeCraft/internal/errcode"
	"resumeCraft/internal/repository"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }
func TooMany(c *gin.Context, msg string)    { Error(c, http.StatusTooManyRequests, msg) }

// Fail 按错误码输出 {"error","code"}。编辑期错误原样返回文案，系统错误只返回通用文案。
func Fail(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		NotFound(c, "resume not found")
		return
	}

	code := errcode.Of(err)
	msg := errcode.Message(code)
	if errcode.Recoverable(err) {
		msg = err.Error()
	}
	c.JSON(statusFor(code), gin.H{"error": msg, "code": code})
}

func statusFor(code int) int {
	switch code {
	case errcode.PremiumRequired:
		return http.StatusForbidden
	case errcode.InFlight:
		return http.StatusConflict
	case errcode.ResourceMissing:
		return http.StatusNotFound
	case errcode.UploadFailed, errcode.PaymentFailed, errcode.EmailFailed:
		return http.StatusBadGateway
	}
	if code >= 4000 && code < 5000 {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
