package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"resumeCraft/internal/api/middleware"
	"resumeCraft/internal/assets"
	"resumeCraft/internal/auth"
	"resumeCraft/internal/database"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/tasks"
)

const refreshTokenCookieName = "refresh_token"
const refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"
const verifyTokenKeyPrefix = "auth:verify:"

// AuthOptions 汇总认证相关的限额与 Cookie 设置。
type AuthOptions struct {
	LoginRateLimitPerHour int
	LoginLockThreshold    int
	LoginLockTTL          time.Duration
	CookieDomain          string
	VerificationTTL       time.Duration
	FrontendURL           string
	// RequireVerifiedEmail 为 true 时未验证邮箱的账号不能登录。
	RequireVerifiedEmail bool
}

// AuthHandler 处理注册、登录、刷新、退出与个人资料。
type AuthHandler struct {
	users       *repository.Users
	authService *auth.AuthService
	redis       redisKV
	queue       taskQueue
	images      *AssetHandler
	logger      *slog.Logger
	opts        AuthOptions
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(users *repository.Users, authService *auth.AuthService, redisClient redisKV, queue taskQueue, images *AssetHandler, logger *slog.Logger, opts AuthOptions) *AuthHandler {
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	if opts.LoginLockTTL <= 0 {
		opts.LoginLockTTL = 15 * time.Minute
	}
	return &AuthHandler{
		users:       users,
		authService: authService,
		redis:       redisClient,
		queue:       queue,
		images:      images,
		logger:      logger,
		opts:        opts,
	}
}

type profileResponse struct {
	ID               uint      `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	ProfileImageURL  string    `json:"profileImageUrl"`
	SubscriptionPlan string    `json:"subscriptionPlan"`
	EmailVerified    bool      `json:"emailVerified"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=128"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// Register 创建新用户账号并发送验证邮件。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	email := repository.NormalizeEmail(req.Email)
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user := database.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hashed,
		Plan:         auth.PlanBasic,
	}
	if err := h.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			logger.Info("register conflict: email already registered")
			Conflict(c, "email already registered")
			return
		}
		logger.Error("create user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	sent := true
	if err := h.sendVerification(c, &user); err != nil {
		// 账号已创建，用户可以稍后重发。
		logger.Warn("enqueue verification email failed", slog.Any("error", err))
		sent = false
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	c.JSON(http.StatusCreated, gin.H{
		"user":             h.profile(c, &user),
		"verificationSent": sent,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken        string          `json:"access_token"`
	TokenType          string          `json:"token_type"`
	ExpiresIn          int             `json:"expires_in"`
	MustChangePassword bool            `json:"must_change_password"`
	User               profileResponse `json:"user"`
}

// Login 校验口令并返回 Token。
func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.ClientIP()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	email := repository.NormalizeEmail(req.Email)
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	// 速率限制：每 IP+邮箱 每小时 N 次
	rateKey := "rate:login:" + ip + ":" + email + ":" + time.Now().UTC().Format("2006010215")
	if overLimit(ctx, h.redis, rateKey, h.opts.LoginRateLimitPerHour, time.Hour) {
		TooMany(c, "rate limit exceeded")
		return
	}

	// 锁定检查
	lockKey := "lock:login:" + email
	if ttl := lockedFor(ctx, h.redis, lockKey); ttl > 0 {
		c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())+1))
		TooMany(c, "account temporarily locked")
		return
	}

	user, err := h.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("login failed: user not found")
			_ = h.incrementLoginFail(ctx, email)
			Unauthorized(c)
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		_ = h.incrementLoginFail(ctx, email)
		Unauthorized(c)
		return
	}

	if h.opts.RequireVerifiedEmail && !user.EmailVerified {
		logger.Info("login refused: email not verified", slog.Uint64("user_id", uint64(user.ID)))
		Forbidden(c, "email not verified")
		return
	}

	// 登录成功：清理失败计数
	_ = h.redis.Del(ctx, "lock:login:fail:"+email).Err()

	if auth.NeedsRehash(user.PasswordHash) {
		if hashed, err := auth.HashPassword(req.Password); err == nil {
			if err := h.users.SetPassword(ctx, user.ID, hashed, user.MustChangePassword); err != nil {
				logger.Warn("upgrade password hash failed", slog.Any("error", err))
			}
		}
	}

	h.issueTokens(c, user)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 校验刷新令牌并颁发新的 TokenPair。套餐等信息重新从库中读取。
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		Unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, ok := h.refreshClaims(c, refreshToken, logger)
	if !ok {
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.redis.Get(ctx, key).Err(); err == nil {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		Unauthorized(c)
		return
	} else if !errors.Is(err, redis.Nil) {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user, err := h.users.ByID(ctx, claims.UserID)
	if err != nil {
		logger.Info("refresh user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	// 旋转旧刷新令牌，防止重复使用。
	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.issueTokens(c, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required,min=8,max=72"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required,min=8,max=72"`
}

// ChangePassword 校验当前密码并更新为新密码。
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		BadRequest(c, "password confirmation does not match")
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	user, err := h.users.ByID(ctx, userID)
	if err != nil {
		logger.Info("change password: user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	if !auth.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		logger.Info("change password: current password mismatch")
		Unauthorized(c)
		return
	}

	if strings.TrimSpace(req.NewPassword) == strings.TrimSpace(req.CurrentPassword) {
		BadRequest(c, "new password must be different from current password")
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("change password: hash failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.users.SetPassword(ctx, user.ID, hashed, false); err != nil {
		logger.Error("change password: update failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	user.MustChangePassword = false

	if refreshToken, err := c.Cookie(refreshTokenCookieName); err == nil && refreshToken != "" {
		if claims, err := h.authService.ValidateToken(refreshToken); err == nil && claims.TokenType == auth.TokenRefresh && claims.ID != "" {
			key := refreshTokenBlacklistKeyPrefix + claims.ID
			if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
				logger.Error("change password: revoke refresh failed", slog.Any("error", err))
				Internal(c, "internal error")
				return
			}
		}
	}

	h.issueTokens(c, user)
}

// Logout 将刷新令牌加入黑名单，防止继续使用。
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		BadRequest(c, "refresh token missing")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, ok := h.refreshClaims(c, refreshToken, logger)
	if !ok {
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("logout revoke token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 清除 Cookie。
	stdhttp.SetCookie(c.Writer, &stdhttp.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   h.isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: stdhttp.SameSiteLaxMode,
		Domain:   h.getCookieDomain(),
	})
	c.Status(http.StatusOK)
}

// Profile 返回当前用户资料。
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	user, err := h.users.ByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Unauthorized(c)
			return
		}
		h.loggerFromContext(c).Error("profile query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, h.profile(c, user))
}

type verifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmail 消费验证令牌并标记邮箱已验证。令牌只能使用一次。
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)
	key := verifyTokenKeyPrefix + strings.TrimSpace(req.Token)

	raw, err := h.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		BadRequest(c, "invalid or expired token")
		return
	}
	if err != nil {
		logger.Error("verification token lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		BadRequest(c, "invalid or expired token")
		return
	}

	if err := h.users.MarkVerified(ctx, uint(userID)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			BadRequest(c, "invalid or expired token")
			return
		}
		logger.Error("mark email verified failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	_ = h.redis.Del(ctx, key).Err()

	logger.Info("email verified", slog.Uint64("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

type resendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResendVerification 重新发送验证邮件。无论邮箱是否存在都返回相同响应。
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req resendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	email := repository.NormalizeEmail(req.Email)
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	rateKey := "rate:verify:" + email + ":" + time.Now().UTC().Format("2006010215")
	if overLimit(ctx, h.redis, rateKey, 3, time.Hour) {
		TooMany(c, "rate limit exceeded")
		return
	}

	accepted := gin.H{"message": "if the account exists, a verification email has been sent"}

	user, err := h.users.ByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Error("resend verification lookup failed", slog.Any("error", err))
		}
		c.JSON(http.StatusAccepted, accepted)
		return
	}
	if user.EmailVerified {
		c.JSON(http.StatusAccepted, accepted)
		return
	}

	if err := h.sendVerification(c, user); err != nil {
		logger.Error("resend verification failed", slog.Any("error", err))
		Internal(c, "failed to send verification email")
		return
	}
	c.JSON(http.StatusAccepted, accepted)
}

// UploadImage 上传头像并写入个人资料，返回可直接展示的地址。
func (h *AuthHandler) UploadImage(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.images == nil {
		Error(c, http.StatusServiceUnavailable, "image upload unavailable")
		return
	}

	objectKey, ok := h.images.accept(c, userID, "image")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.users.SetProfileImage(ctx, userID, objectKey); err != nil {
		h.loggerFromContext(c).Error("set profile image failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"imageUrl":  h.imageURL(ctx, userID, objectKey),
		"objectKey": objectKey,
	})
}

func (h *AuthHandler) sendVerification(c *gin.Context, user *database.User) error {
	ctx := c.Request.Context()
	token := uuid.NewString()
	if err := h.redis.Set(ctx, verifyTokenKeyPrefix+token, strconv.FormatUint(uint64(user.ID), 10), h.opts.VerificationTTL).Err(); err != nil {
		return err
	}

	link := strings.TrimRight(h.opts.FrontendURL, "/") + "/verify-email?token=" + url.QueryEscape(token)
	task, err := tasks.NewEmailSendTask(tasks.EmailSendPayload{
		Kind:          tasks.EmailVerification,
		UserID:        user.ID,
		To:            user.Email,
		Name:          user.Name,
		Link:          link,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		return err
	}
	_, err = h.queue.EnqueueContext(ctx, task)
	return err
}

func (h *AuthHandler) issueTokens(c *gin.Context, user *database.User) {
	tokenPair, err := h.authService.GenerateTokenPair(identityOf(user))
	if err != nil {
		h.loggerFromContext(c).Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.setRefreshCookie(c, tokenPair.RefreshToken)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:        tokenPair.AccessToken,
		TokenType:          "Bearer",
		ExpiresIn:          int(h.authService.AccessTokenTTL().Seconds()),
		MustChangePassword: user.MustChangePassword,
		User:               h.profile(c, user),
	})
}

func identityOf(user *database.User) auth.Identity {
	return auth.Identity{
		UserID:             user.ID,
		Email:              user.Email,
		Plan:               user.Plan,
		MustChangePassword: user.MustChangePassword,
	}
}

func (h *AuthHandler) profile(c *gin.Context, user *database.User) profileResponse {
	return profileResponse{
		ID:               user.ID,
		Name:             user.Name,
		Email:            user.Email,
		ProfileImageURL:  h.imageURL(c.Request.Context(), user.ID, user.ProfileImageURL),
		SubscriptionPlan: user.Plan,
		EmailVerified:    user.EmailVerified,
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
}

// imageURL 把头像对象键换成预签名地址；外部 URL 原样返回。
func (h *AuthHandler) imageURL(ctx context.Context, userID uint, ref string) string {
	if ref == "" || h.images == nil || !assets.IsUserAssetKey(userID, ref) {
		return ref
	}
	signed, err := h.images.Storage.GeneratePresignedURL(ctx, ref, assetURLTTL)
	if err != nil {
		orDefault(h.logger).Warn("presign profile image failed", slog.String("objectKey", ref), slog.Any("error", err))
		return ""
	}
	return signed
}

func (h *AuthHandler) refreshClaims(c *gin.Context, token string, logger *slog.Logger) (*auth.TokenClaims, bool) {
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		logger.Info("refresh token invalid", slog.Any("error", err))
		Unauthorized(c)
		return nil, false
	}
	if claims.TokenType != auth.TokenRefresh {
		logger.Info("refresh token wrong type", slog.String("token_type", claims.TokenType))
		Unauthorized(c)
		return nil, false
	}
	if claims.ID == "" {
		logger.Info("refresh token missing jti")
		Unauthorized(c)
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, refreshToken string) {
	maxAge := int(h.authService.RefreshTokenTTL().Seconds())
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	cookie := &stdhttp.Cookie{
		Name:     refreshTokenCookieName,
		Value:    refreshToken,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   h.isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: stdhttp.SameSiteLaxMode,
		Domain:   h.getCookieDomain(),
		Expires:  time.Now().Add(h.authService.RefreshTokenTTL()),
	}
	stdhttp.SetCookie(c.Writer, cookie)
}

func (h *AuthHandler) revokeRefreshToken(ctx context.Context, key string, expiresAt *jwt.NumericDate) error {
	var ttl time.Duration
	if expiresAt == nil {
		ttl = h.authService.RefreshTokenTTL()
	} else {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	return requestLogger(c, h.logger)
}

func (h *AuthHandler) isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
func (h *AuthHandler) getCookieDomain() string { return strings.TrimSpace(h.opts.CookieDomain) }
func (h *AuthHandler) incrementLoginFail(ctx context.Context, email string) error {
	failKey := "lock:login:fail:" + email
	count, err := incrWithTTL(ctx, h.redis, failKey, h.opts.LoginLockTTL)
	if err != nil {
		return err
	}
	if h.opts.LoginLockThreshold > 0 && count >= int64(h.opts.LoginLockThreshold) {
		_ = h.redis.Set(ctx, "lock:login:"+email, "1", h.opts.LoginLockTTL).Err()
	}
	return nil
}
