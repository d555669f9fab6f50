package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumeCraft/internal/api/middleware"
	"resumeCraft/internal/assets"
	"resumeCraft/internal/auth"
	"resumeCraft/internal/config"
	"resumeCraft/internal/entitlement"
	"resumeCraft/internal/payment"
	"resumeCraft/internal/preview"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/session"
	"resumeCraft/internal/storage"
)

// Deps 是注册路由所需的全部协作方。Payments 为 nil 时支付接口返回 503。
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    redis.UniversalClient
	Queue    taskQueue
	Auth     *auth.AuthService
	Storage  *storage.Client
	Surface  *preview.Surface
	Photos   *assets.Resolver
	Sessions *session.Manager
	Payments *payment.Service
	Logger   *slog.Logger
}

// RegisterRoutes 注册 /v1 下的业务路由。
func RegisterRoutes(router *gin.Engine, d Deps) {
	cfg := d.Config
	users := repository.NewUsers(d.DB)
	entitlements := entitlement.NewService(users)

	assetHandler := NewAssetHandler(repository.NewAssets(d.DB), d.Storage, d.Redis, d.Logger, cfg.Assets)
	authHandler := NewAuthHandler(users, d.Auth, d.Redis, d.Queue, assetHandler, d.Logger, AuthOptions{
		LoginRateLimitPerHour: cfg.API.LoginRateLimitPerHour,
		LoginLockThreshold:    cfg.API.LoginLockThreshold,
		LoginLockTTL:          cfg.API.LoginLockTTL,
		CookieDomain:          cfg.API.CookieDomain,
		VerificationTTL:       cfg.Auth.VerificationTTL,
		FrontendURL:           cfg.API.FrontendURL,
		RequireVerifiedEmail:  cfg.SMTP.Enabled(),
	})
	resumeHandler := NewResumeHandler(repository.NewResumes(d.DB), entitlements, d.Surface, d.Photos, d.Sessions, d.Storage, d.Queue, d.Logger, cfg.API.MaxResumesPerUser)
	sessionHandler := NewSessionHandler(d.Sessions, entitlements, d.Logger)
	templateHandler := NewTemplateHandler(entitlements, d.Storage, d.Logger)
	paymentHandler := NewPaymentHandler(d.Payments, cfg.Razorpay.KeyID, d.Logger)
	wsHandler := NewWsHandler(redisFeed{client: d.Redis}, d.Auth, d.Logger, cfg.API.CORSOrigins)

	authMiddleware := middleware.AuthMiddleware(d.Auth)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/verify-email", authHandler.VerifyEmail)
			authGroup.POST("/resend-verification", authHandler.ResendVerification)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
			authGroup.GET("/profile", authMiddleware, passwordGate, authHandler.Profile)
			authGroup.POST("/upload-image", authMiddleware, passwordGate, authHandler.UploadImage)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware, passwordGate)

		resumeGroup := protected.Group("/resumes")
		{
			resumeGroup.GET("", resumeHandler.ListResumes)
			resumeGroup.POST("", resumeHandler.CreateResume)
			resumeGroup.GET("/:id", resumeHandler.GetResume)
			resumeGroup.PUT("/:id", resumeHandler.UpdateResume)
			resumeGroup.DELETE("/:id", resumeHandler.DeleteResume)
			resumeGroup.GET("/:id/preview", resumeHandler.Preview)
			resumeGroup.GET("/:id/thumbnail", resumeHandler.Thumbnail)
			resumeGroup.POST("/:id/export", resumeHandler.ExportResume)
			resumeGroup.GET("/:id/download-link", resumeHandler.GetDownloadLink)
			resumeGroup.POST("/:id/email", resumeHandler.EmailResume)

			resumeGroup.POST("/:id/session", sessionHandler.Open)
			resumeGroup.POST("/:id/edits", sessionHandler.Edit)
			resumeGroup.POST("/:id/save", sessionHandler.Save)
			resumeGroup.POST("/:id/session/export", sessionHandler.Export)
			resumeGroup.DELETE("/:id/session", sessionHandler.Close)
		}

		protected.GET("/templates", templateHandler.ListTemplates)
		protected.GET("/templates/:id", templateHandler.GetTemplate)
		protected.GET("/templates/:id/preview", templateHandler.Preview)

		paymentGroup := protected.Group("/payments")
		{
			paymentGroup.POST("/orders", paymentHandler.CreateOrder)
			paymentGroup.POST("/verify", paymentHandler.VerifyPayment)
			paymentGroup.GET("/history", paymentHandler.History)
		}

		assetGroup := protected.Group("/assets")
		{
			assetGroup.POST("/upload", assetHandler.UploadAsset)
			assetGroup.GET("/view", assetHandler.GetAssetURL)
		}
	}
}
