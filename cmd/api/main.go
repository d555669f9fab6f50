package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumeCraft/internal/api"
	"resumeCraft/internal/assets"
	"resumeCraft/internal/auth"
	"resumeCraft/internal/config"
	"resumeCraft/internal/database"
	"resumeCraft/internal/logging"
	"resumeCraft/internal/payment"
	"resumeCraft/internal/preview"
	"resumeCraft/internal/rasterizer"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/session"
	"resumeCraft/internal/storage"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.New(cfg.Log)

	if err := run(cfg, logger); err != nil {
		logger.Error("api server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("api bootstrapping",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
	)

	db, err := database.InitDatabase(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	logger.Info("database migrated")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password})
	defer queue.Close()

	storageClient, err := storage.NewClient(cfg.MinIO, logger)
	if err != nil {
		return fmt.Errorf("init storage client: %w", err)
	}

	authService, err := loadAuthService(cfg.Auth)
	if err != nil {
		return err
	}

	raster, err := rasterizer.New(rasterizer.Options{
		Backend:     cfg.Renderer.Backend,
		ChromePath:  cfg.Renderer.ChromePath,
		Timeout:     cfg.Renderer.Timeout,
		JPEGQuality: cfg.Renderer.JPEGQuality,
	}, logger)
	if err != nil {
		return fmt.Errorf("init rasterizer: %w", err)
	}
	surface := preview.NewSurface(nil, raster, logger)

	sessions := session.NewManager(session.Deps{
		Store:          repository.NewResumes(db),
		Capture:        surface,
		Thumbs:         storageClient,
		Logger:         logger,
		ThumbnailScale: cfg.Renderer.ThumbnailScale,
		OpTimeout:      cfg.Session.OpTimeout,
	}, cfg.Session.IdleTTL)
	go sessions.Run(ctx, cfg.Session.SweepInterval)

	var payments *payment.Service
	if cfg.Razorpay.Enabled() {
		payments = payment.NewService(
			payment.NewRazorpay(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret),
			repository.NewPayments(db),
			payment.Options{Amount: cfg.Razorpay.PremiumAmount, Currency: cfg.Razorpay.Currency},
			logger,
		)
	} else {
		logger.Warn("razorpay not configured, payment endpoints disabled")
	}

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, api.Deps{
		Config:   cfg,
		DB:       db,
		Redis:    redisClient,
		Queue:    queue,
		Auth:     authService,
		Storage:  storageClient,
		Surface:  surface,
		Photos:   assets.NewResolver(storageClient, logger),
		Sessions: sessions,
		Payments: payments,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadAuthService(cfg config.AuthConfig) (*auth.AuthService, error) {
	privateKey, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read jwt private key: %w", err)
	}
	publicKey, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read jwt public key: %w", err)
	}
	svc, err := auth.NewAuthService(privateKey, publicKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}
	return svc, nil
}
