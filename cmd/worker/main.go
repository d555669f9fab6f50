package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumeCraft/internal/assets"
	"resumeCraft/internal/config"
	"resumeCraft/internal/database"
	"resumeCraft/internal/logging"
	"resumeCraft/internal/mailer"
	"resumeCraft/internal/metrics"
	"resumeCraft/internal/preview"
	"resumeCraft/internal/rasterizer"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/storage"
	"resumeCraft/internal/tasks"
	"resumeCraft/internal/worker"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.New(cfg.Log)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.InitDatabase(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	storageClient, err := storage.NewClient(cfg.MinIO, logger)
	if err != nil {
		return fmt.Errorf("init storage client: %w", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
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

	var (
		surface  = preview.NewSurface(nil, raster, logger)
		resumes  = repository.NewResumes(db)
		photos   = assets.NewResolver(storageClient, logger)
		notifier = worker.NewRedisNotifier(redisClient)
		sender   = mailer.New(cfg.SMTP, logger)
	)

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Logger:      newAsynqLogger(logger),
		},
	)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypePDFGenerate, worker.NewExportTaskHandler(resumes, storageClient, surface, photos, notifier, logger, cfg.Renderer.ThumbnailScale))
	mux.Handle(tasks.TypeEmailSend, worker.NewEmailTaskHandler(sender, resumes, storageClient, surface, photos, notifier, logger))
	mux.Handle(tasks.TypeTemplatePreview, worker.NewTemplatePreviewHandler(surface, storageClient, logger, cfg.Renderer.ThumbnailScale))

	logger.Info("worker service started",
		slog.String("redis_addr", cfg.Redis.Addr()),
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.Bool("smtp_enabled", cfg.SMTP.Enabled()),
	)
	return server.Run(mux)
}

// asynqLogger 把 asynq 的内部日志接到 slog。
type asynqLogger struct {
	l *slog.Logger
}

func newAsynqLogger(l *slog.Logger) asynqLogger {
	return asynqLogger{l: l.With(slog.String("component", "asynq"))}
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
