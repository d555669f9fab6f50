package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resumeCraft/internal/config"
)

// InitDatabase 连接 PostgreSQL 并配置连接池。容器编排下数据库可能晚于服务就绪，
// 因此 Ping 失败时按 ConnectRetries 重试，间隔逐次翻倍（上限 10 秒）。
func InitDatabase(cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap db: %w", err)
	}
	sqlDB.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 5))
	sqlDB.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 25))
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	err = retry(context.Background(), cfg.ConnectRetries, time.Second, func(ctx context.Context, attempt int) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err := sqlDB.PingContext(pingCtx)
		if err != nil {
			log.Warn("database not ready", slog.Int("attempt", attempt), slog.Any("error", err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("database connection ready",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("db", cfg.Name),
	)
	return db, nil
}

// retry 最多执行 fn retries+1 次。
func retry(ctx context.Context, retries int, backoff time.Duration, fn func(ctx context.Context, attempt int) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx, attempt); err == nil || attempt > retries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 10*time.Second)
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Migrate 执行 AutoMigrate。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
