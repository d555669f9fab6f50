package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Razorpay RazorpayConfig `mapstructure:"razorpay"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Session  SessionConfig  `mapstructure:"session"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port                  int           `mapstructure:"port"`
	CORSOrigins           []string      `mapstructure:"cors_origins"`
	CookieDomain          string        `mapstructure:"cookie_domain"`
	MaxResumesPerUser     int           `mapstructure:"max_resumes_per_user"`
	LoginRateLimitPerHour int           `mapstructure:"login_rate_limit_per_hour"`
	LoginLockThreshold    int           `mapstructure:"login_lock_threshold"`
	LoginLockTTL          time.Duration `mapstructure:"login_lock_ttl"`
	// FrontendURL 用于拼接邮件中的验证链接。
	FrontendURL string `mapstructure:"frontend_url"`
}

// LogConfig 控制 slog 的输出格式与级别。
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// ConnectRetries 是启动时 Ping 失败后的重试次数。
	ConnectRetries int `mapstructure:"connect_retries"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
}

// Addr 返回 host:port。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// AuthConfig 包含 JWT 密钥与有效期。
type AuthConfig struct {
	PrivateKeyPath  string        `mapstructure:"private_key_path"`
	PublicKeyPath   string        `mapstructure:"public_key_path"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	VerificationTTL time.Duration `mapstructure:"verification_ttl"`
}

// SMTPConfig 为空 Host 时邮件功能关闭。
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func (s SMTPConfig) Enabled() bool { return strings.TrimSpace(s.Host) != "" }

// RazorpayConfig 为空 KeyID 时支付接口返回 503。
type RazorpayConfig struct {
	KeyID     string `mapstructure:"key_id"`
	KeySecret string `mapstructure:"key_secret"`
	// PremiumAmount 以最小货币单位计（INR 为 paise）。
	PremiumAmount int64  `mapstructure:"premium_amount"`
	Currency      string `mapstructure:"currency"`
}

func (r RazorpayConfig) Enabled() bool { return strings.TrimSpace(r.KeyID) != "" }

// RendererConfig 选择光栅化后端。
type RendererConfig struct {
	Backend        string        `mapstructure:"backend"`
	ChromePath     string        `mapstructure:"chrome_path"`
	Timeout        time.Duration `mapstructure:"timeout"`
	JPEGQuality    int           `mapstructure:"jpeg_quality"`
	ThumbnailScale float64       `mapstructure:"thumbnail_scale"`
}

// SessionConfig 控制编辑会话的回收。
type SessionConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"`
}

// AssetsConfig 限制用户上传的图片。
type AssetsConfig struct {
	ClamdAddr        string   `mapstructure:"clamd_addr"`
	MaxBytes         int64    `mapstructure:"max_bytes"`
	MIMEWhitelist    []string `mapstructure:"mime_whitelist"`
	MaxAssetsPerUser int      `mapstructure:"max_assets_per_user"`
	MaxUploadsPerDay int      `mapstructure:"max_uploads_per_day"`
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration from environment variables (with optional defaults).
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("api.max_resumes_per_user", 20)
	v.SetDefault("api.login_rate_limit_per_hour", 10)
	v.SetDefault("api.login_lock_threshold", 5)
	v.SetDefault("api.login_lock_ttl", 15*time.Minute)
	v.SetDefault("api.frontend_url", "http://localhost:5173")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "resumecraft")
	v.SetDefault("database.user", "resumecraft")
	v.SetDefault("database.password", "resumecraft")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "resumes")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.private_key_path", "keys/jwt_private.pem")
	v.SetDefault("auth.public_key_path", "keys/jwt_public.pem")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.verification_ttl", 24*time.Hour)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("razorpay.premium_amount", 49900)
	v.SetDefault("razorpay.currency", "INR")
	v.SetDefault("renderer.backend", "rod")
	v.SetDefault("renderer.timeout", 30*time.Second)
	v.SetDefault("renderer.jpeg_quality", 80)
	v.SetDefault("renderer.thumbnail_scale", 0.3)
	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("session.op_timeout", 2*time.Minute)
	v.SetDefault("assets.max_bytes", 5*1024*1024)
	v.SetDefault("assets.mime_whitelist", []string{"image/png", "image/jpeg", "image/webp"})
	v.SetDefault("assets.max_assets_per_user", 50)
	v.SetDefault("assets.max_uploads_per_day", 30)
	v.SetDefault("worker.concurrency", 10)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                      "API_PORT",
		"api.cors_origins":              "API_CORS_ORIGINS",
		"api.cookie_domain":             "API_COOKIE_DOMAIN",
		"api.max_resumes_per_user":      "API_MAX_RESUMES_PER_USER",
		"api.login_rate_limit_per_hour": "API_LOGIN_RATE_LIMIT_PER_HOUR",
		"api.login_lock_threshold":      "API_LOGIN_LOCK_THRESHOLD",
		"api.login_lock_ttl":            "API_LOGIN_LOCK_TTL",
		"api.frontend_url":              "FRONTEND_URL",
		"log.level":                     "LOG_LEVEL",
		"log.format":                    "LOG_FORMAT",
		"database.host":                 "DATABASE_HOST",
		"database.port":                 "DATABASE_PORT",
		"database.name":                 "POSTGRES_DB",
		"database.user":                 "POSTGRES_USER",
		"database.password":             "POSTGRES_PASSWORD",
		"database.sslmode":              "DATABASE_SSLMODE",
		"database.max_open_conns":       "DATABASE_MAX_OPEN_CONNS",
		"database.max_idle_conns":       "DATABASE_MAX_IDLE_CONNS",
		"database.conn_max_lifetime":    "DATABASE_CONN_MAX_LIFETIME",
		"database.connect_retries":      "DATABASE_CONNECT_RETRIES",
		"redis.host":                    "REDIS_HOST",
		"redis.port":                    "REDIS_PORT",
		"redis.password":                "REDIS_PASSWORD",
		"minio.endpoint":                "MINIO_ENDPOINT",
		"minio.public_endpoint":         "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":           "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":       "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                 "MINIO_USE_SSL",
		"minio.bucket":                  "MINIO_BUCKET",
		"minio.region":                  "MINIO_REGION",
		"minio.bucket_lookup":           "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":      "MINIO_AUTO_CREATE_BUCKET",
		"auth.private_key_path":         "JWT_PRIVATE_KEY_PATH",
		"auth.public_key_path":          "JWT_PUBLIC_KEY_PATH",
		"auth.access_token_ttl":         "JWT_ACCESS_TOKEN_TTL",
		"auth.refresh_token_ttl":        "JWT_REFRESH_TOKEN_TTL",
		"auth.verification_ttl":         "EMAIL_VERIFICATION_TTL",
		"smtp.host":                     "SMTP_HOST",
		"smtp.port":                     "SMTP_PORT",
		"smtp.username":                 "SMTP_USERNAME",
		"smtp.password":                 "SMTP_PASSWORD",
		"smtp.from":                     "SMTP_FROM",
		"razorpay.key_id":               "RAZORPAY_KEY_ID",
		"razorpay.key_secret":           "RAZORPAY_KEY_SECRET",
		"razorpay.premium_amount":       "RAZORPAY_PREMIUM_AMOUNT",
		"razorpay.currency":             "RAZORPAY_CURRENCY",
		"renderer.backend":              "RENDERER_BACKEND",
		"renderer.chrome_path":          "CHROME_PATH",
		"renderer.timeout":              "RENDERER_TIMEOUT",
		"renderer.jpeg_quality":         "RENDERER_JPEG_QUALITY",
		"renderer.thumbnail_scale":      "RENDERER_THUMBNAIL_SCALE",
		"session.idle_ttl":              "SESSION_IDLE_TTL",
		"session.sweep_interval":        "SESSION_SWEEP_INTERVAL",
		"session.op_timeout":            "SESSION_OP_TIMEOUT",
		"assets.clamd_addr":             "CLAMD_ADDR",
		"assets.max_bytes":              "ASSETS_MAX_BYTES",
		"assets.mime_whitelist":         "ASSETS_MIME_WHITELIST",
		"assets.max_assets_per_user":    "ASSETS_MAX_PER_USER",
		"assets.max_uploads_per_day":    "ASSETS_MAX_UPLOADS_PER_DAY",
		"worker.concurrency":            "WORKER_CONCURRENCY",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Auth.AccessTokenTTL <= 0 || cfg.Auth.RefreshTokenTTL <= 0 {
		return errors.New("jwt token ttl must be positive")
	}
	if cfg.SMTP.Enabled() && cfg.SMTP.From == "" {
		return errors.New("smtp from is required when smtp host is set")
	}
	if cfg.Razorpay.Enabled() && cfg.Razorpay.KeySecret == "" {
		return errors.New("razorpay key secret is required when key id is set")
	}
	if cfg.Razorpay.PremiumAmount <= 0 {
		return errors.New("razorpay premium amount must be positive")
	}
	switch strings.ToLower(cfg.Renderer.Backend) {
	case "", "rod", "chromedp", "disabled":
	default:
		return fmt.Errorf("unknown renderer backend %q", cfg.Renderer.Backend)
	}
	if cfg.Renderer.ThumbnailScale <= 0 || cfg.Renderer.ThumbnailScale > 1 {
		return errors.New("renderer thumbnail scale must be in (0,1]")
	}
	return nil
}
