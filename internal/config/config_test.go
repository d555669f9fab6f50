package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, "rod", cfg.Renderer.Backend)
	assert.Equal(t, 0.3, cfg.Renderer.ThumbnailScale)
	assert.False(t, cfg.SMTP.Enabled())
	assert.False(t, cfg.Razorpay.Enabled())
	assert.Equal(t, []string{"image/png", "image/jpeg", "image/webp"}, cfg.Assets.MIMEWhitelist)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("SESSION_IDLE_TTL", "5m")
	t.Setenv("RENDERER_BACKEND", "chromedp")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FROM", "noreply@example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, "chromedp", cfg.Renderer.Backend)
	assert.True(t, cfg.SMTP.Enabled())
}

func TestLoad_DotEnvFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RAZORPAY_KEY_ID=rzp_test\nRAZORPAY_KEY_SECRET=shh\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("RAZORPAY_KEY_ID")
		os.Unsetenv("RAZORPAY_KEY_SECRET")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rzp_test", cfg.Razorpay.KeyID)
	assert.True(t, cfg.Razorpay.Enabled())
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing minio key":   {"MINIO_ACCESS_KEY_ID": ""},
		"smtp without from":   {"SMTP_HOST": "smtp.example.com"},
		"unknown backend":     {"RENDERER_BACKEND": "wkhtmltopdf"},
		"bad thumbnail scale": {"RENDERER_THUMBNAIL_SCALE": "2"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
