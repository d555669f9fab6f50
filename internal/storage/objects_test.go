package storage

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"resumeCraft/internal/config"
)

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "resumes/7/abc/thumbnail.jpg", ThumbnailKey(7, "abc"))
	assert.Equal(t, "resumes/7/abc/abc.pdf", PDFKey(7, "abc"))
	assert.True(t, strings.HasPrefix(PDFKey(7, "abc"), ResumePrefix(7, "abc")))

	key := AssetKey(3, "image/webp")
	assert.True(t, strings.HasPrefix(key, "user-assets/3/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))
	assert.True(t, strings.HasSuffix(AssetKey(3, "image/jpeg"), ".jpg"))
	assert.True(t, strings.HasSuffix(AssetKey(3, ""), ".png"))
	assert.Equal(t, "templates/02/preview.jpg", TemplatePreviewKey("02"))
}

func TestNewClient_RejectsBadConfig(t *testing.T) {
	base := config.MinIOConfig{
		Endpoint:        "localhost:9000",
		PublicEndpoint:  "http://localhost:9000",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
		Bucket:          "resumes",
	}

	bad := base
	bad.BucketLookup = "virtual"
	_, err := NewClient(bad, nil)
	assert.ErrorContains(t, err, "bucket lookup")

	bad = base
	bad.PublicEndpoint = ""
	_, err = NewClient(bad, nil)
	assert.ErrorContains(t, err, "host missing")
}

func TestThumbnailURL(t *testing.T) {
	assert.Equal(t, "/v1/resumes/abc/thumbnail?v=42", ThumbnailURL("abc", 42))
}

func TestIsNoSuchKey(t *testing.T) {
	assert.True(t, IsNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, IsNoSuchBucket(minio.ErrorResponse{Code: "NoSuchBucket"}))
	assert.False(t, IsNoSuchKey(errors.New("connection refused")))
	assert.False(t, IsNoSuchKey(nil))

	wrapped := fmt.Errorf("get object: %w", minio.ErrorResponse{StatusCode: http.StatusNotFound})
	assert.True(t, IsNoSuchKey(wrapped))
	assert.False(t, IsNoSuchKey(minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}))
	assert.True(t, IsNoSuchBucket(errors.New("proxy: The specified bucket does not exist")))
}
