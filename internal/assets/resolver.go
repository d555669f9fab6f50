package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"resumeCraft/internal/resume"
	"resumeCraft/internal/storage"
)

// ObjectReader 由 *storage.Client 实现。
type ObjectReader interface {
	ReadAll(ctx context.Context, key string) ([]byte, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// Resolver 把 profile.photoUrl 中的对象键换成可加载的地址。
// 其他字段与外部 URL 原样保留。
type Resolver struct {
	objects ObjectReader
	logger  *slog.Logger
	ttl     time.Duration
}

func NewResolver(objects ObjectReader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{objects: objects, logger: logger, ttl: 15 * time.Minute}
}

// ForPrint 把照片内联为 data URI，供无头浏览器离线渲染。
// 对象缺失或键不合法时去掉照片并在 missing 中返回该键；Bucket 缺失等系统错误直接返回。
func (r *Resolver) ForPrint(ctx context.Context, userID uint, doc resume.Document) (resume.Document, []string, error) {
	key := strings.TrimSpace(doc.Profile.PhotoURL)
	if !looksLikeAssetKey(key) {
		return doc, nil, nil
	}
	out := doc.Clone()
	if !IsUserAssetKey(userID, key) {
		r.logger.Warn("assets: photo key rejected", slog.String("object_key", key))
		out.Profile.PhotoURL = ""
		return out, []string{key}, nil
	}

	data, err := r.objects.ReadAll(ctx, key)
	if err != nil {
		if storage.IsNoSuchBucket(err) {
			return doc, nil, fmt.Errorf("minio bucket does not exist: %w", err)
		}
		if storage.IsNoSuchKey(err) {
			r.logger.Warn("assets: photo object missing", slog.String("object_key", key))
			out.Profile.PhotoURL = ""
			return out, []string{key}, nil
		}
		return doc, nil, fmt.Errorf("read photo: %w", err)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		out.Profile.PhotoURL = ""
		return out, []string{key}, nil
	}
	out.Profile.PhotoURL = fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	return out, nil, nil
}

// ForBrowser 把照片换成短期预签名链接；失败时去掉照片。
func (r *Resolver) ForBrowser(ctx context.Context, userID uint, doc resume.Document) resume.Document {
	key := strings.TrimSpace(doc.Profile.PhotoURL)
	if !looksLikeAssetKey(key) {
		return doc
	}
	out := doc.Clone()
	out.Profile.PhotoURL = ""
	if !IsUserAssetKey(userID, key) {
		return out
	}
	url, err := r.objects.GeneratePresignedURL(ctx, key, r.ttl)
	if err != nil {
		r.logger.Warn("assets: presign photo failed", slog.String("object_key", key), slog.Any("error", err))
		return out
	}
	out.Profile.PhotoURL = url
	return out
}
