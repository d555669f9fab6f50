package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 对象键布局：
//
//	resumes/<userID>/<resumeID>/thumbnail.jpg
//	resumes/<userID>/<resumeID>/<resumeID>.pdf
//	user-assets/<userID>/<uuid>.<ext>
//	templates/<themeID>/preview.jpg
const (
	resumePrefix   = "resumes"
	assetPrefix    = "user-assets"
	templatePrefix = "templates"

	// MaxPresignTTL 是 S3 预签名链接允许的最长有效期。
	MaxPresignTTL = 7 * 24 * time.Hour
)

func ResumePrefix(userID uint, resumeID string) string {
	return fmt.Sprintf("%s/%d/%s/", resumePrefix, userID, resumeID)
}

func ThumbnailKey(userID uint, resumeID string) string {
	return ResumePrefix(userID, resumeID) + "thumbnail.jpg"
}

func PDFKey(userID uint, resumeID string) string {
	return ResumePrefix(userID, resumeID) + resumeID + ".pdf"
}

func AssetPrefix(userID uint) string {
	return fmt.Sprintf("%s/%d/", assetPrefix, userID)
}

// AssetKey 为新上传的图片生成对象键，ext 取自 MIME 类型。
func AssetKey(userID uint, contentType string) string {
	return AssetPrefix(userID) + uuid.NewString() + extFor(contentType)
}

func extFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func TemplatePreviewKey(themeID string) string {
	return fmt.Sprintf("%s/%s/preview.jpg", templatePrefix, themeID)
}

// ThumbnailURL 是缩略图在 API 上的稳定地址，v 用于绕过缓存。
func ThumbnailURL(resumeID string, v int64) string {
	return fmt.Sprintf("/v1/resumes/%s/thumbnail?v=%d", resumeID, v)
}

// UploadThumbnail 保存 JPEG 缩略图并返回其 API 地址。
func (c *Client) UploadThumbnail(ctx context.Context, userID uint, resumeID string, jpeg []byte) (string, error) {
	if resumeID == "" {
		return "", fmt.Errorf("upload thumbnail: resume id required")
	}
	key := ThumbnailKey(userID, resumeID)
	if _, err := c.UploadFile(ctx, key, bytes.NewReader(jpeg), int64(len(jpeg)), "image/jpeg"); err != nil {
		return "", err
	}
	return ThumbnailURL(resumeID, time.Now().Unix()), nil
}

// UploadTemplatePreview 保存模板缩略图并返回对象键。
func (c *Client) UploadTemplatePreview(ctx context.Context, themeID string, jpeg []byte) (string, error) {
	key := TemplatePreviewKey(themeID)
	if _, err := c.UploadFile(ctx, key, bytes.NewReader(jpeg), int64(len(jpeg)), "image/jpeg"); err != nil {
		return "", err
	}
	return key, nil
}

// UploadPDF 保存导出的 PDF 并返回对象键。
func (c *Client) UploadPDF(ctx context.Context, userID uint, resumeID string, pdf []byte) (string, error) {
	key := PDFKey(userID, resumeID)
	if _, err := c.UploadFile(ctx, key, bytes.NewReader(pdf), int64(len(pdf)), "application/pdf"); err != nil {
		return "", err
	}
	return key, nil
}

// DownloadURL 生成以 fileName 作为附件名的下载链接。
func (c *Client) DownloadURL(ctx context.Context, key, fileName string, ttl time.Duration) (string, error) {
	if ttl <= 0 || ttl > MaxPresignTTL {
		ttl = MaxPresignTTL
	}
	params := map[string]string{
		"response-content-disposition": fmt.Sprintf("attachment; filename=%q", path.Base(fileName)),
	}
	return c.GeneratePresignedURLWithParams(ctx, key, ttl, params)
}

// ReadAll 读取整个对象。
func (c *Client) ReadAll(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return buf.Bytes(), nil
}
