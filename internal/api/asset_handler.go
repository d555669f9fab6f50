package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"resumeCraft/internal/assets"
	"resumeCraft/internal/config"
	"resumeCraft/internal/database"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/storage"
)

const assetURLTTL = 15 * time.Minute

type assetStore interface {
	Create(ctx context.Context, asset database.Asset) error
	CountByUser(ctx context.Context, userID uint) (int64, error)
	Owned(ctx context.Context, userID uint, key string) (bool, error)
}

// assetStorage 由 *storage.Client 实现。
type assetStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

func newGormAssetStore(db *gorm.DB) assetStore {
	return repository.NewAssets(db)
}

// AssetHandler 负责处理用户图片的上传与访问。
type AssetHandler struct {
	store         assetStore
	Storage       assetStorage
	Logger        *slog.Logger
	ClamdAddr     string
	MaxBytes      int64
	MIMEWhitelist []string
	RedisClient   redisRateCounter

	maxAssetsPerUser int
	maxUploadsPerDay int
}

// NewAssetHandler 返回 AssetHandler 实例。
func NewAssetHandler(store assetStore, storageClient assetStorage, redisClient redisRateCounter, logger *slog.Logger, cfg config.AssetsConfig) *AssetHandler {
	return &AssetHandler{
		store:            store,
		Storage:          storageClient,
		Logger:           logger,
		ClamdAddr:        cfg.ClamdAddr,
		MaxBytes:         cfg.MaxBytes,
		MIMEWhitelist:    cfg.MIMEWhitelist,
		RedisClient:      redisClient,
		maxAssetsPerUser: cfg.MaxAssetsPerUser,
		maxUploadsPerDay: cfg.MaxUploadsPerDay,
	}
}

// UploadAsset 处理受保护的图片上传，并在上传前扫描病毒。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey, ok := h.accept(c, userID, "file")
	if !ok {
		return
	}

	url, err := h.Storage.GeneratePresignedURL(c.Request.Context(), objectKey, assetURLTTL)
	if err != nil {
		requestLogger(c, h.Logger).Warn("generate asset url", slog.String("objectKey", objectKey), slog.Any("error", err))
	}
	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey, "url": url})
}

// accept 校验、扫描并保存表单中的图片，返回对象 key。失败时已写好响应。
func (h *AssetHandler) accept(c *gin.Context, userID uint, field string) (string, bool) {
	ctx := c.Request.Context()
	logger := requestLogger(c, h.Logger).With(slog.Uint64("user_id", uint64(userID)))

	file, err := c.FormFile(field)
	if err != nil {
		BadRequest(c, "missing file")
		return "", false
	}
	if h.MaxBytes > 0 && file.Size > h.MaxBytes {
		Error(c, http.StatusRequestEntityTooLarge, "file too large")
		return "", false
	}

	if h.maxAssetsPerUser > 0 {
		count, err := h.store.CountByUser(ctx, userID)
		if err != nil {
			logger.Error("count assets", slog.Any("error", err))
			Internal(c, "failed to check asset quota")
			return "", false
		}
		if count >= int64(h.maxAssetsPerUser) {
			Forbidden(c, "asset limit reached")
			return "", false
		}
	}

	if h.RedisClient != nil {
		key := fmt.Sprintf("rate:upload:%d:%s", userID, time.Now().UTC().Format("20060102"))
		if overLimit(ctx, h.RedisClient, key, h.maxUploadsPerDay, 24*time.Hour) {
			TooMany(c, "daily upload limit reached")
			return "", false
		}
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return "", false
	}
	data, err := io.ReadAll(io.LimitReader(fileReader, file.Size+1))
	fileReader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return "", false
	}

	contentType := http.DetectContentType(data)
	if !slices.Contains(h.MIMEWhitelist, contentType) {
		Error(c, http.StatusUnsupportedMediaType, "unsupported file type")
		return "", false
	}

	if err := h.scan(data); err != nil {
		if errors.Is(err, errMalicious) {
			BadRequest(c, "malicious file detected")
			return "", false
		}
		logger.Error("scan file", slog.Any("error", err))
		Internal(c, "failed to scan file")
		return "", false
	}

	objectKey := storage.AssetKey(userID, contentType)
	if _, err := h.Storage.UploadFile(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		logger.Error("upload file", slog.Any("error", err))
		Error(c, http.StatusBadGateway, "failed to upload file")
		return "", false
	}

	if err := h.store.Create(ctx, database.Asset{
		UserID:      userID,
		ObjectKey:   objectKey,
		ContentType: contentType,
		Size:        int64(len(data)),
	}); err != nil {
		logger.Error("record asset", slog.Any("error", err))
		if derr := h.Storage.DeleteObject(ctx, objectKey); derr != nil {
			logger.Warn("cleanup orphan asset", slog.String("objectKey", objectKey), slog.Any("error", derr))
		}
		Internal(c, "failed to record asset")
		return "", false
	}

	logger.Info("asset uploaded", slog.String("objectKey", objectKey), slog.String("content_type", contentType))
	return objectKey, true
}

var errMalicious = errors.New("malicious file")

// scan 在未配置 clamd 时直接放行。
func (h *AssetHandler) scan(data []byte) error {
	if h.ClamdAddr == "" {
		return nil
	}
	clamdClient := clamd.NewClamd(h.ClamdAddr)

	abortChan := make(chan bool)
	defer close(abortChan)
	scanChan, err := clamdClient.ScanStream(bytes.NewReader(data), abortChan)
	if err != nil {
		return err
	}

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return errMalicious
		}
	}
	return nil
}

// GetAssetURL 返回资产的临时预签名 URL。
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}

	if !assets.IsUserAssetKey(userID, objectKey) {
		Forbidden(c, "access denied")
		return
	}
	owned, err := h.store.Owned(c.Request.Context(), userID, objectKey)
	if err != nil {
		requestLogger(c, h.Logger).Error("lookup asset", slog.Any("error", err))
		Internal(c, "failed to query asset")
		return
	}
	if !owned {
		NotFound(c, "asset not found")
		return
	}

	signedURL, err := h.Storage.GeneratePresignedURL(c.Request.Context(), objectKey, assetURLTTL)
	if err != nil {
		requestLogger(c, h.Logger).Error("generate presigned url", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}
