package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"resumeCraft/internal/database"
)

type Assets struct {
	db *gorm.DB
}

func NewAssets(db *gorm.DB) *Assets {
	return &Assets{db: db}
}

func (r *Assets) Create(ctx context.Context, asset database.Asset) error {
	if err := r.db.WithContext(ctx).Create(&asset).Error; err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (r *Assets) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&database.Asset{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return n, nil
}

// Owned 报告 key 是否为 userID 上传的对象。
func (r *Assets) Owned(ctx context.Context, userID uint, key string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&database.Asset{}).
		Where("user_id = ? AND object_key = ?", userID, key).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check asset: %w", err)
	}
	return n > 0, nil
}
