// Package repository 是基于 gorm 的持久化服务。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"resumeCraft/internal/database"
	"resumeCraft/internal/resume"
)

// ErrNotFound 表示记录不存在或不属于当前用户。
var ErrNotFound = errors.New("record not found")

// Resumes 按 (用户, 公开 ID) 读写整份简历文档。
type Resumes struct {
	db *gorm.DB
}

func NewResumes(db *gorm.DB) *Resumes {
	return &Resumes{db: db}
}

// Create 为 ownerID 保存一份新简历并分配公开 ID。
func (r *Resumes) Create(ctx context.Context, ownerID uint, doc resume.Document) (resume.Document, error) {
	doc = doc.Normalize()
	doc.ID = uuid.NewString()

	content, err := encode(doc)
	if err != nil {
		return resume.Document{}, err
	}
	rec := database.Resume{
		PublicID:  doc.ID,
		Title:     doc.Title,
		Content:   content,
		ThemeID:   doc.Template.ThemeID,
		Thumbnail: doc.Thumbnail,
		Status:    database.StatusDraft,
		UserID:    ownerID,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return resume.Document{}, fmt.Errorf("create resume: %w", err)
	}
	return decode(rec)
}

// Get 读取 ownerID 名下的一份简历。
func (r *Resumes) Get(ctx context.Context, ownerID uint, id string) (resume.Document, error) {
	rec, err := r.Record(ctx, ownerID, id)
	if err != nil {
		return resume.Document{}, err
	}
	return decode(*rec)
}

// Record 返回底层模型，供导出任务更新状态使用。
func (r *Resumes) Record(ctx context.Context, ownerID uint, id string) (*database.Resume, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var rec database.Resume
	err := r.db.WithContext(ctx).
		Where("public_id = ? AND user_id = ?", id, ownerID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load resume: %w", err)
	}
	return &rec, nil
}

// Replace 整文档替换。doc.ID 为空时等同于 Create。
// doc.Thumbnail 为空时保留已有缩略图。
func (r *Resumes) Replace(ctx context.Context, ownerID uint, doc resume.Document) (resume.Document, error) {
	if doc.ID == "" {
		return r.Create(ctx, ownerID, doc)
	}
	rec, err := r.Record(ctx, ownerID, doc.ID)
	if err != nil {
		return resume.Document{}, err
	}

	doc = doc.Normalize()
	if doc.Thumbnail == "" {
		doc.Thumbnail = rec.Thumbnail
	}
	content, err := encode(doc)
	if err != nil {
		return resume.Document{}, err
	}

	err = r.db.WithContext(ctx).Model(rec).Updates(map[string]any{
		"title":     doc.Title,
		"content":   content,
		"theme_id":  doc.Template.ThemeID,
		"thumbnail": doc.Thumbnail,
	}).Error
	if err != nil {
		return resume.Document{}, fmt.Errorf("replace resume: %w", err)
	}
	return r.Get(ctx, ownerID, doc.ID)
}

// Delete 软删除。
func (r *Resumes) Delete(ctx context.Context, ownerID uint, id string) error {
	rec, err := r.Record(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(rec).Error; err != nil {
		return fmt.Errorf("delete resume: %w", err)
	}
	return nil
}

// List 按更新时间倒序返回 ownerID 的全部简历。
func (r *Resumes) List(ctx context.Context, ownerID uint) ([]resume.Document, error) {
	var recs []database.Resume
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	out := make([]resume.Document, 0, len(recs))
	for _, rec := range recs {
		doc, err := decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r *Resumes) Count(ctx context.Context, ownerID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&database.Resume{}).Where("user_id = ?", ownerID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count resumes: %w", err)
	}
	return n, nil
}

// SetExport 记录导出状态；objectKey 为空时不覆盖已有的 PDF 对象。
func (r *Resumes) SetExport(ctx context.Context, ownerID uint, id, status, objectKey string) error {
	updates := map[string]any{"status": status}
	if objectKey != "" {
		updates["pdf_object_key"] = objectKey
	}
	return r.update(ctx, ownerID, id, updates)
}

// ClaimExport 把状态置为 exporting。已有导出正在进行且更新时间晚于 staleBefore 时返回 false。
func (r *Resumes) ClaimExport(ctx context.Context, ownerID uint, id string, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&database.Resume{}).
		Where("public_id = ? AND user_id = ?", id, ownerID).
		Where("(status IS NULL OR status <> ? OR updated_at < ?)", database.StatusExporting, staleBefore).
		Update("status", database.StatusExporting)
	if res.Error != nil {
		return false, fmt.Errorf("claim export: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SetThumbnail 只更新缩略图地址。
func (r *Resumes) SetThumbnail(ctx context.Context, ownerID uint, id, url string) error {
	return r.update(ctx, ownerID, id, map[string]any{"thumbnail": url})
}

func (r *Resumes) update(ctx context.Context, ownerID uint, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&database.Resume{}).
		Where("public_id = ? AND user_id = ?", id, ownerID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update resume: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func encode(doc resume.Document) (datatypes.JSON, error) {
	doc.CreatedAt, doc.UpdatedAt = nil, nil
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode resume: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decode(rec database.Resume) (resume.Document, error) {
	var doc resume.Document
	if len(rec.Content) > 0 {
		if err := json.Unmarshal(rec.Content, &doc); err != nil {
			return resume.Document{}, fmt.Errorf("decode resume %s: %w", rec.PublicID, err)
		}
	}
	doc.ID = rec.PublicID
	if rec.Title != "" {
		doc.Title = rec.Title
	}
	doc.Thumbnail = rec.Thumbnail
	created, updated := rec.CreatedAt, rec.UpdatedAt
	doc.CreatedAt, doc.UpdatedAt = &created, &updated
	return doc.Normalize(), nil
}
