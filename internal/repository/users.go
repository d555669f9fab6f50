package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"resumeCraft/internal/database"
)

// ErrEmailTaken 表示邮箱已注册。
var ErrEmailTaken = errors.New("email already registered")

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// NormalizeEmail 去掉空白并转小写。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *Users) Create(ctx context.Context, user *database.User) error {
	user.Email = NormalizeEmail(user.Email)
	var n int64
	if err := r.db.WithContext(ctx).Model(&database.User{}).Where("email = ?", user.Email).Count(&n).Error; err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if n > 0 {
		return ErrEmailTaken
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Users) ByEmail(ctx context.Context, email string) (*database.User, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *Users) ByID(ctx context.Context, id uint) (*database.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Users) first(ctx context.Context, query string, arg any) (*database.User, error) {
	var user database.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// SetPlan 更新订阅计划。
func (r *Users) SetPlan(ctx context.Context, id uint, plan string) error {
	return r.update(ctx, id, map[string]any{"plan": plan})
}

func (r *Users) MarkVerified(ctx context.Context, id uint) error {
	return r.update(ctx, id, map[string]any{"email_verified": true})
}

func (r *Users) SetProfileImage(ctx context.Context, id uint, url string) error {
	return r.update(ctx, id, map[string]any{"profile_image_url": url})
}

// SetPassword 更新密码哈希，并写入是否需要下次登录修改。
func (r *Users) SetPassword(ctx context.Context, id uint, hash string, mustChange bool) error {
	return r.update(ctx, id, map[string]any{"password_hash": hash, "must_change_password": mustChange})
}

func (r *Users) update(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PlanOf 返回用户当前的套餐。
func (r *Users) PlanOf(ctx context.Context, id uint) (string, error) {
	user, err := r.ByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Plan, nil
}
