package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"resumeCraft/internal/database"
)

type Payments struct {
	db *gorm.DB
}

func NewPayments(db *gorm.DB) *Payments {
	return &Payments{db: db}
}

func (r *Payments) Create(ctx context.Context, p *database.Payment) error {
	if p.Status == "" {
		p.Status = database.PaymentCreated
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// ByOrderID 只返回属于 userID 的订单。
func (r *Payments) ByOrderID(ctx context.Context, userID uint, orderID string) (*database.Payment, error) {
	var p database.Payment
	err := r.db.WithContext(ctx).Where("order_id = ? AND user_id = ?", orderID, userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	return &p, nil
}

// MarkPaid 在同一事务中标记订单已支付并升级用户计划。
func (r *Payments) MarkPaid(ctx context.Context, p *database.Payment, paymentID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(p).Updates(map[string]any{
			"payment_id":  paymentID,
			"status":      database.PaymentPaid,
			"verified_at": at,
		}).Error; err != nil {
			return fmt.Errorf("mark payment paid: %w", err)
		}
		if err := tx.Model(&database.User{}).Where("id = ?", p.UserID).Update("plan", p.Plan).Error; err != nil {
			return fmt.Errorf("upgrade plan: %w", err)
		}
		return nil
	})
}

func (r *Payments) MarkRejected(ctx context.Context, p *database.Payment, paymentID string) error {
	err := r.db.WithContext(ctx).Model(p).Updates(map[string]any{
		"payment_id": paymentID,
		"status":     database.PaymentRejected,
	}).Error
	if err != nil {
		return fmt.Errorf("mark payment rejected: %w", err)
	}
	return nil
}

func (r *Payments) ListByUser(ctx context.Context, userID uint) ([]database.Payment, error) {
	var out []database.Payment
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}
