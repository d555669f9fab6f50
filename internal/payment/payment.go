// Package payment 处理高级套餐的下单与支付校验。
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"resumeCraft/internal/auth"
	"resumeCraft/internal/database"
	"resumeCraft/internal/errcode"
	"resumeCraft/internal/repository"
)

var (
	ErrUnknownPlan    = errors.New("unknown plan")
	ErrAlreadyPremium = errors.New("already on premium plan")
	ErrBadSignature   = errors.New("payment signature mismatch")
	ErrOrderNotFound  = errors.New("order not found")
)

// Order 是网关返回的订单。
type Order struct {
	ID       string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Gateway 抽象支付网关。
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// Store 由 *repository.Payments 实现。
type Store interface {
	Create(ctx context.Context, p *database.Payment) error
	ByOrderID(ctx context.Context, userID uint, orderID string) (*database.Payment, error)
	MarkPaid(ctx context.Context, p *database.Payment, paymentID string, at time.Time) error
	MarkRejected(ctx context.Context, p *database.Payment, paymentID string) error
	ListByUser(ctx context.Context, userID uint) ([]database.Payment, error)
}

type Options struct {
	Amount   int64
	Currency string
}

type Service struct {
	gateway Gateway
	store   Store
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(gateway Gateway, store Store, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &Service{gateway: gateway, store: store, opts: opts, logger: logger, now: time.Now}
}

// CreateOrder 为 planType 下单。目前只有 premium 一档。
func (s *Service) CreateOrder(ctx context.Context, id auth.Identity, planType string) (Order, error) {
	if planType != auth.PlanPremium {
		return Order{}, fmt.Errorf("%w: %q", ErrUnknownPlan, planType)
	}
	if id.Premium() {
		return Order{}, ErrAlreadyPremium
	}

	receipt := fmt.Sprintf("u%d-%d", id.UserID, s.now().Unix())
	order, err := s.gateway.CreateOrder(ctx, s.opts.Amount, s.opts.Currency, receipt)
	if err != nil {
		s.logger.Error("payment: create order failed", slog.Uint64("user_id", uint64(id.UserID)), slog.Any("error", err))
		return Order{}, fmt.Errorf("%w: %w", errcode.ErrPaymentFailed, err)
	}

	record := &database.Payment{
		UserID:   id.UserID,
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Plan:     planType,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return Order{}, fmt.Errorf("%w: %w", errcode.ErrPaymentFailed, err)
	}
	return order, nil
}

// Verify 校验回调签名，通过后升级套餐。已支付的订单重复校验直接成功。
func (s *Service) Verify(ctx context.Context, id auth.Identity, orderID, paymentID, signature string) error {
	record, err := s.store.ByOrderID(ctx, id.UserID, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %w", errcode.ErrPaymentFailed, err)
	}
	if record.Status == database.PaymentPaid {
		return nil
	}

	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		if err := s.store.MarkRejected(ctx, record, paymentID); err != nil {
			s.logger.Error("payment: mark rejected failed", slog.String("order_id", orderID), slog.Any("error", err))
		}
		return fmt.Errorf("%w: %w", errcode.ErrPaymentFailed, ErrBadSignature)
	}

	if err := s.store.MarkPaid(ctx, record, paymentID, s.now()); err != nil {
		return fmt.Errorf("%w: %w", errcode.ErrPaymentFailed, err)
	}
	s.logger.Info("payment: verified", slog.Uint64("user_id", uint64(id.UserID)), slog.String("order_id", orderID))
	return nil
}

func (s *Service) History(ctx context.Context, id auth.Identity) ([]database.Payment, error) {
	return s.store.ListByUser(ctx, id.UserID)
}
