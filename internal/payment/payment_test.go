package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeCraft/internal/auth"
	"resumeCraft/internal/database"
	"resumeCraft/internal/errcode"
	"resumeCraft/internal/repository"
)

type fakeGateway struct {
	err      error
	validSig string
	orders   int
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, _ string) (Order, error) {
	if g.err != nil {
		return Order{}, g.err
	}
	g.orders++
	return Order{ID: "order_1", Amount: amount, Currency: currency}, nil
}

func (g *fakeGateway) VerifySignature(_, _, signature string) bool {
	return signature == g.validSig
}

type memStore struct {
	byOrder map[string]*database.Payment
}

func newMemStore() *memStore { return &memStore{byOrder: map[string]*database.Payment{}} }

func (m *memStore) Create(_ context.Context, p *database.Payment) error {
	p.Status = database.PaymentCreated
	m.byOrder[p.OrderID] = p
	return nil
}

func (m *memStore) ByOrderID(_ context.Context, userID uint, orderID string) (*database.Payment, error) {
	p, ok := m.byOrder[orderID]
	if !ok || p.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (m *memStore) MarkPaid(_ context.Context, p *database.Payment, paymentID string, at time.Time) error {
	p.Status, p.PaymentID, p.VerifiedAt = database.PaymentPaid, paymentID, &at
	return nil
}

func (m *memStore) MarkRejected(_ context.Context, p *database.Payment, paymentID string) error {
	p.Status, p.PaymentID = database.PaymentRejected, paymentID
	return nil
}

func (m *memStore) ListByUser(_ context.Context, userID uint) ([]database.Payment, error) {
	var out []database.Payment
	for _, p := range m.byOrder {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func TestCreateOrder(t *testing.T) {
	gw := &fakeGateway{}
	store := newMemStore()
	svc := NewService(gw, store, Options{Amount: 49900}, nil)
	basic := auth.Identity{UserID: 7, Plan: auth.PlanBasic}

	order, err := svc.CreateOrder(context.Background(), basic, "premium")
	require.NoError(t, err)
	assert.Equal(t, Order{ID: "order_1", Amount: 49900, Currency: "INR"}, order)
	assert.Equal(t, uint(7), store.byOrder["order_1"].UserID)

	_, err = svc.CreateOrder(context.Background(), basic, "gold")
	assert.ErrorIs(t, err, ErrUnknownPlan)

	_, err = svc.CreateOrder(context.Background(), auth.Identity{UserID: 7, Plan: auth.PlanPremium}, "premium")
	assert.ErrorIs(t, err, ErrAlreadyPremium)

	gw.err = errors.New("gateway down")
	_, err = svc.CreateOrder(context.Background(), basic, "premium")
	assert.ErrorIs(t, err, errcode.ErrPaymentFailed)
}

func TestVerify(t *testing.T) {
	gw := &fakeGateway{validSig: "good"}
	store := newMemStore()
	svc := NewService(gw, store, Options{Amount: 49900}, nil)
	id := auth.Identity{UserID: 7}

	_, err := svc.CreateOrder(context.Background(), id, "premium")
	require.NoError(t, err)

	err = svc.Verify(context.Background(), auth.Identity{UserID: 8}, "order_1", "pay_1", "good")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	err = svc.Verify(context.Background(), id, "order_1", "pay_1", "forged")
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.ErrorIs(t, err, errcode.ErrPaymentFailed)
	assert.Equal(t, database.PaymentRejected, store.byOrder["order_1"].Status)

	require.NoError(t, svc.Verify(context.Background(), id, "order_1", "pay_1", "good"))
	assert.Equal(t, database.PaymentPaid, store.byOrder["order_1"].Status)

	// 重复校验幂等
	require.NoError(t, svc.Verify(context.Background(), id, "order_1", "pay_1", "forged"))

	history, err := svc.History(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRazorpay_VerifySignature(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("order_1|pay_1"))
	sig := hex.EncodeToString(mac.Sum(nil))

	rp := NewRazorpay("rzp_test", "secret")
	assert.True(t, rp.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, rp.VerifySignature("order_1", "pay_2", sig))
}
