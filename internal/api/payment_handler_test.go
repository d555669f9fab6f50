package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeCraft/internal/auth"
	"resumeCraft/internal/database"
	"resumeCraft/internal/errcode"
	"resumeCraft/internal/payment"
	"resumeCraft/internal/repository"
)

type stubGateway struct {
	err error
}

func (g stubGateway) CreateOrder(_ context.Context, amount int64, currency, _ string) (payment.Order, error) {
	if g.err != nil {
		return payment.Order{}, g.err
	}
	return payment.Order{ID: "order_1", Amount: amount, Currency: currency}, nil
}

func (stubGateway) VerifySignature(_, _, signature string) bool {
	return signature == "good"
}

func newPaymentFixture(t *testing.T, gw payment.Gateway) (*PaymentHandler, *repository.Users, *auth.Identity) {
	t.Helper()
	db := newTestDB(t)
	users := repository.NewUsers(db)
	u := database.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "x", Plan: auth.PlanBasic}
	require.NoError(t, users.Create(context.Background(), &u))

	svc := payment.NewService(gw, repository.NewPayments(db), payment.Options{Amount: 49900}, nil)
	return NewPaymentHandler(svc, "rzp_test", nil), users, identityFor(u.ID)
}

func paymentRoutes(h *PaymentHandler) func(r *gin.Engine) {
	return func(r *gin.Engine) {
		r.POST("/orders", h.CreateOrder)
		r.POST("/verify", h.VerifyPayment)
		r.GET("/history", h.History)
	}
}

func TestPayments_OrderVerifyUpgrade(t *testing.T) {
	h, users, id := newPaymentFixture(t, stubGateway{})
	routes := paymentRoutes(h)

	w := serve(t, id, http.MethodPost, "/orders", gin.H{"planType": "gold"}, routes)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, id, http.MethodPost, "/orders", gin.H{"planType": "premium"}, routes)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "order_1", body["orderId"])
	assert.Equal(t, float64(49900), body["amount"])
	assert.Equal(t, "INR", body["currency"])
	assert.Equal(t, "rzp_test", body["keyId"])

	w = serve(t, id, http.MethodPost, "/verify", gin.H{
		"razorpay_order_Id": "order_1", "razorpay_payment_Id": "pay_1", "razorpay_signature": "forged",
	}, routes)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	plan, err := users.PlanOf(context.Background(), id.UserID)
	require.NoError(t, err)
	assert.Equal(t, auth.PlanBasic, plan)

	w = serve(t, id, http.MethodPost, "/verify", gin.H{
		"razorpay_order_id": "order_1", "razorpay_payment_id": "pay_1", "razorpay_signature": "good",
	}, routes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", decodeBody(t, w)["status"])

	plan, err = users.PlanOf(context.Background(), id.UserID)
	require.NoError(t, err)
	assert.Equal(t, auth.PlanPremium, plan)

	w = serve(t, id, http.MethodGet, "/history", nil, routes)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"paid"`)
}

func TestPayments_UnknownOrder(t *testing.T) {
	h, _, id := newPaymentFixture(t, stubGateway{})

	w := serve(t, id, http.MethodPost, "/verify", gin.H{
		"razorpay_order_Id": "order_x", "razorpay_payment_Id": "pay_1", "razorpay_signature": "good",
	}, paymentRoutes(h))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPayments_GatewayFailure(t *testing.T) {
	h, _, id := newPaymentFixture(t, stubGateway{err: errors.New("gateway down")})

	w := serve(t, id, http.MethodPost, "/orders", gin.H{"planType": "premium"}, paymentRoutes(h))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, float64(errcode.PaymentFailed), decodeBody(t, w)["code"])
}

func TestPayments_Disabled(t *testing.T) {
	h := NewPaymentHandler(nil, "", nil)

	w := serve(t, identityFor(1), http.MethodPost, "/orders", gin.H{"planType": "premium"}, paymentRoutes(h))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
