package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumeCraft/internal/payment"
)

// PaymentHandler 处理高级套餐的下单、支付校验与历史记录。
type PaymentHandler struct {
	payments *payment.Service
	keyID    string
	logger   *slog.Logger
}

// NewPaymentHandler 构造支付处理器。payments 为 nil 表示未配置支付网关。
func NewPaymentHandler(payments *payment.Service, keyID string, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, keyID: keyID, logger: logger}
}

type createOrderRequest struct {
	PlanType string `json:"planType" binding:"required"`
}

// CreateOrder 在网关创建订单，返回前端拉起支付所需的信息。
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.payments == nil {
		Error(c, http.StatusServiceUnavailable, "payments unavailable")
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	order, err := h.payments.CreateOrder(c.Request.Context(), id, req.PlanType)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"orderId":  order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
		"keyId":    h.keyID,
	})
}

// verifyPaymentRequest 兼容前端 razorpay_order_Id 与网关回调 razorpay_order_id 两种写法。
type verifyPaymentRequest struct {
	OrderID        string `json:"razorpay_order_Id"`
	PaymentID      string `json:"razorpay_payment_Id"`
	OrderIDLower   string `json:"razorpay_order_id"`
	PaymentIDLower string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature" binding:"required"`
}

func (r verifyPaymentRequest) ids() (string, string) {
	orderID, paymentID := r.OrderID, r.PaymentID
	if orderID == "" {
		orderID = r.OrderIDLower
	}
	if paymentID == "" {
		paymentID = r.PaymentIDLower
	}
	return orderID, paymentID
}

// VerifyPayment 校验签名并升级套餐。新套餐在刷新令牌后写入访问令牌。
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.payments == nil {
		Error(c, http.StatusServiceUnavailable, "payments unavailable")
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	orderID, paymentID := req.ids()
	if orderID == "" || paymentID == "" {
		BadRequest(c, "order id and payment id are required")
		return
	}

	if err := h.payments.Verify(c.Request.Context(), id, orderID, paymentID, req.Signature); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// History 返回当前用户的支付记录。
func (h *PaymentHandler) History(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.payments == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}

	records, err := h.payments.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, p := range records {
		items = append(items, gin.H{
			"orderId":    p.OrderID,
			"paymentId":  p.PaymentID,
			"amount":     p.Amount,
			"currency":   p.Currency,
			"plan":       p.Plan,
			"status":     p.Status,
			"createdAt":  p.CreatedAt,
			"verifiedAt": p.VerifiedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

func (h *PaymentHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, payment.ErrUnknownPlan):
		BadRequest(c, err.Error())
	case errors.Is(err, payment.ErrAlreadyPremium):
		Conflict(c, err.Error())
	case errors.Is(err, payment.ErrOrderNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, payment.ErrBadSignature):
		requestLogger(c, h.logger).Warn("payment signature rejected", slog.Any("error", err))
		BadRequest(c, "payment verification failed")
	default:
		requestLogger(c, h.logger).Error("payment request failed", slog.Any("error", err))
		Fail(c, err)
	}
}
