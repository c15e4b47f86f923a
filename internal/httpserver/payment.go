package httpserver

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
	"milaf-storefront/internal/payment"
	"milaf-storefront/internal/service/checkout"
)

const maxWebhookBody = 1 << 20

type createOrderRequest struct {
	CartItems       []checkout.LineRequest `json:"cartItems"`
	Zipcode         string                 `json:"zipcode"`
	DeliveryAddress *domain.Address        `json:"deliveryAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
}

type createOrderResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type verifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

func (h *handlers) paymentKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"key": h.deps.PaymentKeyID})
}

func (h *handlers) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	in := checkout.CheckoutRequest{
		UserID:        principalFrom(c).UserID,
		Items:         req.CartItems,
		Postcode:      req.Zipcode,
		PaymentMethod: req.PaymentMethod,
	}
	if req.DeliveryAddress != nil {
		in.DeliveryAddress = *req.DeliveryAddress
	}
	handle, err := h.deps.Checkout.CreatePaymentOrder(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, createOrderResponse{
		OrderID:  handle.OrderID,
		Amount:   handle.Amount,
		Currency: handle.Currency,
	})
}

func (h *handlers) verifyPayment(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	userID := principalFrom(c).UserID
	order, err := h.deps.Checkout.VerifyPayment(c.Request.Context(), userID, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "orderId": order.ID})
}

func (h *handlers) paymentWebhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	sig := c.GetHeader(payment.SignatureHeader)
	if err := h.deps.Checkout.HandleWebhook(c.Request.Context(), raw, sig); err != nil {
		status, _ := statusFor(err)
		if status < http.StatusInternalServerError {
			c.String(http.StatusBadRequest, "invalid")
			return
		}
		h.logger.Error("webhook processing failed", zap.Error(err))
		c.String(status, "error")
		return
	}
	c.String(http.StatusOK, "ok")
}
