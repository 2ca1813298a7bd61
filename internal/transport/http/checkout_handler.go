package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waste3d/coursehub-api/internal/application/usecase"
	"github.com/waste3d/coursehub-api/internal/domain"
)

type CheckoutHandler struct {
	checkout *usecase.CheckoutUseCase
	webhooks *usecase.PaymentWebhookProcessor
}

func NewCheckoutHandler(checkout *usecase.CheckoutUseCase, webhooks *usecase.PaymentWebhookProcessor) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, webhooks: webhooks}
}

// POST /api/v1/checkout/courses/:id
func (h *CheckoutHandler) CourseCheckout(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	url, err := h.checkout.Checkout(c, courseID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GET /api/v1/checkout/verify?session_id=
func (h *CheckoutHandler) Verify(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	purchase, err := h.checkout.VerifyPayment(c, sessionID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}

// POST /api/v1/checkout/subscription
func (h *CheckoutHandler) Subscription(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}

	var req struct {
		Period domain.SubscriptionPeriod `json:"period" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Period != domain.PeriodMonthly && req.Period != domain.PeriodYearly {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be monthly or yearly"})
		return
	}

	url, err := h.checkout.SubscriptionCheckout(c, id, req.Period)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// POST /api/v1/checkout/portal
func (h *CheckoutHandler) Portal(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}

	url, err := h.checkout.Portal(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// POST /api/v1/webhook — сырое тело и подпись из заголовка, без биндинга.
// На ошибку отвечаем не-2xx: провайдер перепошлёт событие сам.
func (h *CheckoutHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read payload"})
		return
	}

	if err := h.webhooks.Process(c, payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
