package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

const maxWebhookBody = 64 << 10

type checkoutRequest struct {
	CartID string `json:"cartId"`
}

func (h *handlers) startCheckout(c *gin.Context) {
	var req checkoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid JSON body")
			return
		}
	}
	owner, ok := currentIdentity(c).Owner()
	if !ok {
		h.fail(c, domain.ErrUnauthorized)
		return
	}
	cartID := req.CartID
	if cartID == "" {
		view, err := h.deps.CartSvc.GetCart(c.Request.Context(), owner)
		if err != nil {
			h.fail(c, err)
			return
		}
		if view.CartID == "" {
			h.fail(c, domain.ErrEmptyCart)
			return
		}
		cartID = view.CartID
	}
	result, err := h.deps.CheckoutSvc.Start(c.Request.Context(), owner, cartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// checkoutSuccess is the browser's return from the hosted checkout. The browser can be
// ahead of the provider, so upstream problems render as "processing".
func (h *handlers) checkoutSuccess(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		h.fail(c, domain.NewValidationError("session_id", "is required"))
		return
	}
	orderID, err := h.deps.OrderSvc.ConfirmBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrUpstream) {
			h.logger.Info("checkout not confirmed yet", zap.String("session_id", sessionID), zap.Error(err))
			c.JSON(http.StatusAccepted, gin.H{"status": "processing", "sessionId": sessionID})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed", "orderId": orderID})
}

func (h *handlers) stripeWebhook(c *gin.Context) {
	if h.deps.Webhooks == nil {
		h.fail(c, domain.ErrNotFound)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.badRequest(c, "could not read body")
		return
	}
	conf, ok, err := h.deps.Webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("rejected webhook", zap.Error(err))
		h.badRequest(c, "invalid webhook signature")
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	orderID, err := h.deps.OrderSvc.Confirm(c.Request.Context(), conf)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true, "orderId": orderID})
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrInvariant),
		errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrEmptyCart):
		// Redelivery cannot change the outcome; acknowledge so the provider stops retrying.
		h.logger.Warn("webhook session not materialized", zap.String("session_id", conf.SessionID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"received": true})
	default:
		h.fail(c, err)
	}
}
