package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type errorBody struct {
	Error     string              `json:"error"`
	Message   string              `json:"message"`
	Status    int                 `json:"status"`
	Fields    map[string][]string `json:"fields,omitempty"`
	Retryable bool                `json:"retryable,omitempty"`
}

// statusFor maps a service error onto the response envelope. Messages of internal
// failures are never echoed to the client.
func statusFor(err error) errorBody {
	if verr, ok := domain.AsValidation(err); ok {
		return errorBody{Error: "validation_failed", Message: "request has invalid fields", Status: http.StatusBadRequest, Fields: verr.Fields}
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errorBody{Error: "not_found", Message: "resource not found", Status: http.StatusNotFound}
	case errors.Is(err, domain.ErrUnauthorized):
		return errorBody{Error: "unauthorized", Message: "authentication required", Status: http.StatusUnauthorized}
	case errors.Is(err, domain.ErrEmptyCart):
		return errorBody{Error: "empty_cart", Message: "cart is empty", Status: http.StatusConflict}
	case errors.Is(err, domain.ErrCartNotEmpty):
		return errorBody{Error: "cart_busy", Message: "cart changed while it was being merged, try again", Status: http.StatusConflict, Retryable: true}
	case errors.Is(err, domain.ErrAlreadyExists):
		return errorBody{Error: "conflict", Message: "resource already exists", Status: http.StatusConflict}
	case errors.Is(err, domain.ErrUpstream):
		return errorBody{Error: "upstream_unavailable", Message: "payment provider unavailable", Status: http.StatusBadGateway}
	case errors.Is(err, domain.ErrOrderCreation):
		return errorBody{Error: "order_creation_failed", Message: "order could not be created, try again", Status: http.StatusServiceUnavailable, Retryable: true}
	}
	return errorBody{Error: "internal_error", Message: "something went wrong", Status: http.StatusInternalServerError}
}

func (h *handlers) fail(c *gin.Context, err error) {
	body := statusFor(err)
	_ = c.Error(err)
	switch {
	case errors.Is(err, domain.ErrInvariant):
		h.logger.Error("invariant violated", zap.String("path", c.Request.URL.Path), zap.Error(err))
	case body.Status >= http.StatusInternalServerError:
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	default:
		h.logger.Debug("request rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(body.Status, body)
}

func (h *handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg, Status: http.StatusBadRequest})
}
