package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

type addItemRequest struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *handlers) getCart(c *gin.Context) {
	owner, ok := currentIdentity(c).Owner()
	if !ok {
		c.JSON(http.StatusOK, domain.NewCartView("", nil))
		return
	}
	view, err := h.deps.CartSvc.GetCart(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid JSON body")
		return
	}
	// Validate before a guest session is minted for the request.
	if req.Quantity <= 0 {
		h.fail(c, domain.NewValidationError("quantity", "must be a positive integer"))
		return
	}
	owner, err := h.deps.Identity.EnsureOwner(c.Request.Context(), c.Writer, currentIdentity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.deps.CartSvc.AddItem(c.Request.Context(), owner, req.VariantID, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		h.fail(c, domain.NewValidationError("quantity", "is required"))
		return
	}
	owner, ok := currentIdentity(c).Owner()
	if !ok {
		h.fail(c, domain.ErrNotFound)
		return
	}
	view, err := h.deps.CartSvc.UpdateItem(c.Request.Context(), owner, c.Param("itemId"), *req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	owner, ok := currentIdentity(c).Owner()
	if !ok {
		h.fail(c, domain.ErrNotFound)
		return
	}
	view, err := h.deps.CartSvc.RemoveItem(c.Request.Context(), owner, c.Param("itemId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) clearCart(c *gin.Context) {
	owner, ok := currentIdentity(c).Owner()
	if !ok {
		c.JSON(http.StatusOK, domain.NewCartView("", nil))
		return
	}
	view, err := h.deps.CartSvc.Clear(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
