package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

type statusRequest struct {
	Status string `json:"status"`
}

func (h *handlers) getOrder(c *gin.Context) {
	owner, ok := currentIdentity(c).Owner()
	if !ok {
		h.fail(c, domain.ErrUnauthorized)
		return
	}
	o, err := h.deps.OrderSvc.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *handlers) transitionOrder(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid JSON body")
		return
	}
	o, err := h.deps.OrderSvc.Transition(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}
