package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

func (h *handlers) listProducts(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(c, "limit must be an integer")
			return
		}
		limit = n
	}
	products, err := h.deps.ProductSvc.List(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p, h.opts.Currency))
	}
	c.JSON(http.StatusOK, listResponse[productResponse]{Count: len(out), Results: out})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.ProductSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(*p, h.opts.Currency))
}

func (h *handlers) listCategories(c *gin.Context) {
	categories, err := h.deps.CategorySvc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	c.JSON(http.StatusOK, listResponse[domain.Category]{Count: len(categories), Results: categories})
}
