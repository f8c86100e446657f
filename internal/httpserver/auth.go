package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	customersvc "storefront/internal/service/customer"
	mergesvc "storefront/internal/service/merge"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Customer *domain.Customer    `json:"customer"`
	Session  customersvc.Session `json:"session"`
	Merge    *mergesvc.Result    `json:"merge,omitempty"`
}

func (h *handlers) signUp(c *gin.Context) {
	var req customersvc.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid JSON body")
		return
	}
	customer, session, err := h.deps.CustomerSvc.Signup(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.completeAuth(c, customer, session))
}

func (h *handlers) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid JSON body")
		return
	}
	customer, session, err := h.deps.CustomerSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.completeAuth(c, customer, session))
}

// completeAuth sets the auth cookie and folds the caller's guest cart, if any, into the
// customer's cart. A failed merge keeps the guest cookie so the next sign-in retries it.
func (h *handlers) completeAuth(c *gin.Context, customer *domain.Customer, session customersvc.Session) authResponse {
	h.deps.Identity.SetAuthCookie(c.Writer, session.AccessToken, session.ExpiresAt)
	resp := authResponse{Customer: customer, Session: session}

	id := currentIdentity(c)
	if id.Guest == nil {
		return resp
	}
	result, err := h.deps.Merger.Merge(c.Request.Context(), id.Guest.Token, customer.ID)
	if err != nil {
		h.logger.Error("merge guest cart", zap.String("customer_id", customer.ID), zap.Error(err))
		return resp
	}
	h.deps.Identity.ClearGuestCookie(c.Writer)
	resp.Merge = &result
	return resp
}

func (h *handlers) signOut(c *gin.Context) {
	id := currentIdentity(c)
	if id.AccessToken != "" {
		if err := h.deps.CustomerSvc.Logout(c.Request.Context(), id.AccessToken); err != nil {
			h.fail(c, err)
			return
		}
	}
	h.deps.Identity.ClearAuthCookie(c.Writer)
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	id := currentIdentity(c)
	if !id.Authenticated() {
		h.fail(c, domain.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": id.Customer})
}
