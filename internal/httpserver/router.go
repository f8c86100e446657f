package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/identity"
	"storefront/internal/payments"
	checkoutsvc "storefront/internal/service/checkout"
	customersvc "storefront/internal/service/customer"
	mergesvc "storefront/internal/service/merge"
)

type productService interface {
	List(ctx context.Context, categoryKey string, limit int) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type categoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
}

type cartService interface {
	GetCart(ctx context.Context, owner domain.OwnerKey) (domain.CartView, error)
	AddItem(ctx context.Context, owner domain.OwnerKey, variantID string, quantity int) (domain.CartView, error)
	UpdateItem(ctx context.Context, owner domain.OwnerKey, itemID string, quantity int) (domain.CartView, error)
	RemoveItem(ctx context.Context, owner domain.OwnerKey, itemID string) (domain.CartView, error)
	Clear(ctx context.Context, owner domain.OwnerKey) (domain.CartView, error)
}

type customerService interface {
	Signup(ctx context.Context, in customersvc.SignupInput) (*domain.Customer, customersvc.Session, error)
	Login(ctx context.Context, email, password string) (*domain.Customer, customersvc.Session, error)
	Logout(ctx context.Context, token string) error
}

type cartMerger interface {
	Merge(ctx context.Context, guestToken, userID string) (mergesvc.Result, error)
}

type checkoutService interface {
	Start(ctx context.Context, owner domain.OwnerKey, cartID string) (checkoutsvc.Result, error)
}

type orderService interface {
	ConfirmBySessionID(ctx context.Context, sessionID string) (string, error)
	Confirm(ctx context.Context, conf payments.SessionConfirmation) (string, error)
	Get(ctx context.Context, requester domain.OwnerKey, orderID string) (*domain.Order, error)
	Transition(ctx context.Context, orderID, next string) (*domain.Order, error)
}

type webhookParser interface {
	ParseWebhook(payload []byte, signature string) (payments.SessionConfirmation, bool, error)
}

// Deps groups the services the router dispatches to.
type Deps struct {
	Identity    *identity.Resolver
	ProductSvc  productService
	CategorySvc categoryService
	CartSvc     cartService
	CustomerSvc customerService
	Merger      cartMerger
	CheckoutSvc checkoutService
	OrderSvc    orderService
	// Webhooks is nil when no provider webhook secret is configured.
	Webhooks webhookParser
	Cache    cache.Cache
}

// Options carries HTTP-level settings.
type Options struct {
	Production     bool
	AllowedOrigins []string
	// AdminAPIKey guards /admin routes. Empty disables them.
	AdminAPIKey string
	Currency    string
}

func (d Deps) validate() error {
	switch {
	case d.Identity == nil:
		return errors.New("httpserver: identity resolver is required")
	case d.ProductSvc == nil, d.CategorySvc == nil:
		return errors.New("httpserver: catalog services are required")
	case d.CartSvc == nil:
		return errors.New("httpserver: cart service is required")
	case d.CustomerSvc == nil || d.Merger == nil:
		return errors.New("httpserver: customer service and merger are required")
	case d.CheckoutSvc == nil || d.OrderSvc == nil:
		return errors.New("httpserver: checkout and order services are required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db Pinger, deps Deps, opts Options) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Stripe-Signature"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := &handlers{deps: deps, opts: opts, logger: logger.Named("http")}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db, deps.Cache))

	router.GET("/products", h.listProducts)
	router.GET("/products/:id", h.getProduct)
	router.GET("/categories", h.listCategories)

	// The webhook authenticates by signature, not by shopper identity.
	router.POST("/webhooks/stripe", h.stripeWebhook)

	shopper := router.Group("/", identityMiddleware(deps.Identity, h))
	shopper.GET("/cart", h.getCart)
	shopper.POST("/cart/items", h.addCartItem)
	shopper.PATCH("/cart/items/:itemId", h.updateCartItem)
	shopper.DELETE("/cart/items/:itemId", h.removeCartItem)
	shopper.DELETE("/cart", h.clearCart)

	shopper.POST("/auth/sign-up", h.signUp)
	shopper.POST("/auth/sign-in", h.signIn)
	shopper.POST("/auth/sign-out", h.signOut)
	shopper.GET("/me", h.me)

	shopper.POST("/checkout", h.startCheckout)
	shopper.GET("/checkout/success", h.checkoutSuccess)
	shopper.GET("/orders/:id", h.getOrder)

	if opts.AdminAPIKey != "" {
		admin := router.Group("/admin", adminAuth(opts.AdminAPIKey))
		admin.PATCH("/orders/:id/status", h.transitionOrder)
	} else {
		logger.Info("admin routes disabled: no api key configured")
	}

	return router, nil
}

type handlers struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}
