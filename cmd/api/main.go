package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/identity"
	"storefront/internal/logging"
	"storefront/internal/payments"
	cartrepo "storefront/internal/repository/cart"
	categoryrepo "storefront/internal/repository/category"
	customerrepo "storefront/internal/repository/customer"
	guestrepo "storefront/internal/repository/guest"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	tokenrepo "storefront/internal/repository/token"
	cartsvc "storefront/internal/service/cart"
	categorysvc "storefront/internal/service/category"
	checkoutsvc "storefront/internal/service/checkout"
	customersvc "storefront/internal/service/customer"
	guestsvc "storefront/internal/service/guest"
	mergesvc "storefront/internal/service/merge"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger, err := logging.New(cfg.LogLevel, "storefront-api")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns, logger)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	viewCache := cache.NewNop("storefront")
	if cfg.RedisAddr != "" {
		var closeCache func() error
		viewCache, closeCache = cache.NewRedis(cfg.RedisAddr, "storefront")
		defer func() { _ = closeCache() }()
		logger.Info("cart view cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	provider, webhooks := paymentProvider(cfg, logger)

	productRepo := productrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)

	guestService := guestsvc.New(guestrepo.NewPostgres(dbpool), cfg.GuestSessionTTL, logger)
	customerService := customersvc.New(customerRepo, tokenrepo.NewPostgres(dbpool), logger)
	cartService := cartsvc.New(cartRepo, productRepo, viewCache, cfg.CartCacheTTL, logger)
	mergeEngine := mergesvc.New(cartRepo, guestService, cartService, logger)
	checkoutService := checkoutsvc.New(cartRepo, customerRepo, provider, checkoutsvc.Config{
		Currency:      cfg.CheckoutCurrency,
		PublicBaseURL: cfg.PublicBaseURL,
	}, logger)
	orderService := ordersvc.New(orderrepo.NewPostgres(dbpool, logger), provider, cartService, cfg.CheckoutCurrency, logger)

	deps := httpserver.Deps{
		Identity:    identity.NewResolver(customerService, guestService, cfg.Production(), logger),
		ProductSvc:  productsvc.New(productRepo),
		CategorySvc: categorysvc.New(categoryrepo.NewPostgres(dbpool)),
		CartSvc:     cartService,
		CustomerSvc: customerService,
		Merger:      mergeEngine,
		CheckoutSvc: checkoutService,
		OrderSvc:    orderService,
		Cache:       viewCache,
	}
	if webhooks != nil {
		deps.Webhooks = webhooks
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, deps, httpserver.Options{
		Production:     cfg.Production(),
		AllowedOrigins: cfg.AllowedOrigins,
		AdminAPIKey:    cfg.AdminAPIKey,
		Currency:       cfg.CheckoutCurrency,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

// paymentProvider returns Stripe when a secret key is configured. Outside production
// it falls back to the in-memory provider so the API can run without credentials.
func paymentProvider(cfg config.Config, logger *zap.Logger) (payments.Provider, *payments.StripeProvider) {
	if cfg.StripeSecretKey == "" {
		if cfg.Production() {
			logger.Fatal("STRIPE_SECRET_KEY is required in production")
		}
		logger.Warn("STRIPE_SECRET_KEY not set, using fake payment provider")
		return payments.NewFakeProvider(), nil
	}
	stripeProvider, err := payments.NewStripeProvider(payments.StripeConfig{
		APIKey:        cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("init stripe", zap.Error(err))
	}
	if cfg.StripeWebhookSecret == "" {
		logger.Info("stripe webhook disabled: no signing secret configured")
		return stripeProvider, nil
	}
	return stripeProvider, stripeProvider
}
