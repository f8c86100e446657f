package main

import (
	"context"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logging"
	categoryrepo "storefront/internal/repository/category"
	productrepo "storefront/internal/repository/product"
	"storefront/internal/seed"
	categorysvc "storefront/internal/service/category"
	productsvc "storefront/internal/service/product"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel, "storefront-seed")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns, logger)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	categories := categorysvc.New(categoryrepo.NewPostgres(pool))
	products := productsvc.New(productrepo.NewPostgres(pool, logger))
	if _, err := seed.Apply(ctx, categories, products, logger); err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}
}
