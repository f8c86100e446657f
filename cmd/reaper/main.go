package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logging"
	guestrepo "storefront/internal/repository/guest"
	tokenrepo "storefront/internal/repository/token"
	guestsvc "storefront/internal/service/guest"
)

// reaper deletes expired guest sessions (cascading to their carts) and expired access
// tokens. Reads already ignore expired rows; this only reclaims storage.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel, "storefront-reaper")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns, logger)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	guests := guestsvc.New(guestrepo.NewPostgres(pool), cfg.GuestSessionTTL, logger)
	tokens := tokenrepo.NewPostgres(pool)

	var guestsRemoved, tokensRemoved int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := guests.ReapExpired(gctx)
		guestsRemoved = n
		return err
	})
	g.Go(func() error {
		n, err := tokens.DeleteExpired(gctx, time.Now().UTC())
		tokensRemoved = n
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Fatal("reap expired sessions", zap.Error(err))
	}
	logger.Info("reap finished", zap.Int64("guest_sessions", guestsRemoved), zap.Int64("tokens", tokensRemoved))
}
