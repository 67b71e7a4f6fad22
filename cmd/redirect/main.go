package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"shortlink/pkg/cache"
	"shortlink/pkg/config"
	httphandler "shortlink/pkg/http"
	"shortlink/pkg/logging"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// The redirect server only resolves short codes. It shares the database and
// cache with the API server and never runs migrations.
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.NewLogger(logging.LogLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	var linkCache cache.LinkCacheInterface = cache.NoopCache{}
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient := redis.NewClient(opt)
		defer redisClient.Close()
		linkCache = cache.NewLinkCache(redisClient)
	}

	linkService := service.NewLinkService(
		storage.NewPostgresURLStorage(pool),
		storage.NewPostgresUserStorage(pool),
		linkCache,
		logger,
		cfg.Links.BaseURL,
		service.WithCacheTTL(cfg.Links.CacheTTL, cfg.Links.MissingCacheTTL),
	)
	handler := httphandler.NewHandler(linkService, nil, logger)

	r := chi.NewRouter()
	httphandler.SetupRedirectRoutes(r, handler, httphandler.RouteOptions{RateLimit: cfg.Server.RateLimit})

	srv := &stdhttp.Server{
		Addr:         cfg.Server.RedirectAddr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting redirect server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
