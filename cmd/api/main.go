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

	"shortlink/pkg/auth"
	"shortlink/pkg/cache"
	"shortlink/pkg/config"
	"shortlink/pkg/http"
	"shortlink/pkg/logging"
	"shortlink/pkg/middleware"
	"shortlink/pkg/security"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"
	"shortlink/pkg/suggest"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

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

	pool, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		if err := storage.RunMigrations(ctx, pool); err != nil {
			return err
		}
	}

	linkCache, closeCache, err := openCache(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	urls := storage.NewPostgresURLStorage(pool)
	users := storage.NewPostgresUserStorage(pool)
	tokens := storage.NewPostgresTokenStorage(pool)

	linkOpts := []service.LinkOption{
		service.WithGeneratorOptions(
			service.WithCodeLength(cfg.Links.CodeLength),
			service.WithMaxAttempts(cfg.Links.MaxAttempts),
		),
		service.WithCacheTTL(cfg.Links.CacheTTL, cfg.Links.MissingCacheTTL),
	}
	if cfg.Suggest.APIKey != "" {
		linkOpts = append(linkOpts, service.WithSuggester(suggest.NewGeminiClient(suggest.Config{
			APIKey:   cfg.Suggest.APIKey,
			Endpoint: cfg.Suggest.Endpoint,
			Model:    cfg.Suggest.Model,
			Timeout:  cfg.Suggest.Timeout,
		}, logger)))
	} else {
		logger.Info(ctx, "alias suggestions disabled: no Gemini API key")
	}
	linkService := service.NewLinkService(urls, users, linkCache, logger, cfg.Links.BaseURL, linkOpts...)

	issuer := auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTokenTTL)
	userService := service.NewUserService(users, tokens, issuer, logger, service.WithRefreshTTL(cfg.Auth.RefreshTokenTTL))

	csrf := security.NewCSRFTokenManager()
	handler := http.NewHandler(linkService, userService, logger, http.WithSecureCookies(cfg.Server.SecureCookie))

	r := chi.NewRouter()
	http.SetupRoutes(r, handler, middleware.NewAuthMiddleware(issuer, logger), csrf, http.RouteOptions{RateLimit: cfg.Server.RateLimit})

	return serve(ctx, cfg.Server, cfg.Server.Addr, r, logger)
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// openCache connects to Redis when configured and falls back to no caching
// otherwise.
func openCache(ctx context.Context, cfg config.RedisConfig, logger *logging.Logger) (cache.LinkCacheInterface, func(), error) {
	if cfg.URL == "" {
		logger.Info(ctx, "redirect cache disabled: no redis url")
		return cache.NoopCache{}, func() {}, nil
	}
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return cache.NewLinkCache(client), func() { client.Close() }, nil
}

func serve(ctx context.Context, cfg config.ServerConfig, addr string, h stdhttp.Handler, logger *logging.Logger) error {
	srv := &stdhttp.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting server", "addr", addr)
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

	logger.Info(context.Background(), "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
