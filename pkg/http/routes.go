package http

import (
	"net/http"
	"time"

	"shortlink/pkg/metrics"
	"shortlink/pkg/middleware"
	"shortlink/pkg/security"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteOptions tunes the shared middleware stack.
type RouteOptions struct {
	// RateLimit is requests per minute per client IP on login, register,
	// URL creation and redirects. Zero disables limiting.
	RateLimit int
}

func commonMiddleware(r chi.Router) {
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
}

func limiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(perMinute, time.Minute)
}

// SetupRoutes mounts the full API. csrf guards the cookie authenticated
// token endpoints.
func SetupRoutes(r chi.Router, handler *Handler, auth *middleware.AuthMiddleware, csrf *security.CSRFTokenManager, opts RouteOptions) {
	commonMiddleware(r)
	limit := limiter(opts.RateLimit)
	csrfGuard := security.CSRFMiddleware(csrf)

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.With(limit).Get("/{shortCode}", handler.Redirect)

	r.Route("/v1", func(r chi.Router) {
		r.With(limit).Post("/register", handler.Register)
		r.With(limit).Post("/login", handler.Login)
		r.Get("/csrf", csrf.IssueHandler)
		r.With(csrfGuard).Patch("/token/refresh", handler.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.With(csrfGuard).Post("/logout", handler.Logout)

			r.Get("/user/profile", handler.GetProfile)
			r.Put("/user/profile", handler.UpdateProfile)
			r.Delete("/user", handler.DeleteUser)

			r.With(limit).Post("/urls", handler.CreateURL)
			r.Get("/urls", handler.ListURLs)
			r.Post("/urls/suggestion", handler.SuggestAlias)
			r.Get("/urls/{id}/details", handler.GetURLDetails)
			r.Put("/urls/{id}", handler.UpdateURL)
			r.Delete("/urls/{id}", handler.DeleteURL)
			r.Get("/urls/{id}/analytics", handler.URLAnalytics)
		})
	})
}

// SetupRedirectRoutes mounts only the public redirect path, for the edge
// redirect server.
func SetupRedirectRoutes(r chi.Router, handler *Handler, opts RouteOptions) {
	commonMiddleware(r)
	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.With(limiter(opts.RateLimit)).Get("/{shortCode}", handler.Redirect)
}
