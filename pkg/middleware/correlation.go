package middleware

import (
	"net/http"

	"shortlink/pkg/logging"
)

const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID reuses the caller's X-Correlation-ID or mints one, stores it
// in the request context for logging and echoes it on the response.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(CorrelationIDHeader); id != "" && len(id) <= 128 {
			ctx = logging.ContextWithCorrelationID(ctx, id)
		} else {
			ctx = logging.WithCorrelationID(ctx)
		}
		w.Header().Set(CorrelationIDHeader, logging.GetCorrelationID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
