package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"shortlink/pkg/logging"

	"github.com/google/uuid"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenParser verifies an access token and returns its user.
type TokenParser interface {
	Parse(token string) (uuid.UUID, error)
}

type AuthMiddleware struct {
	parser TokenParser
	logger *logging.Logger
}

func NewAuthMiddleware(parser TokenParser, logger *logging.Logger) *AuthMiddleware {
	return &AuthMiddleware{parser: parser, logger: logger}
}

// Authenticate requires a valid "Authorization: Bearer <jwt>" header and
// stores the token's user id in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			unauthorized(w, "invalid authorization header format")
			return
		}

		userID, err := m.parser.Parse(tokenString)
		if err != nil {
			m.logger.Debug(r.Context(), "rejected access token", "error", err)
			unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
	})
}

func ContextWithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext returns uuid.Nil when the request is unauthenticated.
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	if userID, ok := ctx.Value(userIDKey).(uuid.UUID); ok {
		return userID
	}
	return uuid.Nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
