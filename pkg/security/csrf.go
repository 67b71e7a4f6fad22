package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	SessionCookieName = "session_id"
	CSRFHeader        = "X-CSRF-Token"

	defaultCSRFTTL = 15 * time.Minute
)

// CSRFTokenManager hands out one token per session cookie. Tokens are kept in
// memory, so a restart invalidates them.
type CSRFTokenManager struct {
	mu     sync.Mutex
	tokens map[string]csrfToken
	ttl    time.Duration
	now    func() time.Time
}

type csrfToken struct {
	value   string
	expires time.Time
}

func NewCSRFTokenManager() *CSRFTokenManager {
	return &CSRFTokenManager{
		tokens: make(map[string]csrfToken),
		ttl:    defaultCSRFTTL,
		now:    time.Now,
	}
}

func (c *CSRFTokenManager) GenerateToken(sessionID string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupExpiredLocked()
	c.tokens[sessionID] = csrfToken{
		value:   token,
		expires: c.now().Add(c.ttl),
	}
	return token, nil
}

func (c *CSRFTokenManager) ValidateToken(sessionID, providedToken string) bool {
	if sessionID == "" || providedToken == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	storedToken, exists := c.tokens[sessionID]
	if !exists {
		return false
	}
	if c.now().After(storedToken.expires) {
		delete(c.tokens, sessionID)
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedToken.value), []byte(providedToken)) == 1
}

func (c *CSRFTokenManager) InvalidateToken(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, sessionID)
}

func (c *CSRFTokenManager) cleanupExpiredLocked() {
	now := c.now()
	for sessionID, token := range c.tokens {
		if now.After(token.expires) {
			delete(c.tokens, sessionID)
		}
	}
}

// IssueHandler serves GET /v1/csrf: it makes sure the caller has a session
// cookie and returns a fresh token bound to it.
func (c *CSRFTokenManager) IssueHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionID(w, r)
	token, err := c.GenerateToken(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
}

// CSRFMiddleware rejects state-changing requests whose X-CSRF-Token header
// does not match the token issued for their session cookie.
func CSRFMiddleware(tokenManager *CSRFTokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
				token := r.Header.Get(CSRFHeader)
				if !tokenManager.ValidateToken(existingSessionID(r), token) {
					writeError(w, http.StatusForbidden, "invalid csrf token")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func existingSessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SessionID returns the request's session id, setting a new session cookie
// when there is none.
func SessionID(w http.ResponseWriter, r *http.Request) string {
	if id := existingSessionID(r); id != "" {
		return id
	}
	sessionID := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400,
	})
	return sessionID
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
