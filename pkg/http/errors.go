package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"shortlink/pkg/service"

	"github.com/go-playground/validator/v10"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrAliasAlreadyExists, http.StatusConflict},
	{service.ErrURLNotExists, http.StatusNotFound},
	{service.ErrMissingFields, http.StatusBadRequest},
	{service.ErrGenerationExhausted, http.StatusServiceUnavailable},
	{service.ErrInvalidAlias, http.StatusBadRequest},
	{service.ErrInvalidURL, http.StatusBadRequest},
	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrEmailAlreadyExists, http.StatusConflict},
	{service.ErrUserNotExists, http.StatusNotFound},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrInvalidPassword, http.StatusUnauthorized},
	{service.ErrInvalidEmail, http.StatusBadRequest},
	{service.ErrPasswordTooLong, http.StatusBadRequest},
	{service.ErrInvalidRefreshToken, http.StatusUnauthorized},
	{service.ErrUnauthorized, http.StatusUnauthorized},
	{service.ErrSuggestionExhausted, http.StatusUnprocessableEntity},
	{service.ErrSuggestionUnavailable, http.StatusServiceUnavailable},
}

// statusFor maps a service error to its HTTP status and the message shown to
// the client. Unknown errors are internal and their text is not exposed.
func statusFor(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else if status == http.StatusServiceUnavailable {
		h.logger.Warn(r.Context(), "dependency unavailable", "path", r.URL.Path, "error", err)
	}
	respondMessage(w, status, msg)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// decode reads a JSON body into dst and validates it. It writes the 400
// itself and reports false when the request is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondMessage(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

