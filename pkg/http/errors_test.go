package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"shortlink/pkg/service"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{service.ErrAliasAlreadyExists, http.StatusConflict, "alias already exists"},
		{service.ErrURLNotExists, http.StatusNotFound, "url does not exist"},
		{service.ErrMissingFields, http.StatusBadRequest, "missing fields"},
		{service.ErrGenerationExhausted, http.StatusServiceUnavailable, service.ErrGenerationExhausted.Error()},
		{fmt.Errorf("%w: only http and https allowed", service.ErrInvalidURL), http.StatusBadRequest, "invalid url"},
		{service.ErrInvalidRefreshToken, http.StatusUnauthorized, "invalid refresh token"},
		{service.ErrPasswordTooLong, http.StatusBadRequest, "password too long"},
		{service.ErrSuggestionExhausted, http.StatusUnprocessableEntity, service.ErrSuggestionExhausted.Error()},
		{fmt.Errorf("%w: timeout", service.ErrSuggestionUnavailable), http.StatusServiceUnavailable, service.ErrSuggestionUnavailable.Error()},
		{errors.New("connection refused"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, msg := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}
