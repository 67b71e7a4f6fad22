package http

import (
	"net/http"
	"time"

	"shortlink/pkg/middleware"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"
)

const refreshCookieName = "refreshToken"

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type deleteUserRequest struct {
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	service.TokenPair
	User *storage.User `json:"user,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.userService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	pair, user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	respondJSON(w, http.StatusOK, tokenResponse{TokenPair: pair, User: user})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		h.respondError(w, r, service.ErrInvalidRefreshToken)
		return
	}
	pair, err := h.userService.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if status, _ := statusFor(err); status == http.StatusUnauthorized {
			h.clearRefreshCookie(w)
		}
		h.respondError(w, r, err)
		return
	}
	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	respondJSON(w, http.StatusOK, tokenResponse{TokenPair: pair})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		if err := h.userService.Logout(r.Context(), cookie.Value); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetProfile(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = middleware.GetUserIDFromContext(r.Context())

	user, err := h.userService.UpdateProfile(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req deleteUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.userService.DeleteUser(r.Context(), middleware.GetUserIDFromContext(r.Context()), req.Password); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/v1",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/v1",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
