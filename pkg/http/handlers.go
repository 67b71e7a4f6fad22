package http

import (
	"net/http"
	"strconv"
	"time"

	"shortlink/pkg/logging"
	"shortlink/pkg/middleware"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	linkService  *service.LinkService
	userService  *service.UserService
	validate     *validator.Validate
	logger       *logging.Logger
	secureCookie bool
}

type HandlerOption func(*Handler)

// WithSecureCookies marks the refresh token cookie Secure.
func WithSecureCookies(secure bool) HandlerOption {
	return func(h *Handler) { h.secureCookie = secure }
}

func NewHandler(linkService *service.LinkService, userService *service.UserService, logger *logging.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		linkService: linkService,
		userService: userService,
		validate:    validator.New(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type urlResponse struct {
	*storage.ShortenedURL
	ShortLink string `json:"short_link"`
}

func (h *Handler) toResponse(u *storage.ShortenedURL) urlResponse {
	return urlResponse{ShortenedURL: u, ShortLink: h.linkService.ShortLink(u.ShortURL)}
}

func (h *Handler) CreateURL(w http.ResponseWriter, r *http.Request) {
	var req service.CreateURLRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = middleware.GetUserIDFromContext(r.Context())

	created, err := h.linkService.CreateURL(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.toResponse(created))
}

func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "shortCode")
	longURL, err := h.linkService.Redirect(r.Context(), code)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, longURL, http.StatusFound)
}

// GetURLDetails looks a URL up by short code. The route shares the {id}
// segment with the id based routes, so the parameter holds the code here.
func (h *Handler) GetURLDetails(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "id")
	record, err := h.linkService.GetURL(r.Context(), middleware.GetUserIDFromContext(r.Context()), code)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(record))
}

type listQuery struct {
	Limit    int    `validate:"gte=0,lte=100"`
	OrderBy  string `validate:"omitempty,oneof=clicks created_at updated_at"`
	OrderDir string `validate:"omitempty,oneof=asc desc"`
}

func (h *Handler) ListURLs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := listQuery{OrderBy: q.Get("orderBy"), OrderDir: q.Get("orderDir")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondMessage(w, http.StatusBadRequest, "invalid request: limit must be a number")
			return
		}
		query.Limit = limit
	}
	if err := h.validate.Struct(query); err != nil {
		respondMessage(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	filter := storage.ListFilter{Limit: query.Limit, OrderBy: query.OrderBy, OrderDir: query.OrderDir}
	var err error
	if filter.DateFrom, err = parseDate(q.Get("dateFrom"), false); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request: dateFrom")
		return
	}
	if filter.DateTo, err = parseDate(q.Get("dateTo"), true); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request: dateTo")
		return
	}

	urls, err := h.linkService.ListURLs(r.Context(), middleware.GetUserIDFromContext(r.Context()), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]urlResponse, len(urls))
	for i, u := range urls {
		out[i] = h.toResponse(u)
	}
	respondJSON(w, http.StatusOK, map[string]any{"urls": out})
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) UpdateURL(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req service.UpdateURLRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.URLID = id
	req.UserID = middleware.GetUserIDFromContext(r.Context())

	updated, err := h.linkService.UpdateURL(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(updated))
}

func (h *Handler) DeleteURL(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.linkService.DeleteURL(r.Context(), middleware.GetUserIDFromContext(r.Context()), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) URLAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	stats, err := h.linkService.ClickAnalytics(r.Context(), middleware.GetUserIDFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) SuggestAlias(w http.ResponseWriter, r *http.Request) {
	var req service.SuggestionRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = middleware.GetUserIDFromContext(r.Context())

	slug, err := h.linkService.SuggestAlias(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"suggestion": slug})
}

// urlID parses the {id} path parameter. Malformed ids are reported like
// missing records.
func urlID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondMessage(w, http.StatusNotFound, service.ErrURLNotExists.Error())
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
