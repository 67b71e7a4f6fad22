package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"shortlink/pkg/cache"
	"shortlink/pkg/logging"
	"shortlink/pkg/metrics"
	"shortlink/pkg/storage"

	"github.com/google/uuid"
)

const (
	// maxInsertAttempts bounds regeneration when a generated code loses the
	// race against a concurrent insert.
	maxInsertAttempts = 3

	defaultCacheTTL        = 24 * time.Hour
	defaultMissingCacheTTL = 5 * time.Minute
)

// Suggester proposes a human friendly alias for a URL.
type Suggester interface {
	Suggest(ctx context.Context, title, url string, keywords []string) (string, error)
}

type LinkService struct {
	urls       storage.ShortenedURLStore
	users      storage.UserStore
	cache      cache.LinkCacheInterface
	arbiter    *AliasArbiter
	suggester  Suggester
	logger     *logging.Logger
	baseURL    string
	cacheTTL   time.Duration
	missingTTL time.Duration
	now        func() time.Time
	genOpts    []GeneratorOption
}

type LinkOption func(*LinkService)

func WithGeneratorOptions(opts ...GeneratorOption) LinkOption {
	return func(s *LinkService) { s.genOpts = append(s.genOpts, opts...) }
}

func WithSuggester(sg Suggester) LinkOption {
	return func(s *LinkService) { s.suggester = sg }
}

func WithClock(now func() time.Time) LinkOption {
	return func(s *LinkService) { s.now = now }
}

func WithCacheTTL(ttl, missingTTL time.Duration) LinkOption {
	return func(s *LinkService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
		if missingTTL > 0 {
			s.missingTTL = missingTTL
		}
	}
}

func NewLinkService(urls storage.ShortenedURLStore, users storage.UserStore, linkCache cache.LinkCacheInterface, logger *logging.Logger, baseURL string, opts ...LinkOption) *LinkService {
	s := &LinkService{
		urls:       urls,
		users:      users,
		cache:      linkCache,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cacheTTL:   defaultCacheTTL,
		missingTTL: defaultMissingCacheTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NoopCache{}
	}
	generator := NewCodeGenerator(s.codeExists, s.genOpts...)
	s.arbiter = NewAliasArbiter(urls, generator)
	return s
}

func (s *LinkService) codeExists(ctx context.Context, code string) (bool, error) {
	existing, err := s.urls.FindByCode(ctx, code)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

// ShortLink returns the public URL that redirects through code.
func (s *LinkService) ShortLink(code string) string {
	return s.baseURL + "/" + code
}

type CreateURLRequest struct {
	LongURL string    `json:"longUrl" validate:"required,url,max=2048"`
	Title   string    `json:"title" validate:"max=255"`
	Alias   *string   `json:"alias,omitempty" validate:"omitempty,max=100"`
	UserID  uuid.UUID `json:"-"`
}

func (s *LinkService) CreateURL(ctx context.Context, req *CreateURLRequest) (*storage.ShortenedURL, error) {
	if err := validateLongURL(req.LongURL); err != nil {
		return nil, err
	}

	owner, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup owner: %w", err)
	}
	if owner == nil {
		return nil, ErrUserNotExists
	}

	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		code, explicit, err := s.arbiter.ResolveForCreate(ctx, req.Alias)
		if err != nil {
			return nil, err
		}

		now := s.now()
		record := &storage.ShortenedURL{
			ID:         uuid.New(),
			LongURL:    req.LongURL,
			ShortURL:   code,
			Title:      req.Title,
			ClickDates: []time.Time{},
			CreatedAt:  now,
			UpdatedAt:  now,
			UserID:     req.UserID,
		}

		err = s.urls.Create(ctx, record)
		if err == nil {
			// A stale negative entry would hide the new code.
			s.invalidate(ctx, code)
			kind := "generated"
			if explicit {
				kind = "alias"
			}
			metrics.URLsCreated.WithLabelValues(kind).Inc()
			s.logger.LogURLOperation(ctx, "create", code, true)
			return record, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("create short url: %w", err)
		}
		if explicit {
			return nil, ErrAliasAlreadyExists
		}
		s.logger.Warn(ctx, "generated code lost insert race", "code", code, "attempt", attempt+1)
	}
	return nil, ErrGenerationExhausted
}

type UpdateURLRequest struct {
	URLID       uuid.UUID `json:"-"`
	UserID      uuid.UUID `json:"-"`
	NewShortURL *string   `json:"short_url,omitempty" validate:"omitempty,max=100"`
	NewTitle    *string   `json:"title,omitempty" validate:"omitempty,max=255"`
}

func (s *LinkService) UpdateURL(ctx context.Context, req *UpdateURLRequest) (*storage.ShortenedURL, error) {
	hasAlias := req.NewShortURL != nil && *req.NewShortURL != ""
	hasTitle := req.NewTitle != nil && *req.NewTitle != ""
	if !hasAlias && !hasTitle {
		return nil, ErrMissingFields
	}

	current, err := s.ownedByID(ctx, req.UserID, req.URLID)
	if err != nil {
		return nil, err
	}

	var fields storage.URLFields
	if hasAlias {
		slug, err := s.arbiter.ResolveForUpdate(ctx, current, *req.NewShortURL)
		if err != nil {
			return nil, err
		}
		fields.ShortURL = &slug
	}
	if hasTitle {
		fields.Title = req.NewTitle
	}

	updated, err := s.urls.UpdateFields(ctx, current.ID, req.UserID, fields)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrURLNotExists
	case errors.Is(err, storage.ErrConflict):
		return nil, ErrAliasAlreadyExists
	case err != nil:
		return nil, fmt.Errorf("update short url: %w", err)
	}

	s.invalidate(ctx, current.ShortURL, updated.ShortURL)
	s.logger.LogURLOperation(ctx, "update", updated.ShortURL, true)
	return updated, nil
}

// Redirect resolves code to its long URL and records the click. Unknown codes
// fail with ErrURLNotExists and leave every record untouched.
func (s *LinkService) Redirect(ctx context.Context, code string) (string, error) {
	longURL, cached, err := s.resolve(ctx, code)
	if err != nil {
		s.countRedirect(err, cached)
		return "", err
	}

	if err := s.urls.RecordClick(ctx, code, s.now().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted or renamed since it was cached.
			s.invalidate(ctx, code)
			s.countRedirect(ErrURLNotExists, cached)
			return "", ErrURLNotExists
		}
		err = fmt.Errorf("record click: %w", err)
		s.countRedirect(err, cached)
		return "", err
	}
	s.countRedirect(nil, cached)
	return longURL, nil
}

// countRedirect records one outcome per redirect request.
func (s *LinkService) countRedirect(err error, cached bool) {
	outcome := "miss"
	switch {
	case errors.Is(err, ErrURLNotExists):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	case cached:
		outcome = "hit"
	}
	metrics.Redirects.WithLabelValues(outcome).Inc()
}

// resolve reports whether the answer came from the cache.
func (s *LinkService) resolve(ctx context.Context, code string) (string, bool, error) {
	cached, err := s.cache.Get(ctx, code)
	if err != nil {
		s.logger.Warn(ctx, "redirect cache read failed", "error", err)
	}
	if err == nil && cached != nil {
		if cached.Missing {
			return "", true, ErrURLNotExists
		}
		return cached.LongURL, true, nil
	}

	record, err := s.urls.FindByCode(ctx, code)
	if err != nil {
		return "", false, fmt.Errorf("lookup short url: %w", err)
	}
	if record == nil {
		s.cacheSet(ctx, code, &cache.CachedLink{Missing: true}, s.missingTTL)
		return "", false, ErrURLNotExists
	}
	s.cacheSet(ctx, code, &cache.CachedLink{LongURL: record.LongURL}, s.cacheTTL)
	return record.LongURL, false, nil
}

// GetURL returns the details of one of the caller's short URLs.
func (s *LinkService) GetURL(ctx context.Context, userID uuid.UUID, code string) (*storage.ShortenedURL, error) {
	record, err := s.urls.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup short url: %w", err)
	}
	if record == nil || record.UserID != userID {
		return nil, ErrURLNotExists
	}
	return record, nil
}

func (s *LinkService) ListURLs(ctx context.Context, userID uuid.UUID, filter storage.ListFilter) ([]*storage.ShortenedURL, error) {
	urls, err := s.urls.ListByOwner(ctx, userID, filter.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list short urls: %w", err)
	}
	return urls, nil
}

func (s *LinkService) DeleteURL(ctx context.Context, userID, id uuid.UUID) error {
	record, err := s.ownedByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.urls.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrURLNotExists
		}
		return fmt.Errorf("delete short url: %w", err)
	}
	s.invalidate(ctx, record.ShortURL)
	s.logger.LogURLOperation(ctx, "delete", record.ShortURL, true)
	return nil
}

func (s *LinkService) ClickAnalytics(ctx context.Context, userID, id uuid.UUID) (ClickAnalytics, error) {
	record, err := s.ownedByID(ctx, userID, id)
	if err != nil {
		return ClickAnalytics{}, err
	}
	return AggregateClicks(record.ClickDates), nil
}

const maxSuggestionAttempts = 5

type SuggestionRequest struct {
	UserID   uuid.UUID `json:"-"`
	Title    string    `json:"title" validate:"required,max=255"`
	URL      string    `json:"url" validate:"required,url"`
	Keywords []string  `json:"keywords" validate:"max=20,dive,max=50"`
}

// SuggestAlias asks the suggester for an alias that is valid and still free.
func (s *LinkService) SuggestAlias(ctx context.Context, req *SuggestionRequest) (string, error) {
	if s.suggester == nil {
		return "", ErrSuggestionUnavailable
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return "", ErrUnauthorized
	}

	seen := make(map[string]bool)
	for attempt := 0; attempt < maxSuggestionAttempts; attempt++ {
		raw, err := s.suggester.Suggest(ctx, req.Title, req.URL, req.Keywords)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSuggestionUnavailable, err)
		}
		slug := NormalizeSlug(raw)
		if seen[slug] || ValidateAlias(slug) != nil {
			seen[slug] = true
			continue
		}
		seen[slug] = true

		taken, err := s.codeExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("lookup suggestion: %w", err)
		}
		if !taken {
			return slug, nil
		}
	}
	return "", ErrSuggestionExhausted
}

func (s *LinkService) ownedByID(ctx context.Context, userID, id uuid.UUID) (*storage.ShortenedURL, error) {
	record, err := s.urls.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup short url: %w", err)
	}
	if record == nil || record.UserID != userID {
		return nil, ErrURLNotExists
	}
	return record, nil
}

func (s *LinkService) cacheSet(ctx context.Context, code string, link *cache.CachedLink, ttl time.Duration) {
	if err := s.cache.Set(ctx, code, link, ttl); err != nil {
		s.logger.Warn(ctx, "redirect cache write failed", "error", err)
	}
}

func (s *LinkService) invalidate(ctx context.Context, codes ...string) {
	if err := s.cache.Delete(ctx, codes...); err != nil {
		s.logger.Warn(ctx, "redirect cache invalidation failed", "error", err)
	}
}

// validateLongURL accepts absolute http(s) URLs that do not point at local or
// private hosts.
func validateLongURL(raw string) error {
	parsedURL, err := url.ParseRequestURI(raw)
	if err != nil || parsedURL.Host == "" {
		return ErrInvalidURL
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%w: only http and https allowed", ErrInvalidURL)
	}

	host := parsedURL.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
			ip.IsMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("%w: private, loopback or reserved address", ErrInvalidURL)
		}
		return nil
	}
	hostLower := strings.ToLower(host)
	if hostLower == "localhost" || strings.HasSuffix(hostLower, ".localhost") {
		return fmt.Errorf("%w: localhost not allowed", ErrInvalidURL)
	}
	return nil
}
