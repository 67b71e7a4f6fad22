package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps users, short URLs and refresh tokens in process memory.
// It enforces the same uniqueness and cascade rules as the PostgreSQL schema.
type MemoryStore struct {
	mu     sync.RWMutex
	urls   map[uuid.UUID]*ShortenedURL
	codes  map[string]uuid.UUID
	users  map[uuid.UUID]*User
	emails map[string]uuid.UUID
	tokens map[string]*Token
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		urls:   make(map[uuid.UUID]*ShortenedURL),
		codes:  make(map[string]uuid.UUID),
		users:  make(map[uuid.UUID]*User),
		emails: make(map[string]uuid.UUID),
		tokens: make(map[string]*Token),
	}
}

// URLs, Users and Tokens expose the store through the per-entity interfaces.
func (m *MemoryStore) URLs() ShortenedURLStore { return (*memoryURLs)(m) }
func (m *MemoryStore) Users() UserStore        { return (*memoryUsers)(m) }
func (m *MemoryStore) Tokens() TokenStore      { return (*memoryTokens)(m) }

func copyURL(u *ShortenedURL) *ShortenedURL {
	c := *u
	c.ClickDates = append([]time.Time{}, u.ClickDates...)
	c.Clicks = len(c.ClickDates)
	return &c
}

type memoryURLs MemoryStore

func (s *memoryURLs) Create(_ context.Context, url *ShortenedURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[url.ShortURL]; taken {
		return ErrConflict
	}
	if _, taken := s.urls[url.ID]; taken {
		return ErrConflict
	}
	stored := copyURL(url)
	s.urls[url.ID] = stored
	s.codes[url.ShortURL] = url.ID
	return nil
}

func (s *memoryURLs) FindByCode(_ context.Context, code string) (*ShortenedURL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return nil, nil
	}
	return copyURL(s.urls[id]), nil
}

func (s *memoryURLs) FindByID(_ context.Context, id uuid.UUID) (*ShortenedURL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.urls[id]
	if !ok {
		return nil, nil
	}
	return copyURL(u), nil
}

func (s *memoryURLs) ListByOwner(_ context.Context, owner uuid.UUID, filter ListFilter) ([]*ShortenedURL, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	list := make([]*ShortenedURL, 0)
	for _, u := range s.urls {
		if u.UserID != owner {
			continue
		}
		if filter.DateFrom != nil && u.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && u.CreatedAt.After(*filter.DateTo) {
			continue
		}
		list = append(list, copyURL(u))
	}
	s.mu.RUnlock()

	less := func(a, b *ShortenedURL) int {
		switch filter.OrderBy {
		case OrderByClicks:
			return a.Clicks - b.Clicks
		case OrderByUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		c := less(list[i], list[j])
		if filter.OrderDir == OrderDesc {
			c = -c
		}
		if c == 0 {
			return list[i].ID.String() < list[j].ID.String()
		}
		return c < 0
	})

	if len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (s *memoryURLs) UpdateFields(_ context.Context, id, owner uuid.UUID, fields URLFields) (*ShortenedURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.urls[id]
	if !ok || u.UserID != owner {
		return nil, ErrNotFound
	}
	if fields.ShortURL != nil && *fields.ShortURL != u.ShortURL {
		if _, taken := s.codes[*fields.ShortURL]; taken {
			return nil, ErrConflict
		}
		delete(s.codes, u.ShortURL)
		u.ShortURL = *fields.ShortURL
		s.codes[u.ShortURL] = u.ID
	}
	if fields.Title != nil {
		u.Title = *fields.Title
	}
	u.UpdatedAt = time.Now()
	return copyURL(u), nil
}

func (s *memoryURLs) RecordClick(_ context.Context, code string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return ErrNotFound
	}
	u := s.urls[id]
	u.ClickDates = append(u.ClickDates, at)
	return nil
}

func (s *memoryURLs) Delete(_ context.Context, id, owner uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.urls[id]
	if !ok || u.UserID != owner {
		return ErrNotFound
	}
	delete(s.codes, u.ShortURL)
	delete(s.urls, id)
	return nil
}

func (s *memoryURLs) DeleteByOwner(_ context.Context, owner uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	(*MemoryStore)(s).deleteOwnedLocked(owner)
	return nil
}

func (m *MemoryStore) deleteOwnedLocked(owner uuid.UUID) {
	for id, u := range m.urls {
		if u.UserID == owner {
			delete(m.codes, u.ShortURL)
			delete(m.urls, id)
		}
	}
	for tok, t := range m.tokens {
		if t.UserID == owner {
			delete(m.tokens, tok)
		}
	}
}

type memoryUsers MemoryStore

func (s *memoryUsers) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[user.Email]; taken {
		return ErrConflict
	}
	c := *user
	s.users[user.ID] = &c
	s.emails[user.Email] = user.ID
	return nil
}

func (s *memoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return nil, nil
	}
	c := *s.users[id]
	return &c, nil
}

func (s *memoryUsers) FindByID(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (s *memoryUsers) Update(_ context.Context, id uuid.UUID, fields UserFields) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if fields.Email != nil && *fields.Email != u.Email {
		if _, taken := s.emails[*fields.Email]; taken {
			return nil, ErrConflict
		}
		delete(s.emails, u.Email)
		u.Email = *fields.Email
		s.emails[u.Email] = id
	}
	if fields.Name != nil {
		u.Name = *fields.Name
	}
	if fields.Password != nil {
		u.Password = *fields.Password
	}
	c := *u
	return &c, nil
}

func (s *memoryUsers) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	(*MemoryStore)(s).deleteOwnedLocked(id)
	delete(s.emails, u.Email)
	delete(s.users, id)
	return nil
}

type memoryTokens MemoryStore

func (s *memoryTokens) Create(_ context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.tokens[token.Token]; taken {
		return ErrConflict
	}
	c := *token
	s.tokens[token.Token] = &c
	return nil
}

func (s *memoryTokens) FindByToken(_ context.Context, token string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (s *memoryTokens) FindByUserID(_ context.Context, userID uuid.UUID) ([]*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*Token, 0)
	for _, t := range s.tokens {
		if t.UserID == userID {
			c := *t
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (s *memoryTokens) Rotate(_ context.Context, old string, next *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[old]; !ok {
		return ErrNotFound
	}
	if _, taken := s.tokens[next.Token]; taken {
		return ErrConflict
	}
	delete(s.tokens, old)
	c := *next
	s.tokens[next.Token] = &c
	return nil
}

func (s *memoryTokens) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *memoryTokens) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, tok)
		}
	}
	return nil
}
