package storage

import (
	"time"

	"github.com/google/uuid"
)

// ShortenedURL is a long URL reachable through its short code.
// Clicks is derived from ClickDates on every read and is never written.
type ShortenedURL struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	LongURL    string      `json:"long_url" db:"long_url"`
	ShortURL   string      `json:"short_url" db:"short_url"`
	Title      string      `json:"title" db:"title"`
	Clicks     int         `json:"clicks" db:"clicks"`
	ClickDates []time.Time `json:"clickDates" db:"click_dates"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
	UserID     uuid.UUID   `json:"user_id" db:"user_id"`
}

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Token is a server-side refresh token record.
type Token struct {
	ID        uuid.UUID `db:"id"`
	Token     string    `db:"token"`
	UserID    uuid.UUID `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Expired reports whether the token is no longer usable at now.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// URLFields holds the mutable fields of a ShortenedURL. Nil fields are left unchanged.
type URLFields struct {
	ShortURL *string
	Title    *string
}

// UserFields holds the mutable fields of a User. Nil fields are left unchanged.
type UserFields struct {
	Name     *string
	Email    *string
	Password *string
}

// ListFilter narrows and orders an owner's URL listing.
type ListFilter struct {
	Limit    int
	OrderBy  string
	OrderDir string
	DateFrom *time.Time
	DateTo   *time.Time
}

const (
	OrderByClicks    = "clicks"
	OrderByCreatedAt = "created_at"
	OrderByUpdatedAt = "updated_at"

	OrderAsc  = "asc"
	OrderDesc = "desc"

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize fills defaults and clamps the limit.
func (f ListFilter) Normalize() ListFilter {
	switch f.OrderBy {
	case OrderByClicks, OrderByCreatedAt, OrderByUpdatedAt:
	default:
		f.OrderBy = OrderByCreatedAt
	}
	if f.OrderDir != OrderAsc {
		f.OrderDir = OrderDesc
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}
