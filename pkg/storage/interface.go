package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by mutations that target a missing row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("unique constraint violation")
)

// ShortenedURLStore persists shortened URLs. Lookups return (nil, nil) when
// nothing matches.
type ShortenedURLStore interface {
	Create(ctx context.Context, url *ShortenedURL) error
	FindByCode(ctx context.Context, code string) (*ShortenedURL, error)
	FindByID(ctx context.Context, id uuid.UUID) (*ShortenedURL, error)
	ListByOwner(ctx context.Context, owner uuid.UUID, filter ListFilter) ([]*ShortenedURL, error)
	UpdateFields(ctx context.Context, id, owner uuid.UUID, fields URLFields) (*ShortenedURL, error)
	// RecordClick appends at to the click history in a single atomic write.
	RecordClick(ctx context.Context, code string, at time.Time) error
	Delete(ctx context.Context, id, owner uuid.UUID) error
	DeleteByOwner(ctx context.Context, owner uuid.UUID) error
}

type UserStore interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	Update(ctx context.Context, id uuid.UUID, fields UserFields) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type TokenStore interface {
	Create(ctx context.Context, token *Token) error
	FindByToken(ctx context.Context, token string) (*Token, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*Token, error)
	// Rotate deletes old and inserts next atomically.
	Rotate(ctx context.Context, old string, next *Token) error
	Delete(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
