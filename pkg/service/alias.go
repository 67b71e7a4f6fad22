package service

import (
	"context"
	"fmt"
	"strings"

	"shortlink/pkg/storage"
)

// AliasArbiter decides which short code a create or rename ends up with.
// Its existence checks are a fast path; the store's unique constraint on
// short_url has the final word.
type AliasArbiter struct {
	urls      storage.ShortenedURLStore
	generator *CodeGenerator
}

func NewAliasArbiter(urls storage.ShortenedURLStore, generator *CodeGenerator) *AliasArbiter {
	return &AliasArbiter{urls: urls, generator: generator}
}

// ResolveForCreate returns the normalized alias when one is requested, or a
// freshly generated code otherwise. A requested alias that is taken is an
// error; it never falls back to generation.
func (a *AliasArbiter) ResolveForCreate(ctx context.Context, alias *string) (code string, explicit bool, err error) {
	if alias == nil || strings.TrimSpace(*alias) == "" {
		code, err = a.generator.Generate(ctx)
		return code, false, err
	}

	slug := NormalizeSlug(*alias)
	if err := ValidateAlias(slug); err != nil {
		return "", true, err
	}
	existing, err := a.urls.FindByCode(ctx, slug)
	if err != nil {
		return "", true, fmt.Errorf("lookup alias: %w", err)
	}
	if existing != nil {
		return "", true, ErrAliasAlreadyExists
	}
	return slug, true, nil
}

// ResolveForUpdate normalizes a rename target for current. Renaming a record
// to the code it already holds is allowed and changes nothing.
func (a *AliasArbiter) ResolveForUpdate(ctx context.Context, current *storage.ShortenedURL, alias string) (string, error) {
	slug := NormalizeSlug(alias)
	if err := ValidateAlias(slug); err != nil {
		return "", err
	}
	existing, err := a.urls.FindByCode(ctx, slug)
	if err != nil {
		return "", fmt.Errorf("lookup alias: %w", err)
	}
	if existing != nil && existing.ID != current.ID {
		return "", ErrAliasAlreadyExists
	}
	return slug, nil
}
