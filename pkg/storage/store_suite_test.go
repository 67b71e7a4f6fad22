package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stores struct {
	urls   ShortenedURLStore
	users  UserStore
	tokens TokenStore
}

// runStoreSuite checks the behaviour every store adapter must share.
func runStoreSuite(t *testing.T, s stores) {
	t.Run("users", func(t *testing.T) { testUsers(t, s) })
	t.Run("urls", func(t *testing.T) { testURLs(t, s) })
	t.Run("clicks", func(t *testing.T) { testClicks(t, s) })
	t.Run("listing", func(t *testing.T) { testListing(t, s) })
	t.Run("tokens", func(t *testing.T) { testTokens(t, s) })
	t.Run("cascade", func(t *testing.T) { testCascade(t, s) })
}

func newUser(t *testing.T, s stores) *User {
	t.Helper()
	u := &User{
		ID:        uuid.New(),
		Name:      "user",
		Email:     uuid.NewString() + "@example.com",
		Password:  "hash",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.users.Create(context.Background(), u))
	return u
}

func newURL(t *testing.T, s stores, owner uuid.UUID, code string, created time.Time) *ShortenedURL {
	t.Helper()
	u := &ShortenedURL{
		ID:        uuid.New(),
		LongURL:   "https://example.com/" + code,
		ShortURL:  code,
		Title:     "title " + code,
		CreatedAt: created,
		UpdatedAt: created,
		UserID:    owner,
	}
	require.NoError(t, s.urls.Create(context.Background(), u))
	return u
}

func uniqueCode() string {
	return uuid.NewString()[:8]
}

func testUsers(t *testing.T, s stores) {
	ctx := context.Background()
	u := newUser(t, s)

	byEmail, err := s.users.FindByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, u.ID, byEmail.ID)

	missing, err := s.users.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	dup := *u
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.users.Create(ctx, &dup), ErrConflict)

	name := "renamed"
	updated, err := s.users.Update(ctx, u.ID, UserFields{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, u.Email, updated.Email)

	other := newUser(t, s)
	_, err = s.users.Update(ctx, u.ID, UserFields{Email: &other.Email})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.users.Update(ctx, uuid.New(), UserFields{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.users.Delete(ctx, uuid.New()), ErrNotFound)
}

func testURLs(t *testing.T, s stores) {
	ctx := context.Background()
	owner := newUser(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)
	code := uniqueCode()
	u := newURL(t, s, owner.ID, code, now)

	byCode, err := s.urls.FindByCode(ctx, code)
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, u.ID, byCode.ID)
	assert.Equal(t, 0, byCode.Clicks)
	assert.NotNil(t, byCode.ClickDates)

	missing, err := s.urls.FindByCode(ctx, "no-such-code")
	require.NoError(t, err)
	assert.Nil(t, missing)
	missing, err = s.urls.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	dup := *u
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.urls.Create(ctx, &dup), ErrConflict)

	other := newURL(t, s, owner.ID, uniqueCode(), now)
	_, err = s.urls.UpdateFields(ctx, u.ID, owner.ID, URLFields{ShortURL: &other.ShortURL})
	assert.ErrorIs(t, err, ErrConflict)

	title := "new title"
	_, err = s.urls.UpdateFields(ctx, u.ID, uuid.New(), URLFields{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	renamed := uniqueCode()
	updated, err := s.urls.UpdateFields(ctx, u.ID, owner.ID, URLFields{ShortURL: &renamed, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, renamed, updated.ShortURL)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, u.LongURL, updated.LongURL)
	assert.False(t, updated.UpdatedAt.Before(u.UpdatedAt))

	gone, err := s.urls.FindByCode(ctx, code)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.ErrorIs(t, s.urls.Delete(ctx, u.ID, uuid.New()), ErrNotFound)
	require.NoError(t, s.urls.Delete(ctx, u.ID, owner.ID))
	assert.ErrorIs(t, s.urls.Delete(ctx, u.ID, owner.ID), ErrNotFound)
}

func testClicks(t *testing.T, s stores) {
	ctx := context.Background()
	owner := newUser(t, s)
	code := uniqueCode()
	u := newURL(t, s, owner.ID, code, time.Now().UTC())

	base := time.Date(2024, 5, 13, 1, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.urls.RecordClick(ctx, code, base.Add(time.Duration(i)*time.Hour)))
	}
	assert.ErrorIs(t, s.urls.RecordClick(ctx, "no-such-code", base), ErrNotFound)

	got, err := s.urls.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Clicks)
	require.Len(t, got.ClickDates, 3)
	assert.True(t, got.ClickDates[0].Equal(base))
	assert.True(t, got.ClickDates[2].Equal(base.Add(2*time.Hour)))
}

func testListing(t *testing.T, s stores) {
	ctx := context.Background()
	owner := newUser(t, s)
	stranger := newUser(t, s)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	oldest := newURL(t, s, owner.ID, uniqueCode(), day)
	middle := newURL(t, s, owner.ID, uniqueCode(), day.Add(24*time.Hour))
	newest := newURL(t, s, owner.ID, uniqueCode(), day.Add(48*time.Hour))
	newURL(t, s, stranger.ID, uniqueCode(), day)

	require.NoError(t, s.urls.RecordClick(ctx, middle.ShortURL, day))
	require.NoError(t, s.urls.RecordClick(ctx, middle.ShortURL, day))
	require.NoError(t, s.urls.RecordClick(ctx, oldest.ShortURL, day))

	ids := func(list []*ShortenedURL) []uuid.UUID {
		out := make([]uuid.UUID, len(list))
		for i, u := range list {
			out[i] = u.ID
		}
		return out
	}

	list, err := s.urls.ListByOwner(ctx, owner.ID, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{newest.ID, middle.ID, oldest.ID}, ids(list))

	list, err = s.urls.ListByOwner(ctx, owner.ID, ListFilter{OrderBy: OrderByCreatedAt, OrderDir: OrderAsc, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{oldest.ID, middle.ID}, ids(list))

	list, err = s.urls.ListByOwner(ctx, owner.ID, ListFilter{OrderBy: OrderByClicks, OrderDir: OrderDesc})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{middle.ID, oldest.ID, newest.ID}, ids(list))

	from := day.Add(12 * time.Hour)
	to := day.Add(36 * time.Hour)
	list, err = s.urls.ListByOwner(ctx, owner.ID, ListFilter{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{middle.ID}, ids(list))
}

func testTokens(t *testing.T, s stores) {
	ctx := context.Background()
	owner := newUser(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)
	tok := &Token{ID: uuid.New(), Token: uuid.NewString(), UserID: owner.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, s.tokens.Create(ctx, tok))

	found, err := s.tokens.FindByToken(ctx, tok.Token)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, owner.ID, found.UserID)
	assert.True(t, found.ExpiresAt.Equal(tok.ExpiresAt))

	next := &Token{ID: uuid.New(), Token: uuid.NewString(), UserID: owner.ID, ExpiresAt: now.Add(2 * time.Hour), CreatedAt: now}
	require.NoError(t, s.tokens.Rotate(ctx, tok.Token, next))
	assert.ErrorIs(t, s.tokens.Rotate(ctx, tok.Token, &Token{ID: uuid.New(), Token: uuid.NewString(), UserID: owner.ID, ExpiresAt: now, CreatedAt: now}), ErrNotFound)

	old, err := s.tokens.FindByToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.Nil(t, old)

	list, err := s.tokens.FindByUserID(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, next.Token, list[0].Token)

	require.NoError(t, s.tokens.Delete(ctx, next.Token))
	require.NoError(t, s.tokens.Delete(ctx, next.Token))
	require.NoError(t, s.tokens.DeleteByUserID(ctx, owner.ID))
}

func testCascade(t *testing.T, s stores) {
	ctx := context.Background()
	owner := newUser(t, s)
	u := newURL(t, s, owner.ID, uniqueCode(), time.Now().UTC())
	now := time.Now().UTC()
	tok := &Token{ID: uuid.New(), Token: uuid.NewString(), UserID: owner.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, s.tokens.Create(ctx, tok))

	require.NoError(t, s.users.Delete(ctx, owner.ID))

	gone, err := s.urls.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	token, err := s.tokens.FindByToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.Nil(t, token)

	keeper := newUser(t, s)
	kept := newURL(t, s, keeper.ID, uniqueCode(), now)
	require.NoError(t, s.urls.DeleteByOwner(ctx, uuid.New()))
	still, err := s.urls.FindByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
	require.NoError(t, s.urls.DeleteByOwner(ctx, keeper.ID))
	still, err = s.urls.FindByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Nil(t, still)
}
