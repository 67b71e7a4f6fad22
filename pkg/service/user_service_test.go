package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"shortlink/pkg/auth"
	"shortlink/pkg/logging"
	"shortlink/pkg/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type userFixture struct {
	store   *storage.MemoryStore
	issuer  *auth.TokenIssuer
	service *UserService
	now     time.Time
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	f := &userFixture{
		store:  storage.NewMemoryStore(),
		issuer: auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), DefaultAccessTokenTTL),
		now:    time.Now(),
	}
	f.service = NewUserService(f.store.Users(), f.store.Tokens(), f.issuer, logging.Discard(),
		WithBcryptCost(bcrypt.MinCost),
		WithUserClock(func() time.Time { return f.now }),
	)
	return f
}

func (f *userFixture) register(t *testing.T, email, password string) *storage.User {
	t.Helper()
	user, err := f.service.Register(context.Background(), "Ada", email, password)
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	f := newUserFixture(t)
	user := f.register(t, "  Ada@Example.com ", "correct horse")

	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "correct horse", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("correct horse")))

	_, err := f.service.Register(context.Background(), "Other", "ada@example.com", "whatever1")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, err = f.service.Register(context.Background(), "Bad", "not-an-email", "whatever1")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestRegister_MultibytePasswordOverBcryptLimit(t *testing.T) {
	f := newUserFixture(t)
	// 40 characters, 80 bytes.
	_, err := f.service.Register(context.Background(), "Ada", "ada@example.com", strings.Repeat("é", 40))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	user := f.register(t, "ada@example.com", strings.Repeat("é", 36))
	assert.NotEmpty(t, user.Password)
}

func TestLogin(t *testing.T) {
	f := newUserFixture(t)
	user := f.register(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	_, _, err := f.service.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.service.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	pair, got, err := f.service.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Len(t, pair.RefreshToken, 2*refreshTokenBytes)
	assert.WithinDuration(t, f.now.Add(DefaultRefreshTokenTTL), pair.RefreshExpiresAt, time.Second)

	userID, err := f.issuer.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	stored, err := f.store.Tokens().FindByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, user.ID, stored.UserID)
}

func TestRefresh_Rotates(t *testing.T) {
	f := newUserFixture(t)
	f.register(t, "ada@example.com", "correct horse")
	ctx := context.Background()
	first, _, err := f.service.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	next, err := f.service.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, next.RefreshToken)
	assert.NotEmpty(t, next.AccessToken)

	old, err := f.store.Tokens().FindByToken(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Nil(t, old)

	_, err = f.service.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_ExpiredTokenIsDeleted(t *testing.T) {
	f := newUserFixture(t)
	f.register(t, "ada@example.com", "correct horse")
	ctx := context.Background()
	pair, _, err := f.service.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	f.now = f.now.Add(DefaultRefreshTokenTTL)
	_, err = f.service.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	stored, err := f.store.Tokens().FindByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRefresh_Unknown(t *testing.T) {
	f := newUserFixture(t)
	_, err := f.service.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = f.service.Refresh(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogout(t *testing.T) {
	f := newUserFixture(t)
	f.register(t, "ada@example.com", "correct horse")
	ctx := context.Background()
	pair, _, err := f.service.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.service.Logout(ctx, pair.RefreshToken))

	_, err = f.service.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestUpdateProfile(t *testing.T) {
	f := newUserFixture(t)
	ada := f.register(t, "ada@example.com", "correct horse")
	f.register(t, "bob@example.com", "battery staple")
	ctx := context.Background()

	tests := []struct {
		name string
		req  UpdateProfileRequest
		want error
	}{
		{"nothing supplied", UpdateProfileRequest{UserID: ada.ID}, ErrMissingFields},
		{"unknown user", UpdateProfileRequest{UserID: uuid.New(), Name: strPtr("x")}, ErrUserNotExists},
		{"bad email", UpdateProfileRequest{UserID: ada.ID, Email: strPtr("nope")}, ErrInvalidEmail},
		{"email taken", UpdateProfileRequest{UserID: ada.ID, Email: strPtr("Bob@example.com")}, ErrEmailAlreadyExists},
		{"password without current", UpdateProfileRequest{UserID: ada.ID, Password: strPtr("new password")}, ErrMissingFields},
		{"wrong current password", UpdateProfileRequest{UserID: ada.ID, Password: strPtr("new password"), CurrentPassword: strPtr("nope")}, ErrInvalidPassword},
		{"new password over bcrypt limit", UpdateProfileRequest{UserID: ada.ID, Password: strPtr(strings.Repeat("é", 40)), CurrentPassword: strPtr("correct horse")}, ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.service.UpdateProfile(ctx, &req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	updated, err := f.service.UpdateProfile(ctx, &UpdateProfileRequest{
		UserID:          ada.ID,
		Name:            strPtr("Ada L."),
		Email:           strPtr("ada@example.com"),
		CurrentPassword: strPtr("correct horse"),
		Password:        strPtr("new password"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.Name)

	_, _, err = f.service.Login(ctx, "ada@example.com", "new password")
	assert.NoError(t, err)
}

func TestDeleteUser_Cascades(t *testing.T) {
	f := newUserFixture(t)
	ada := f.register(t, "ada@example.com", "correct horse")
	ctx := context.Background()
	pair, _, err := f.service.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	links := NewLinkService(f.store.URLs(), f.store.Users(), nil, logging.Discard(), "https://sho.rt")
	created, err := links.CreateURL(ctx, &CreateURLRequest{LongURL: "https://example.com", UserID: ada.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, f.service.DeleteUser(ctx, ada.ID, "wrong"), ErrInvalidCredentials)
	require.NoError(t, f.service.DeleteUser(ctx, ada.ID, "correct horse"))

	gone, err := f.store.URLs().FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	token, err := f.store.Tokens().FindByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Nil(t, token)

	_, err = f.service.GetProfile(ctx, ada.ID)
	assert.ErrorIs(t, err, ErrUserNotExists)
	assert.ErrorIs(t, f.service.DeleteUser(ctx, ada.ID, "correct horse"), ErrUserNotExists)
}
