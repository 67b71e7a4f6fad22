package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"shortlink/pkg/auth"
	"shortlink/pkg/logging"
	"shortlink/pkg/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultAccessTokenTTL  = 10 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	refreshTokenBytes = 32
	// bcrypt hashes at most this many bytes.
	maxPasswordBytes = 72
)

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

type UserService struct {
	users      storage.UserStore
	tokens     storage.TokenStore
	issuer     *auth.TokenIssuer
	logger     *logging.Logger
	validate   *validator.Validate
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time
}

type UserOption func(*UserService)

func WithRefreshTTL(ttl time.Duration) UserOption {
	return func(s *UserService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) UserOption {
	return func(s *UserService) { s.bcryptCost = cost }
}

func WithUserClock(now func() time.Time) UserOption {
	return func(s *UserService) { s.now = now }
}

func NewUserService(users storage.UserStore, tokens storage.TokenStore, issuer *auth.TokenIssuer, logger *logging.Logger, opts ...UserOption) *UserService {
	s := &UserService{
		users:      users,
		tokens:     tokens,
		issuer:     issuer,
		logger:     logger,
		validate:   validator.New(),
		refreshTTL: DefaultRefreshTokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) validEmail(email string) bool {
	return s.validate.Var(email, "required,email") == nil
}

// hashPassword rejects passwords bcrypt would refuse. Its limit is in
// bytes, so multibyte input can hit it below 72 characters.
func (s *UserService) hashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *UserService) Register(ctx context.Context, name, email, password string) (*storage.User, error) {
	email = normalizeEmail(email)
	if !s.validEmail(email) {
		return nil, ErrInvalidEmail
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &storage.User{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     email,
		Password:  string(hash),
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.LogAuthEvent(ctx, "register", email, true)
	return user, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (TokenPair, *storage.User, error) {
	email = normalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("lookup email: %w", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		s.logger.LogAuthEvent(ctx, "login", email, false)
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	refresh, err := s.newRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if err := s.tokens.Create(ctx, refresh); err != nil {
		return TokenPair{}, nil, fmt.Errorf("store refresh token: %w", err)
	}

	pair, err := s.pair(user.ID, refresh)
	if err != nil {
		return TokenPair{}, nil, err
	}
	s.logger.LogAuthEvent(ctx, "login", email, true)
	return pair, user, nil
}

// Refresh exchanges a live refresh token for a new pair. The presented token
// is consumed either way: expired ones are deleted, live ones rotated.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	current, err := s.tokens.FindByToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	if current == nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	if current.Expired(s.now()) {
		if err := s.tokens.Delete(ctx, refreshToken); err != nil {
			s.logger.Warn(ctx, "failed to delete expired refresh token", "error", err)
		}
		s.logger.LogAuthEvent(ctx, "refresh", current.UserID.String(), false)
		return TokenPair{}, ErrInvalidRefreshToken
	}

	next, err := s.newRefreshToken(current.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Rotate(ctx, refreshToken, next); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Someone else rotated it first.
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.logger.LogAuthEvent(ctx, "refresh", current.UserID.String(), true)
	return s.pair(current.UserID, next)
}

func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Delete(ctx, refreshToken); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*storage.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotExists
	}
	return user, nil
}

type UpdateProfileRequest struct {
	UserID          uuid.UUID `json:"-"`
	Name            *string   `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Email           *string   `json:"email,omitempty" validate:"omitempty,max=254"`
	CurrentPassword *string   `json:"currentPassword,omitempty"`
	Password        *string   `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
}

func (s *UserService) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*storage.User, error) {
	if req.Name == nil && req.Email == nil && req.Password == nil {
		return nil, ErrMissingFields
	}

	user, err := s.GetProfile(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	var fields storage.UserFields
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		fields.Name = &name
	}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if !s.validEmail(email) {
			return nil, ErrInvalidEmail
		}
		if email != user.Email {
			owner, err := s.users.FindByEmail(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("lookup email: %w", err)
			}
			if owner != nil {
				return nil, ErrEmailAlreadyExists
			}
		}
		fields.Email = &email
	}

	if req.Password != nil {
		if req.CurrentPassword == nil || *req.CurrentPassword == "" {
			return nil, ErrMissingFields
		}
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(*req.CurrentPassword)) != nil {
			return nil, ErrInvalidPassword
		}
		hash, err := s.hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		fields.Password = &hash
	}

	updated, err := s.users.Update(ctx, req.UserID, fields)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrUserNotExists
	case errors.Is(err, storage.ErrConflict):
		return nil, ErrEmailAlreadyExists
	case err != nil:
		return nil, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

// DeleteUser removes the account after re-checking its password. Owned URLs
// and refresh tokens go with it.
func (s *UserService) DeleteUser(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		s.logger.LogAuthEvent(ctx, "delete_user", user.Email, false)
		return ErrInvalidCredentials
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotExists
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.LogAuthEvent(ctx, "delete_user", user.Email, true)
	return nil
}

func (s *UserService) newRefreshToken(userID uuid.UUID) (*storage.Token, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now()
	return &storage.Token{
		ID:        uuid.New(),
		Token:     hex.EncodeToString(raw),
		UserID:    userID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}, nil
}

func (s *UserService) pair(userID uuid.UUID, refresh *storage.Token) (TokenPair, error) {
	access, err := s.issuer.Issue(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  s.now().Add(s.issuer.TTL()),
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}
