package service

import "errors"

// Caller-visible failures. Match them with errors.Is; anything else returned
// by a service is an internal fault.
var (
	ErrAliasAlreadyExists  = errors.New("alias already exists")
	ErrURLNotExists        = errors.New("url does not exist")
	ErrMissingFields       = errors.New("missing fields")
	ErrGenerationExhausted = errors.New("failed to generate unique short url after maximum retries")

	ErrInvalidAlias = errors.New("invalid alias")
	ErrInvalidURL   = errors.New("invalid url")

	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrUserNotExists       = errors.New("user does not exist")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrPasswordTooLong     = errors.New("password too long")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUnauthorized        = errors.New("unauthorized")

	ErrSuggestionExhausted   = errors.New("could not find an available suggestion")
	ErrSuggestionUnavailable = errors.New("suggestion service unavailable")
)
