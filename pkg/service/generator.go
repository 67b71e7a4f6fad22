package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"shortlink/pkg/metrics"
)

const (
	codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	DefaultCodeLength  = 7
	DefaultMaxAttempts = 10

	// Bytes at or above this value are rejected so that b % len(codeAlphabet)
	// is uniform.
	rejectionBound = 256 - 256%len(codeAlphabet)
)

// ExistsFunc reports whether a short code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// CodeGenerator draws random short codes until it finds one that is free.
type CodeGenerator struct {
	exists      ExistsFunc
	length      int
	maxAttempts int
	random      io.Reader
}

type GeneratorOption func(*CodeGenerator)

func WithCodeLength(n int) GeneratorOption {
	return func(g *CodeGenerator) { g.length = n }
}

func WithMaxAttempts(n int) GeneratorOption {
	return func(g *CodeGenerator) { g.maxAttempts = n }
}

// WithRandom replaces crypto/rand as the source of randomness.
func WithRandom(r io.Reader) GeneratorOption {
	return func(g *CodeGenerator) { g.random = r }
}

func NewCodeGenerator(exists ExistsFunc, opts ...GeneratorOption) *CodeGenerator {
	g := &CodeGenerator{
		exists:      exists,
		length:      DefaultCodeLength,
		maxAttempts: DefaultMaxAttempts,
		random:      rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the first candidate the lookup reports as free, or
// ErrGenerationExhausted once maxAttempts candidates were all taken.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code, err := g.randomCode()
		if err != nil {
			return "", err
		}
		taken, err := g.exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check short url uniqueness: %w", err)
		}
		if !taken {
			return code, nil
		}
		metrics.CodeCollisions.Inc()
	}
	return "", ErrGenerationExhausted
}

func (g *CodeGenerator) randomCode() (string, error) {
	code := make([]byte, 0, g.length)
	buf := make([]byte, g.length)
	for len(code) < g.length {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectionBound {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == g.length {
				break
			}
		}
	}
	return string(code), nil
}
