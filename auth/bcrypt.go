package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

type staticToken struct {
	raw     string
	subject string
}

func (t staticToken) Raw() string     { return t.raw }
func (t staticToken) Subject() string { return t.subject }

// BcryptTokenParser accepts exactly one token: the one whose bcrypt hash it
// was built with.
type BcryptTokenParser struct {
	hash    []byte
	subject string
}

type BcryptOption func(*BcryptTokenParser)

// WithSubject names the principal attached to verified requests.
func WithSubject(subject string) BcryptOption {
	return func(p *BcryptTokenParser) {
		if subject = strings.TrimSpace(subject); subject != "" {
			p.subject = subject
		}
	}
}

// NewBcryptTokenParser validates hash and returns a parser for it.
func NewBcryptTokenParser(hash string, opts ...BcryptOption) (*BcryptTokenParser, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, ErrInvalidHash
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	p := &BcryptTokenParser{hash: []byte(hash), subject: "admin"}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *BcryptTokenParser) ParseToken(ctx context.Context, raw string) (Token, error) {
	if err := contextError(ctx); err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, ErrTokenInvalidInput
	}
	if err := bcrypt.CompareHashAndPassword(p.hash, []byte(raw)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrTokenMismatch
		}
		return nil, fmt.Errorf("auth: bcrypt compare failed: %w", err)
	}
	return staticToken{raw: raw, subject: p.subject}, nil
}

// HashToken produces the bcrypt hash to configure for a token. A cost outside
// bcrypt's range falls back to DefaultBcryptCost.
func HashToken(raw []byte, cost int) (string, error) {
	if len(raw) == 0 {
		return "", ErrTokenInvalidInput
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	hashed, err := bcrypt.GenerateFromPassword(raw, cost)
	if err != nil {
		return "", fmt.Errorf("auth: bcrypt hash failed: %w", err)
	}
	return string(hashed), nil
}
