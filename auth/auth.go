// Package auth guards administrative endpoints with a shared bearer token
// whose bcrypt hash is configured at start-up.
package auth

import (
	"context"
	"errors"
)

var (
	ErrTokenNotFound     = errors.New("auth: token not found")
	ErrTokenInvalidInput = errors.New("auth: invalid token source")
	ErrTokenMismatch     = errors.New("auth: token does not match")
	ErrInvalidHash       = errors.New("auth: invalid token hash")
)

// Token is the verified credential attached to a request context.
type Token interface {
	Raw() string
	Subject() string
}

// TokenParser verifies a raw credential extracted from a request.
type TokenParser interface {
	ParseToken(ctx context.Context, raw string) (Token, error)
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
