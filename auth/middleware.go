package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type TokenExtractor func(*http.Request) (string, error)

type MiddlewareSkipper func(*http.Request) bool

type MiddlewareErrorHandler func(http.ResponseWriter, *http.Request, error)

type MiddlewareOption func(*Middleware)

type Middleware struct {
	parser       TokenParser
	extractor    TokenExtractor
	skipper      MiddlewareSkipper
	errorHandler MiddlewareErrorHandler
}

type tokenContextKey struct{}

func NewMiddleware(parser TokenParser, opts ...MiddlewareOption) (*Middleware, error) {
	if parser == nil {
		return nil, errors.New("auth: middleware requires a token parser")
	}
	m := &Middleware{
		parser:       parser,
		extractor:    BearerTokenExtractor(),
		skipper:      func(*http.Request) bool { return false },
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(m *Middleware) {
		if extractor != nil {
			m.extractor = extractor
		}
	}
}

func WithSkipper(skipper MiddlewareSkipper) MiddlewareOption {
	return func(m *Middleware) {
		if skipper != nil {
			m.skipper = skipper
		}
	}
}

func WithErrorHandler(handler MiddlewareErrorHandler) MiddlewareOption {
	return func(m *Middleware) {
		if handler != nil {
			m.errorHandler = handler
		}
	}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m == nil {
		panic("auth: middleware is nil")
	}
	if next == nil {
		next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := m.extractor(r)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}

		token, err := m.parser.ParseToken(r.Context(), raw)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), tokenContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TokenFromContext(ctx context.Context) (Token, bool) {
	if ctx == nil {
		return nil, false
	}
	token, ok := ctx.Value(tokenContextKey{}).(Token)
	return token, ok
}

func BearerTokenExtractor() TokenExtractor {
	return func(r *http.Request) (string, error) {
		header := r.Header.Get("Authorization")
		if header == "" {
			return "", ErrTokenNotFound
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", ErrTokenInvalidInput
		}
		if token = strings.TrimSpace(token); token == "" {
			return "", ErrTokenInvalidInput
		}
		return token, nil
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
	http.Error(w, err.Error(), status)
}
