package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	ErrNilCache    = errors.New("cache: loader requires a cache")
	ErrNilResolver = errors.New("cache: loader requires a resolver")
)

// Resolver computes the value for a key on a cache miss.
type Resolver[V any] interface {
	Resolve(ctx context.Context, key string) (V, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc[V any] func(ctx context.Context, key string) (V, error)

func (f ResolverFunc[V]) Resolve(ctx context.Context, key string) (V, error) {
	return f(ctx, key)
}

type LoaderOption func(*loaderConfig)

type loaderConfig struct {
	observer      Observer
	singleFlight  bool
	flightTimeout time.Duration
}

// WithObserver reports hits, misses, evictions and resolutions to o.
func WithObserver(o Observer) LoaderOption {
	return func(cfg *loaderConfig) {
		if o != nil {
			cfg.observer = o
		}
	}
}

// WithSingleFlight coalesces concurrent misses for the same key into one
// Resolve call and shares its result. The shared call is detached from the
// cancellation of whichever caller started it; every caller still stops
// waiting when its own context is done.
func WithSingleFlight() LoaderOption {
	return func(cfg *loaderConfig) {
		cfg.singleFlight = true
	}
}

// WithFlightTimeout bounds a shared single-flight Resolve call. Zero leaves
// the bound to the resolver.
func WithFlightTimeout(d time.Duration) LoaderOption {
	return func(cfg *loaderConfig) {
		if d > 0 {
			cfg.flightTimeout = d
		}
	}
}

// Loader fronts a Resolver with a Cache.
type Loader[V any] struct {
	cache    *Cache[string, V]
	resolver Resolver[V]
	observer Observer
	flight   *singleflight.Group
	timeout  time.Duration
}

func NewLoader[V any](c *Cache[string, V], r Resolver[V], opts ...LoaderOption) (*Loader[V], error) {
	if c == nil {
		return nil, ErrNilCache
	}
	if r == nil {
		return nil, ErrNilResolver
	}
	cfg := loaderConfig{observer: nopObserver{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	l := &Loader[V]{cache: c, resolver: r, observer: cfg.observer, timeout: cfg.flightTimeout}
	if cfg.singleFlight {
		l.flight = &singleflight.Group{}
	}
	return l, nil
}

// Cache exposes the underlying store, e.g. for administrative deletes.
func (l *Loader[V]) Cache() *Cache[string, V] { return l.cache }

// GetOrResolve returns the fresh cached value for key, or resolves, stores and
// returns it. Resolver errors are returned unchanged and leave the cache
// untouched. No lock is held while the resolver runs.
func (l *Loader[V]) GetOrResolve(ctx context.Context, key string) (V, error) {
	if v, ok := l.cache.Get(key); ok {
		l.observer.Hit(key)
		return v, nil
	}
	l.observer.Miss(key)

	if l.flight == nil {
		return l.resolve(ctx, key)
	}
	ch := l.flight.DoChan(key, func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		if l.timeout > 0 {
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithTimeout(flightCtx, l.timeout)
			defer cancel()
		}
		return l.resolve(flightCtx, key)
	})
	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

func (l *Loader[V]) resolve(ctx context.Context, key string) (V, error) {
	start := time.Now()
	v, err := l.resolver.Resolve(ctx, key)
	l.observer.Resolved(key, time.Since(start), err)
	if err != nil {
		var zero V
		return zero, err
	}
	if victim, evicted := l.cache.set(key, v); evicted {
		l.observer.Evicted(victim)
	}
	return v, nil
}
