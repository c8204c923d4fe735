package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingResolver struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (r *countingResolver) Resolve(ctx context.Context, key string) (string, error) {
	r.calls.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if r.err != nil {
		return "", r.err
	}
	return "value:" + key, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	events   []string
	resolved []error
}

func (o *recordingObserver) record(event string) {
	o.mu.Lock()
	o.events = append(o.events, event)
	o.mu.Unlock()
}

func (o *recordingObserver) Hit(key string)     { o.record("hit:" + key) }
func (o *recordingObserver) Miss(key string)    { o.record("miss:" + key) }
func (o *recordingObserver) Evicted(key string) { o.record("evict:" + key) }

func (o *recordingObserver) Resolved(key string, _ time.Duration, err error) {
	o.record("resolve:" + key)
	o.mu.Lock()
	o.resolved = append(o.resolved, err)
	o.mu.Unlock()
}

func newStringCache(t *testing.T, capacity int, clock *fakeClock) *Cache[string, string] {
	t.Helper()
	c, err := New[string, string](Options{Capacity: capacity, TTL: time.Minute, Now: clock.Now})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func waitForCalls(t *testing.T, r *countingResolver, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.calls.Load() >= want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("resolver calls = %d, want %d", r.calls.Load(), want)
}

func TestNewLoaderRequiresCacheAndResolver(t *testing.T) {
	c := newStringCache(t, 1, newFakeClock())
	if _, err := NewLoader[string](nil, &countingResolver{}); !errors.Is(err, ErrNilCache) {
		t.Fatalf("expected ErrNilCache, got %v", err)
	}
	if _, err := NewLoader[string](c, nil); !errors.Is(err, ErrNilResolver) {
		t.Fatalf("expected ErrNilResolver, got %v", err)
	}
}

func TestGetOrResolveCachesSuccessfulResolution(t *testing.T) {
	resolver := &countingResolver{}
	loader, err := NewLoader[string](newStringCache(t, 4, newFakeClock()), resolver)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		v, err := loader.GetOrResolve(context.Background(), "https://example.com/a")
		if err != nil {
			t.Fatalf("GetOrResolve() error = %v", err)
		}
		if v != "value:https://example.com/a" {
			t.Fatalf("GetOrResolve() = %q", v)
		}
	}
	if got := resolver.calls.Load(); got != 1 {
		t.Fatalf("resolver calls = %d, want 1", got)
	}
	if v, ok := loader.Cache().Get("https://example.com/a"); !ok || v != "value:https://example.com/a" {
		t.Fatalf("expected resolved value in cache, got %q, %v", v, ok)
	}
}

func TestGetOrResolvePropagatesFailureUnchanged(t *testing.T) {
	failure := errors.New("unsupported resource")
	resolver := &countingResolver{err: failure}
	c := newStringCache(t, 4, newFakeClock())
	loader, err := NewLoader[string](c, resolver)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	_, err = loader.GetOrResolve(context.Background(), "ftp://nowhere")
	if err != failure {
		t.Fatalf("GetOrResolve() error = %v, want the resolver's error", err)
	}
	if got := c.Len(); got != 0 {
		t.Fatalf("failed resolution modified the cache: Len() = %d", got)
	}

	if _, err := loader.GetOrResolve(context.Background(), "ftp://nowhere"); err != failure {
		t.Fatalf("second GetOrResolve() error = %v", err)
	}
	if got := resolver.calls.Load(); got != 2 {
		t.Fatalf("failures must not be cached: resolver calls = %d, want 2", got)
	}
}

func TestGetOrResolveResolvesAgainAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	resolver := &countingResolver{}
	loader, err := NewLoader[string](newStringCache(t, 4, clock), resolver)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	ctx := context.Background()
	if _, err := loader.GetOrResolve(ctx, "k"); err != nil {
		t.Fatalf("GetOrResolve() error = %v", err)
	}
	clock.Advance(time.Minute + time.Second)
	if _, err := loader.GetOrResolve(ctx, "k"); err != nil {
		t.Fatalf("GetOrResolve() error = %v", err)
	}
	if got := resolver.calls.Load(); got != 2 {
		t.Fatalf("resolver calls = %d, want 2", got)
	}
	if got := loader.Cache().Len(); got != 1 {
		t.Fatalf("refresh should overwrite in place, Len() = %d", got)
	}
}

func TestGetOrResolveDoesNotHoldLockDuringResolve(t *testing.T) {
	resolver := &countingResolver{release: make(chan struct{})}
	loader, err := NewLoader[string](newStringCache(t, 4, newFakeClock()), resolver)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := loader.GetOrResolve(context.Background(), "same"); err != nil {
				t.Errorf("GetOrResolve() error = %v", err)
			}
		}()
	}

	// Both callers miss and resolve redundantly while the cache stays usable.
	waitForCalls(t, resolver, 2)
	loader.Cache().Set("other", "x")
	if _, ok := loader.Cache().Get("other"); !ok {
		t.Fatalf("cache blocked while resolver in flight")
	}
	close(resolver.release)
	wg.Wait()

	if got := resolver.calls.Load(); got != 2 {
		t.Fatalf("resolver calls = %d, want 2", got)
	}
}

func TestGetOrResolveSingleFlightCoalesces(t *testing.T) {
	resolver := &countingResolver{release: make(chan struct{})}
	loader, err := NewLoader[string](newStringCache(t, 4, newFakeClock()), resolver, WithSingleFlight())
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	const callers = 8
	results := make(chan string, callers)
	var wg sync.WaitGroup
	call := func() {
		defer wg.Done()
		v, err := loader.GetOrResolve(context.Background(), "same")
		if err != nil {
			t.Errorf("GetOrResolve() error = %v", err)
			return
		}
		results <- v
	}

	wg.Add(1)
	go call()
	waitForCalls(t, resolver, 1)
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go call()
	}
	time.Sleep(100 * time.Millisecond)
	close(resolver.release)
	wg.Wait()
	close(results)

	if got := resolver.calls.Load(); got != 1 {
		t.Fatalf("resolver calls = %d, want 1", got)
	}
	for v := range results {
		if v != "value:same" {
			t.Fatalf("unexpected shared result %q", v)
		}
	}
}

func TestGetOrResolveSingleFlightSurvivesFirstCallerCancel(t *testing.T) {
	resolver := &countingResolver{release: make(chan struct{})}
	loader, err := NewLoader[string](newStringCache(t, 4, newFakeClock()), resolver, WithSingleFlight())
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := loader.GetOrResolve(ctx, "same")
		first <- err
	}()
	waitForCalls(t, resolver, 1)

	second := make(chan string, 1)
	go func() {
		v, err := loader.GetOrResolve(context.Background(), "same")
		if err != nil {
			t.Errorf("second GetOrResolve() error = %v", err)
		}
		second <- v
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller error = %v, want context.Canceled", err)
	}
	close(resolver.release)

	if v := <-second; v != "value:same" {
		t.Fatalf("second caller got %q", v)
	}
	if v, ok := loader.Cache().Get("same"); !ok || v != "value:same" {
		t.Fatalf("shared result not cached: %q, %v", v, ok)
	}
}

func TestGetOrResolveFlightTimeoutBoundsSharedCall(t *testing.T) {
	resolver := &countingResolver{release: make(chan struct{})}
	defer close(resolver.release)
	loader, err := NewLoader[string](newStringCache(t, 4, newFakeClock()), resolver,
		WithSingleFlight(), WithFlightTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	if _, err := loader.GetOrResolve(context.Background(), "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if loader.Cache().Len() != 0 {
		t.Fatalf("timed out resolution must not be cached")
	}
}

func TestGetOrResolveReportsEvents(t *testing.T) {
	obs := &recordingObserver{}
	loader, err := NewLoader[string](newStringCache(t, 1, newFakeClock()), &countingResolver{}, WithObserver(Observers{obs, nil}))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	ctx := context.Background()
	for _, key := range []string{"a", "a", "b"} {
		if _, err := loader.GetOrResolve(ctx, key); err != nil {
			t.Fatalf("GetOrResolve(%s) error = %v", key, err)
		}
	}

	want := []string{"miss:a", "resolve:a", "hit:a", "miss:b", "resolve:b", "evict:a"}
	if len(obs.events) != len(want) {
		t.Fatalf("events = %v, want %v", obs.events, want)
	}
	for i := range want {
		if obs.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", obs.events, want)
		}
	}
	for _, err := range obs.resolved {
		if err != nil {
			t.Fatalf("unexpected resolve error %v", err)
		}
	}
}
