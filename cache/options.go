package cache

import "time"

const (
	DefaultCapacity = 1000
	DefaultTTL      = time.Hour
)

// Options controls how many entries a Cache retains and for how long they
// are considered fresh.
type Options struct {
	Capacity int
	TTL      time.Duration
	// Now overrides the clock used to stamp and age entries.
	Now func() time.Time
}

// DefaultOptions returns the capacity and TTL used by the web front-end.
func DefaultOptions() Options {
	return Options{Capacity: DefaultCapacity, TTL: DefaultTTL}
}

func (o Options) validate() error {
	if o.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if o.TTL < 0 {
		return ErrInvalidTTL
	}
	return nil
}

func (o Options) clock() func() time.Time {
	if o.Now == nil {
		return time.Now
	}
	return o.Now
}
