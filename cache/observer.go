package cache

import "time"

// Observer receives Loader events. Implementations must be safe for
// concurrent use.
type Observer interface {
	Hit(key string)
	Miss(key string)
	Evicted(key string)
	Resolved(key string, took time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Hit(string) {}

func (nopObserver) Miss(string) {}

func (nopObserver) Evicted(string) {}

func (nopObserver) Resolved(string, time.Duration, error) {}

// Observers fans events out to every non-nil observer in order.
type Observers []Observer

func (obs Observers) Hit(key string) {
	for _, o := range obs {
		if o != nil {
			o.Hit(key)
		}
	}
}

func (obs Observers) Miss(key string) {
	for _, o := range obs {
		if o != nil {
			o.Miss(key)
		}
	}
}

func (obs Observers) Evicted(key string) {
	for _, o := range obs {
		if o != nil {
			o.Evicted(key)
		}
	}
}

func (obs Observers) Resolved(key string, took time.Duration, err error) {
	for _, o := range obs {
		if o != nil {
			o.Resolved(key, took, err)
		}
	}
}
