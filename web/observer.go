package web

import (
	"time"

	"github.com/adeilh/go-niconvert/cache"
	"github.com/adeilh/go-niconvert/httpx"
)

type logObserver struct {
	log httpx.Logger
}

// NewLogObserver logs cache evictions at debug level and failed resolutions
// at warn level.
func NewLogObserver(l httpx.Logger) cache.Observer {
	return logObserver{log: l}
}

func (o logObserver) Hit(string) {}

func (o logObserver) Miss(key string) {
	o.log.Debugf("cache miss for %s", key)
}

func (o logObserver) Evicted(key string) {
	o.log.Debugf("cache evicted %s", key)
}

func (o logObserver) Resolved(key string, took time.Duration, err error) {
	if err != nil {
		o.log.Warnf("resolve %s failed after %s: %v", key, took, err)
		return
	}
	o.log.Infof("resolved %s in %s", key, took)
}
