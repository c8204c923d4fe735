package website

import (
	"context"
	"net/url"
	"strings"
)

// Site recognizes and resolves the pages of one video host.
type Site interface {
	Name() string
	Match(u *url.URL) bool
	Resolve(ctx context.Context, u *url.URL) (*Website, error)
}

// Resolver dispatches a URL to the first registered Site that matches it.
type Resolver struct {
	sites []Site
}

func NewResolver(sites ...Site) *Resolver {
	r := &Resolver{}
	for _, s := range sites {
		if s != nil {
			r.sites = append(r.sites, s)
		}
	}
	return r
}

// Resolve fails with a KindUnsupported *Error when rawURL is not an absolute
// http(s) URL or no site recognizes it.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Website, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, unsupported(rawURL)
	}
	for _, s := range r.sites {
		if s.Match(u) {
			return s.Resolve(ctx, u)
		}
	}
	return nil, unsupported(rawURL)
}

// Sites lists the registered site names in match order.
func (r *Resolver) Sites() []string {
	names := make([]string, 0, len(r.sites))
	for _, s := range r.sites {
		names = append(names, s.Name())
	}
	return names
}
