package website

import (
	"errors"
	"fmt"
)

// Kind classifies resolution failures so callers can branch without parsing
// messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupported
	KindFetch
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindFetch:
		return "fetch"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// ErrUnsupported is wrapped by every KindUnsupported error.
var ErrUnsupported = errors.New("website: unsupported resource")

// Error is returned by Resolver and Site implementations.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnsupported:
		return fmt.Sprintf("website: unsupported resource %q", e.URL)
	case KindFetch:
		return fmt.Sprintf("website: fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("website: %s %s: %v", e.Kind, e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindUnknown
}

func unsupported(rawURL string) *Error {
	return &Error{Kind: KindUnsupported, URL: rawURL, Err: ErrUnsupported}
}
