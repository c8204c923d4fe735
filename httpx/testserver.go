package httpx

import (
	"net/http"
	"net/http/httptest"
)

// TestServer wraps httptest.Server so callers don't import net/http/httptest.
type TestServer struct{ *httptest.Server }

// NewTestServer starts a new TestServer from an http.Handler.
func NewTestServer(handler http.Handler) *TestServer {
	return &TestServer{httptest.NewServer(handler)}
}

// NewEchoTestServer starts a TestServer whose routes are added by reg.
func NewEchoTestServer(reg RouteRegistrar) *TestServer {
	e := NewEcho()
	if reg != nil {
		reg(e)
	}
	return &TestServer{httptest.NewServer(e.Echo)}
}

// BaseURL returns the server's base URL.
func (ts *TestServer) BaseURL() string {
	if ts == nil || ts.Server == nil {
		return ""
	}
	return ts.URL
}

// NewClient returns a Client rooted at the server's base URL.
func (ts *TestServer) NewClient(opts ...ClientOption) *Client {
	return NewClient(append([]ClientOption{WithBaseURL(ts.BaseURL())}, opts...)...)
}
