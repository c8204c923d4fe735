// Package upstream runs a fake video host for tests: video pages under
// /video/<id> and comment feeds under /<cid>.xml.
package upstream

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/adeilh/go-niconvert/httpx"
)

// SampleFeed holds three well-formed comments and one malformed entry.
const SampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<i>
<chatserver>chat.bilibili.com</chatserver>
<d p="12.5,1,25,16777215,1700000000,0,abc,1">第二条</d>
<d p="3.0,5,25,16711680,1700000000,0,abc,2">顶部 &amp; red</d>
<d p="1.25,1,25,16777215,1700000000,0,abc,3">first</d>
<d p="broken">ignored</d>
</i>`

// Video describes one page served by Server.
type Video struct {
	ID    string
	Title string
	CID   string
	Feed  string
}

// Server is a fake upstream. Page and feed hits are counted per path.
type Server struct {
	*httpx.TestServer

	mu   sync.Mutex
	hits map[string]int
}

// Start serves the given videos until Close is called.
func Start(videos ...Video) *Server {
	s := &Server{hits: make(map[string]int)}
	s.TestServer = httpx.NewEchoTestServer(func(e *httpx.Echo) {
		for _, v := range videos {
			v := v
			e.GET("/video/"+v.ID, func(c httpx.Context) error {
				s.hit(c.Request().URL.Path)
				page := fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>%s_哔哩哔哩_bilibili</title></head>
<body><script>window.__INITIAL_STATE__={"aid":1,"cid":%s,"bvid":"%s"};</script></body></html>`, v.Title, v.CID, v.ID)
				return c.HTML(httpx.StatusOK, page)
			})
			if v.CID == "" {
				continue
			}
			e.GET("/"+v.CID+".xml", func(c httpx.Context) error {
				s.hit(c.Request().URL.Path)
				return c.Blob(httpx.StatusOK, "text/xml; charset=utf-8", []byte(v.Feed))
			})
		}
	})
	return s
}

func (s *Server) hit(path string) {
	s.mu.Lock()
	s.hits[path]++
	s.mu.Unlock()
}

// Hits reports how many times path was requested.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// PageURL is the absolute URL of the video page with the given id.
func (s *Server) PageURL(id string) string {
	return s.BaseURL() + "/video/" + id
}

// Host is the host name (without port) the server listens on.
func (s *Server) Host() string {
	u, err := url.Parse(s.BaseURL())
	if err != nil {
		return ""
	}
	return u.Hostname()
}
