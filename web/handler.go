// Package web serves the conversion form, the ASS download and the
// operational endpoints.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/adeilh/go-niconvert/cache"
	"github.com/adeilh/go-niconvert/httpx"
	"github.com/adeilh/go-niconvert/metrics"
	"github.com/adeilh/go-niconvert/subtitle"
	"github.com/adeilh/go-niconvert/website"
)

const (
	linuxFont = "WenQuanYi Micro Hei"

	msgUnsupported = "不支持的网站"
	msgNotNumber   = "除字体名称外，其它选项必须为数字"

	fallbackFilename = "video.ass"

	// MaxURLLength bounds the url parameter, which becomes a cache key.
	MaxURLLength  = 2048
	msgURLTooLong = "链接过长"
)

var ErrNilLoader = errors.New("web: handler requires a loader")

var filenameCleaner = strings.NewReplacer(
	`"`, "'",
	`\`, "_",
	"/", "_",
	"\r", "",
	"\n", "",
)

// Loader is the cached resolver the handlers read through.
type Loader = cache.Loader[*website.Website]

type Handler struct {
	loader         *Loader
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	admin          httpx.MiddlewareFunc
}

type Option func(*Handler)

// WithMetrics counts rendered subtitles in m and serves h on /metrics.
func WithMetrics(m *metrics.Metrics, h http.Handler) Option {
	return func(hd *Handler) {
		hd.metrics = m
		hd.metricsHandler = h
	}
}

// WithAdminGuard mounts the /admin routes behind mw. Without it they are not
// registered.
func WithAdminGuard(mw httpx.MiddlewareFunc) Option {
	return func(hd *Handler) {
		hd.admin = mw
	}
}

func NewHandler(loader *Loader, opts ...Option) (*Handler, error) {
	if loader == nil {
		return nil, ErrNilLoader
	}
	h := &Handler{loader: loader}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// URLLengthValidator rejects requests whose url parameter, from the query or
// a form body, is longer than limit bytes.
func URLLengthValidator(limit int) httpx.Validator {
	return func(c httpx.Context) error {
		if len(c.FormValue("url")) > limit {
			return httpx.HTTPError(httpx.StatusRequestURITooLong, msgURLTooLong)
		}
		return nil
	}
}

// Register adds the routes to e and installs the page renderer unless one is
// already set.
func (h *Handler) Register(e *httpx.Echo) {
	if e.Renderer == nil {
		e.Renderer = NewRenderer()
	}
	e.GET("/", h.setting)
	e.POST("/", h.download)
	e.GET("/healthz", h.health)
	if h.metricsHandler != nil {
		e.GET("/metrics", httpx.WrapHandler(h.metricsHandler))
	}
	if h.admin != nil {
		httpx.NewRouter(e, "/admin", h.admin).
			GET("/cache", h.cacheStats).
			DELETE("/cache", h.cacheDelete)
	}
}

func (h *Handler) setting(c httpx.Context) error {
	data := newPage()
	data.URL = strings.TrimSpace(c.QueryParam("url"))
	if data.URL == "" {
		return c.Render(httpx.StatusOK, indexTemplate, data)
	}

	site, err := h.loader.GetOrResolve(c.Request().Context(), data.URL)
	if err != nil {
		return h.failure(c, data, err)
	}
	data.Title = site.Title
	data.CommentURL = site.CommentURL
	data.Options.FontName = defaultFont(c.Request().UserAgent())
	return c.Render(httpx.StatusOK, indexTemplate, data)
}

func (h *Handler) download(c httpx.Context) error {
	data := newPage()
	data.URL = strings.TrimSpace(c.FormValue("url"))

	opts := subtitle.Options{FontName: strings.TrimSpace(c.FormValue("font_name"))}
	err := httpx.FormBinder(c).
		MustInt("font_size", &opts.FontSize).
		MustInt("video_width", &opts.Width).
		MustInt("video_height", &opts.Height).
		MustInt("line_count", &opts.LineCount).
		MustInt("bottom_margin", &opts.BottomMargin).
		MustInt("tune_seconds", &opts.TuneSeconds).
		BindError()
	if err != nil {
		data.Message = msgNotNumber
		return c.Render(httpx.StatusBadRequest, indexTemplate, data)
	}
	if opts.FontName == "" {
		opts.FontName = defaultFont(c.Request().UserAgent())
	}
	data.Options = opts
	if err := opts.Validate(); err != nil {
		data.Message = err.Error()
		return c.Render(httpx.StatusBadRequest, indexTemplate, data)
	}

	site, err := h.loader.GetOrResolve(c.Request().Context(), data.URL)
	if err != nil {
		return h.failure(c, data, err)
	}

	var buf bytes.Buffer
	if err := subtitle.Render(&buf, site.Title, site.Comments, opts); err != nil {
		return fmt.Errorf("web: render %s: %w", site.URL, err)
	}
	if h.metrics != nil {
		h.metrics.RecordSubtitle()
	}

	filename := fallbackFilename
	if !strings.Contains(c.Request().UserAgent(), "MSIE") {
		filename = site.Title + ".ass"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, attachment(filename))
	return c.Blob(httpx.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

func (h *Handler) failure(c httpx.Context, data page, err error) error {
	status := httpx.StatusInternalError
	data.Message = err.Error()
	switch website.KindOf(err) {
	case website.KindUnsupported:
		status = httpx.StatusUnprocessableEntity
		data.Message = msgUnsupported
	case website.KindFetch, website.KindParse:
		status = httpx.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		status = httpx.StatusGatewayTimeout
	}
	return c.Render(status, indexTemplate, data)
}

func (h *Handler) health(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, map[string]string{"status": "ok"})
}

type cacheStats struct {
	Capacity   int      `json:"capacity"`
	TTLSeconds float64  `json:"ttl_seconds"`
	Entries    int      `json:"entries"`
	Keys       []string `json:"keys"`
}

func (h *Handler) cacheStats(c httpx.Context) error {
	store := h.loader.Cache()
	return c.JSON(httpx.StatusOK, cacheStats{
		Capacity:   store.Capacity(),
		TTLSeconds: store.TTL().Seconds(),
		Entries:    store.Len(),
		Keys:       store.Keys(),
	})
}

func (h *Handler) cacheDelete(c httpx.Context) error {
	key := strings.TrimSpace(c.QueryParam("url"))
	if key == "" {
		return httpx.HTTPError(httpx.StatusBadRequest, "url is required")
	}
	h.loader.Cache().Delete(key)
	c.Logger().Infof("cache entry %s deleted", key)
	return c.NoContent(httpx.StatusNoContent)
}

func defaultFont(userAgent string) string {
	if strings.Contains(userAgent, "Linux") {
		return linuxFont
	}
	return subtitle.DefaultFontName
}

// attachment builds a Content-Disposition value. Non-ASCII names also get an
// RFC 5987 filename* parameter.
func attachment(filename string) string {
	filename = filenameCleaner.Replace(filename)
	v := `attachment; filename="` + filename + `"`
	for i := 0; i < len(filename); i++ {
		if filename[i] >= utf8.RuneSelf {
			return v + "; filename*=UTF-8''" + url.PathEscape(filename)
		}
	}
	return v
}
