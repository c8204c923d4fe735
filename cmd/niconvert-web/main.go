// Command niconvert-web serves a form that turns a video page URL into a
// downloadable ASS danmaku subtitle.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/adeilh/go-niconvert/auth"
	"github.com/adeilh/go-niconvert/cache"
	"github.com/adeilh/go-niconvert/config"
	"github.com/adeilh/go-niconvert/httpx"
	"github.com/adeilh/go-niconvert/metrics"
	"github.com/adeilh/go-niconvert/web"
	"github.com/adeilh/go-niconvert/website"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		config.Usage(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		config.Usage(os.Stderr)
		os.Exit(2)
	}

	if cfg.HashToken {
		if err := hashToken(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger := log.New("niconvert")
	logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("niconvert-web: %v", err)
	}
	logger.Info("niconvert-web stopped")
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	client := httpx.NewClient(
		httpx.WithClientTimeout(cfg.UpstreamTimeout),
		httpx.WithUserAgent(cfg.UserAgent),
	)
	resolver := website.NewResolver(
		website.NewBilibili(client, website.WithCommentBase(cfg.CommentBase)),
	)

	store, err := cache.New[string, *website.Website](cfg.CacheOptions())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("niconvert", reg)
	m.TrackEntries(store.Len)

	loaderOpts := []cache.LoaderOption{
		cache.WithObserver(cache.Observers{m, web.NewLogObserver(logger)}),
	}
	if cfg.SingleFlight {
		loaderOpts = append(loaderOpts,
			cache.WithSingleFlight(),
			// the Bilibili resolver makes two upstream requests
			cache.WithFlightTimeout(2*cfg.UpstreamTimeout),
		)
	}
	loader, err := cache.NewLoader[*website.Website](store, resolver, loaderOpts...)
	if err != nil {
		return err
	}

	handlerOpts := []web.Option{web.WithMetrics(m, metrics.Handler(reg))}
	if cfg.AdminTokenHash != "" {
		parser, err := auth.NewBcryptTokenParser(cfg.AdminTokenHash)
		if err != nil {
			return err
		}
		mw, err := auth.NewMiddleware(parser)
		if err != nil {
			return err
		}
		handlerOpts = append(handlerOpts, web.WithAdminGuard(httpx.AuthMiddleware(mw)))
	}
	handler, err := web.NewHandler(loader, handlerOpts...)
	if err != nil {
		return err
	}

	server := httpx.NewServer(serverOptions(cfg, logger)...)
	server.RegisterRoutes(handler.Register)

	logger.Infof("listening on %s (cache capacity %d, ttl %s, sites %s)",
		server.Address(), store.Capacity(), store.TTL(), strings.Join(resolver.Sites(), ","))
	return server.Start(ctx)
}

func serverOptions(cfg config.Config, logger httpx.Logger) []httpx.ServerOption {
	mw := []httpx.MiddlewareFunc{httpx.RecoverMiddleware(), httpx.LoggerMiddleware()}
	if cfg.RateLimit > 0 {
		mw = append(mw, httpx.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}
	opts := []httpx.ServerOption{
		httpx.WithAddress(cfg.Address),
		httpx.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		httpx.WithMiddlewares(mw...),
		httpx.WithValidators(web.URLLengthValidator(web.MaxURLLength)),
		httpx.WithLogger(logger),
		httpx.WithRenderer(web.NewRenderer()),
	}
	if origins := cfg.Origins(); len(origins) > 0 {
		cors := httpx.DefaultCORSConfig
		cors.AllowOrigins = origins
		opts = append(opts, httpx.WithCORS(&cors))
	}
	return opts
}

// hashToken reads one token line from r and writes its bcrypt hash to w.
func hashToken(r io.Reader, w io.Writer) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read token: %w", err)
	}
	hash, err := auth.HashToken([]byte(strings.TrimSpace(line)), auth.DefaultBcryptCost)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}
