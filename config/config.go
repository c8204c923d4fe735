// Package config loads niconvert-web settings from command-line flags, with
// NICONVERT_* environment variables as defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/adeilh/go-niconvert/cache"
	"github.com/adeilh/go-niconvert/website"
)

const EnvPrefix = "NICONVERT_"

const (
	DefaultAddress         = ":8624"
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultUserAgent       = "Mozilla/5.0 (compatible; niconvert-web)"
	DefaultLogLevel        = "info"
	DefaultRateBurst       = 10
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

var levels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

type Config struct {
	Address         string
	CacheCapacity   int
	CacheTTL        time.Duration
	UpstreamTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	UserAgent       string
	LogLevel        string
	// AdminTokenHash is a bcrypt hash; admin routes are disabled when empty.
	AdminTokenHash string
	SingleFlight   bool
	CommentBase    string
	// RateLimit is the per-client request rate; zero disables limiting.
	RateLimit float64
	RateBurst int
	// CORSOrigins is a comma separated allow list; empty disables CORS.
	CORSOrigins string
	// HashToken asks the binary to hash a token read from stdin and exit.
	HashToken bool
}

func Default() Config {
	return Config{
		Address:         DefaultAddress,
		CacheCapacity:   cache.DefaultCapacity,
		CacheTTL:        cache.DefaultTTL,
		UpstreamTimeout: DefaultUpstreamTimeout,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		UserAgent:       DefaultUserAgent,
		LogLevel:        DefaultLogLevel,
		CommentBase:     website.DefaultBilibiliCommentBase,
		RateBurst:       DefaultRateBurst,
	}
}

// Load builds a Config from args (without the program name). getenv defaults
// to os.Getenv. Flags win over environment values.
func Load(args []string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}

	fs := flagSet(&cfg)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Usage writes the flag help text to w.
func Usage(w io.Writer) {
	cfg := Default()
	fs := flagSet(&cfg)
	fs.SetOutput(w)
	fmt.Fprintf(w, "Usage of %s:\n", fs.Name())
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nEvery flag may also be set through %s<FLAG> (upper case, '-' as '_').\n", EnvPrefix)
}

func flagSet(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("niconvert-web", flag.ContinueOnError)
	fs.StringVar(&cfg.Address, "addr", cfg.Address, "HTTP listen address")
	fs.IntVar(&cfg.CacheCapacity, "cache-capacity", cfg.CacheCapacity, "Maximum number of resolved videos kept in memory")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "How long a resolved video stays fresh")
	fs.DurationVar(&cfg.UpstreamTimeout, "upstream-timeout", cfg.UpstreamTimeout, "Timeout for each request to the video site")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "HTTP server read timeout")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "HTTP server write timeout")
	fs.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent sent to the video site")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error, off)")
	fs.StringVar(&cfg.AdminTokenHash, "admin-token-hash", cfg.AdminTokenHash, "bcrypt hash of the admin bearer token (empty disables /admin)")
	fs.BoolVar(&cfg.SingleFlight, "single-flight", cfg.SingleFlight, "Coalesce concurrent lookups of the same URL")
	fs.StringVar(&cfg.CommentBase, "comment-base", cfg.CommentBase, "Base URL of the comment feed service")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Requests per second allowed per client IP (0 disables)")
	fs.IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "Burst size for -rate-limit")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", cfg.CORSOrigins, "Comma separated origins allowed by CORS (empty disables)")
	fs.BoolVar(&cfg.HashToken, "hash-token", false, "Read a token from stdin, print its bcrypt hash and exit")
	return fs
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
	float := func(name string, dst *float64) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = f
	}
	dur := func(name string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = d
	}

	str("ADDR", &c.Address)
	num("CACHE_CAPACITY", &c.CacheCapacity)
	dur("CACHE_TTL", &c.CacheTTL)
	dur("UPSTREAM_TIMEOUT", &c.UpstreamTimeout)
	dur("READ_TIMEOUT", &c.ReadTimeout)
	dur("WRITE_TIMEOUT", &c.WriteTimeout)
	str("USER_AGENT", &c.UserAgent)
	str("LOG_LEVEL", &c.LogLevel)
	str("ADMIN_TOKEN_HASH", &c.AdminTokenHash)
	str("COMMENT_BASE", &c.CommentBase)
	float("RATE_LIMIT", &c.RateLimit)
	num("RATE_BURST", &c.RateBurst)
	str("CORS_ORIGINS", &c.CORSOrigins)
	switch strings.ToLower(strings.TrimSpace(getenv(EnvPrefix + "SINGLE_FLIGHT"))) {
	case "1", "true", "yes":
		c.SingleFlight = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks ranges that flag parsing cannot.
func (c Config) Validate() error {
	switch {
	case c.CacheCapacity <= 0:
		return fmt.Errorf("%w: cache capacity must be positive, got %d", ErrInvalidConfig, c.CacheCapacity)
	case c.CacheTTL < 0:
		return fmt.Errorf("%w: cache ttl must not be negative, got %s", ErrInvalidConfig, c.CacheTTL)
	case c.UpstreamTimeout <= 0:
		return fmt.Errorf("%w: upstream timeout must be positive, got %s", ErrInvalidConfig, c.UpstreamTimeout)
	case c.ReadTimeout <= 0 || c.WriteTimeout <= 0:
		return fmt.Errorf("%w: server timeouts must be positive, got read %s write %s",
			ErrInvalidConfig, c.ReadTimeout, c.WriteTimeout)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate limit must not be negative, got %v", ErrInvalidConfig, c.RateLimit)
	case c.RateLimit > 0 && c.RateBurst <= 0:
		return fmt.Errorf("%w: rate burst must be positive, got %d", ErrInvalidConfig, c.RateBurst)
	case strings.TrimSpace(c.CommentBase) == "":
		return fmt.Errorf("%w: comment base is empty", ErrInvalidConfig)
	}
	if _, ok := levels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// Level maps LogLevel to a gommon log level, defaulting to INFO.
func (c Config) Level() log.Lvl {
	if lvl, ok := levels[strings.ToLower(c.LogLevel)]; ok {
		return lvl
	}
	return log.INFO
}

// Origins splits CORSOrigins, dropping blanks.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// CacheOptions returns the cache settings carried by c.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{Capacity: c.CacheCapacity, TTL: c.CacheTTL}
}
