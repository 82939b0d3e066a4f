package sheets

import (
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"scrutin/internal/auth"
	"scrutin/internal/logging"
	"scrutin/internal/schema"
)

const (
	defaultHTTPTimeout    = 15 * time.Second
	defaultCacheTTL       = 800 * time.Millisecond
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
)

// Config captures the store endpoint.
type Config struct {
	// BaseURL is the API root, e.g. https://sheets.googleapis.com/v4.
	BaseURL       string
	SpreadsheetID string
	Timeout       time.Duration
	// CacheTTL bounds how long successful reads are served from memory.
	// Zero disables caching; negative selects the default.
	CacheTTL time.Duration
}

// Client reads and writes the remote store for a single session. Discard it
// at sign-out; its cache and in-flight map are not shared.
type Client struct {
	cfg        Config
	tokens     auth.TokenSource
	httpClient *http.Client
	logger     *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
	jitter           func(time.Duration) time.Duration
	now              func() time.Time

	flights singleflight.Group

	mu          sync.Mutex
	cache       map[cacheKey]cacheEntry
	generations map[schema.Table]uint64
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "sheets")
	}
}

// WithRetryMaxAttempts overrides the total number of attempts (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithJitter overrides the jitter applied to computed backoff delays.
func WithJitter(jitter func(time.Duration) time.Duration) Option {
	return func(c *Client) {
		if jitter != nil {
			c.jitter = jitter
		}
	}
}

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a store client authenticated by tokens.
func New(cfg Config, tokens auth.TokenSource, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if cfg.CacheTTL < 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.SpreadsheetID = strings.TrimSpace(cfg.SpreadsheetID)
	client := &Client{
		cfg:              cfg,
		tokens:           tokens,
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logging.NewComponentLogger(nil, "sheets"),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		jitter:           halfJitter,
		now:              time.Now,
		cache:            make(map[cacheKey]cacheEntry),
		generations:      make(map[schema.Table]uint64),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.tokens == nil {
		client.tokens = auth.StaticToken("")
	}
	return client
}

// halfJitter keeps half the delay and randomizes the other half.
func halfJitter(delay time.Duration) time.Duration {
	if delay <= 1 {
		return delay
	}
	half := delay / 2
	return half + rand.N(delay-half+1)
}
