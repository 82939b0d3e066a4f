package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"scrutin/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Store.AccessToken = "test-token"
	cfgVal.Store.SpreadsheetID = "test-sheet"
	cfgVal.Store.TokenFile = filepath.Join(base, "token.json")
	cfgVal.Session.Actor = "tester"
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Server.DatabasePath = filepath.Join(base, "store.db")
	cfgVal.Server.JWTSecret = testSecret
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSession sets the session role and bound precinct.
func WithSession(actor, role, precinct string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.Actor = actor
		b.cfg.Session.Role = role
		b.cfg.Session.PrecinctID = precinct
	}
}

// WithStoreURL points the config at a running store.
func WithStoreURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.BaseURL = url
	}
}

// WithSeats overrides the municipal and community seat counts.
func WithSeats(municipal, community int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Election.MunicipalSeats = municipal
		b.cfg.Election.CommunitySeats = community
	}
}

// WithBackend points the config at a running test backend with a valid
// token, caching disabled and a single attempt per request.
func WithBackend(backend *Backend) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.BaseURL = backend.URL
		b.cfg.Store.SpreadsheetID = testSpreadsheetID
		b.cfg.Store.AccessToken = backend.Token(b.cfg.Session.Actor)
		b.cfg.Store.CacheTTLMillis = 0
		b.cfg.Store.RetryAttempts = 1
	}
}

// WriteConfig encodes cfg as TOML in a temp directory and returns its path.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
