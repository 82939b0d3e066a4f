package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Store contains connection settings for the remote tabular store.
type Store struct {
	BaseURL          string `toml:"base_url"`
	SpreadsheetID    string `toml:"spreadsheet_id"`
	AccessToken      string `toml:"access_token"`
	TokenFile        string `toml:"token_file"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	CacheTTLMillis   int    `toml:"cache_ttl_ms"`
	RetryAttempts    int    `toml:"retry_attempts"`
	RetryBaseDelayMS int    `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS  int    `toml:"retry_max_delay_ms"`
}

// Session describes who is operating this installation.
type Session struct {
	Actor      string `toml:"actor"`
	Role       string `toml:"role"`
	PrecinctID string `toml:"precinct_id"`
}

// Election contains the legal parameters of the ballot.
type Election struct {
	Commune             string  `toml:"commune"`
	MunicipalSeats      int     `toml:"municipal_seats"`
	CommunitySeats      int     `toml:"community_seats"`
	SeatThresholdPct    float64 `toml:"seat_threshold_pct"`
	RunoffAdmissionPct  float64 `toml:"runoff_admission_pct"`
	AbsoluteMajorityPct float64 `toml:"absolute_majority_pct"`
	TurnoutHours        []int   `toml:"turnout_hours"`
}

// Server contains settings for the local table store daemon.
type Server struct {
	Bind         string `toml:"bind"`
	DatabasePath string `toml:"database_path"`
	JWTSecret    string `toml:"jwt_secret"`
}

// Paths contains directory configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scrutin.
//
// Configuration sections by subsystem:
//   - Store: remote tabular store endpoint, credentials, cache and retry tuning
//   - Session: actor name, role and bound precinct for this installation
//   - Election: seat counts and legal thresholds
//   - Server: local table store daemon (scrutind)
//   - Paths: log and state directories
//   - Logging: log format and level
type Config struct {
	Store    Store    `toml:"store"`
	Session  Session  `toml:"session"`
	Election Election `toml:"election"`
	Server   Server   `toml:"server"`
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scrutin/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scrutin.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequestTimeout returns the per-request HTTP timeout for the store client.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Store.TimeoutSeconds) * time.Second
}

// CacheTTL returns the read cache lifetime of the store client.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Store.CacheTTLMillis) * time.Millisecond
}

// RetryBackoff returns the base and maximum retry delays of the store client.
func (c *Config) RetryBackoff() (time.Duration, time.Duration) {
	return time.Duration(c.Store.RetryBaseDelayMS) * time.Millisecond,
		time.Duration(c.Store.RetryMaxDelayMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
