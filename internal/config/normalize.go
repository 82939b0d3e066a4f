package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeSession()
	c.normalizeElection()
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.BaseURL = strings.TrimRight(strings.TrimSpace(c.Store.BaseURL), "/")
	if c.Store.BaseURL == "" {
		c.Store.BaseURL = defaultStoreBaseURL
	}
	c.Store.SpreadsheetID = strings.TrimSpace(c.Store.SpreadsheetID)
	if c.Store.SpreadsheetID == "" {
		if value, ok := os.LookupEnv("SCRUTIN_SPREADSHEET_ID"); ok {
			c.Store.SpreadsheetID = strings.TrimSpace(value)
		}
	}
	c.Store.AccessToken = strings.TrimSpace(c.Store.AccessToken)
	if c.Store.AccessToken == "" {
		if value, ok := os.LookupEnv("SCRUTIN_ACCESS_TOKEN"); ok {
			c.Store.AccessToken = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Store.TokenFile) != "" {
		var err error
		if c.Store.TokenFile, err = expandPath(strings.TrimSpace(c.Store.TokenFile)); err != nil {
			return fmt.Errorf("store.token_file: %w", err)
		}
	}
	if c.Store.TimeoutSeconds <= 0 {
		c.Store.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Store.CacheTTLMillis < 0 {
		c.Store.CacheTTLMillis = 0
	}
	if c.Store.RetryAttempts <= 0 {
		c.Store.RetryAttempts = defaultRetryAttempts
	}
	if c.Store.RetryBaseDelayMS < 0 {
		c.Store.RetryBaseDelayMS = 0
	}
	if c.Store.RetryMaxDelayMS <= 0 {
		c.Store.RetryMaxDelayMS = defaultRetryMaxDelayMS
	}
	return nil
}

func (c *Config) normalizeSession() {
	c.Session.Actor = strings.TrimSpace(c.Session.Actor)
	if c.Session.Actor == "" {
		if value, ok := os.LookupEnv("USER"); ok {
			c.Session.Actor = strings.TrimSpace(value)
		}
	}
	c.Session.Role = strings.ToLower(strings.TrimSpace(c.Session.Role))
	c.Session.Role = strings.ReplaceAll(c.Session.Role, "-", "_")
	if c.Session.Role == "" {
		c.Session.Role = defaultRole
	}
	c.Session.PrecinctID = strings.TrimSpace(c.Session.PrecinctID)
}

func (c *Config) normalizeElection() {
	c.Election.Commune = strings.TrimSpace(c.Election.Commune)
	if len(c.Election.TurnoutHours) == 0 {
		c.Election.TurnoutHours = defaultTurnoutHours()
		return
	}
	seen := make(map[int]struct{}, len(c.Election.TurnoutHours))
	hours := make([]int, 0, len(c.Election.TurnoutHours))
	for _, hour := range c.Election.TurnoutHours {
		if _, ok := seen[hour]; ok {
			continue
		}
		seen[hour] = struct{}{}
		hours = append(hours, hour)
	}
	sort.Ints(hours)
	c.Election.TurnoutHours = hours
}

func (c *Config) normalizeServer() error {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if strings.TrimSpace(c.Server.DatabasePath) == "" {
		c.Server.DatabasePath = defaultDatabasePath
	}
	var err error
	if c.Server.DatabasePath, err = expandPath(c.Server.DatabasePath); err != nil {
		return fmt.Errorf("server.database_path: %w", err)
	}
	c.Server.JWTSecret = strings.TrimSpace(c.Server.JWTSecret)
	if c.Server.JWTSecret == "" {
		if value, ok := os.LookupEnv("SCRUTIN_JWT_SECRET"); ok {
			c.Server.JWTSecret = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
