package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateElection(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	parsed, err := url.Parse(c.Store.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("store.base_url must be an absolute URL, got %q", c.Store.BaseURL)
	}
	if c.Store.RetryAttempts > 10 {
		return errors.New("store.retry_attempts must be at most 10")
	}
	if c.Store.RetryMaxDelayMS < c.Store.RetryBaseDelayMS {
		return errors.New("store.retry_max_delay_ms must be greater than or equal to store.retry_base_delay_ms")
	}
	return nil
}

func (c *Config) validateSession() error {
	switch c.Session.Role {
	case "precinct_operator":
		if c.Session.PrecinctID == "" {
			return errors.New("session.precinct_id must be set when session.role is precinct_operator")
		}
	case "supervisor", "administrator":
	default:
		return fmt.Errorf("session.role must be one of precinct_operator, supervisor, administrator (got %q)", c.Session.Role)
	}
	return nil
}

func (c *Config) validateElection() error {
	if c.Election.MunicipalSeats <= 0 {
		return errors.New("election.municipal_seats must be positive")
	}
	if c.Election.CommunitySeats < 0 {
		return errors.New("election.community_seats must be >= 0")
	}
	for key, value := range map[string]float64{
		"election.seat_threshold_pct":    c.Election.SeatThresholdPct,
		"election.runoff_admission_pct":  c.Election.RunoffAdmissionPct,
		"election.absolute_majority_pct": c.Election.AbsoluteMajorityPct,
	} {
		if value < 0 || value > 100 {
			return fmt.Errorf("%s must be between 0 and 100", key)
		}
	}
	for _, hour := range c.Election.TurnoutHours {
		if hour < 8 || hour > 20 {
			return fmt.Errorf("election.turnout_hours contains hour %d outside the 8-20 sampling window", hour)
		}
	}
	return nil
}

// ValidateServer checks the settings scrutind needs before serving.
func (c *Config) ValidateServer() error {
	if strings.TrimSpace(c.Server.JWTSecret) == "" {
		return errors.New("server.jwt_secret is required. Set SCRUTIN_JWT_SECRET or edit the [server] section")
	}
	if len(c.Server.JWTSecret) < 16 {
		return errors.New("server.jwt_secret must be at least 16 characters")
	}
	return nil
}
