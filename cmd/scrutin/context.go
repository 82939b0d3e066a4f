package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scrutin/internal/access"
	"scrutin/internal/audit"
	"scrutin/internal/auth"
	"scrutin/internal/config"
	"scrutin/internal/logging"
	"scrutin/internal/records"
	"scrutin/internal/runoff"
	"scrutin/internal/services"
	"scrutin/internal/sheets"
	"scrutin/internal/tally"
)

const auditDrainTimeout = 10 * time.Second

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// session is the per-invocation wiring from configuration to repository.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	principal access.Principal
	emitter   *audit.Emitter
	repo      *records.Repository
}

func (c *commandContext) openSession() (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg, "scrutin.log")
	if err != nil {
		return nil, err
	}
	role, err := access.ParseRole(cfg.Session.Role)
	if err != nil {
		return nil, err
	}
	principal := access.Principal{Actor: cfg.Session.Actor, Role: role, Precinct: cfg.Session.PrecinctID}

	baseDelay, maxDelay := cfg.RetryBackoff()
	client := sheets.New(sheets.Config{
		BaseURL:       cfg.Store.BaseURL,
		SpreadsheetID: cfg.Store.SpreadsheetID,
		Timeout:       cfg.RequestTimeout(),
		CacheTTL:      cfg.CacheTTL(),
	}, tokenSource(cfg),
		sheets.WithLogger(logger),
		sheets.WithRetryMaxAttempts(cfg.Store.RetryAttempts),
		sheets.WithRetryBackoff(baseDelay, maxDelay),
	)
	guard, err := access.NewGuard(client, principal, logger)
	if err != nil {
		return nil, err
	}
	emitter := audit.NewEmitter(guard, principal.Actor, logger)
	return &session{
		cfg:       cfg,
		logger:    logger,
		principal: guard.Principal(),
		emitter:   emitter,
		repo:      records.New(guard, emitter, logger),
	}, nil
}

// close drains pending audit entries.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), auditDrainTimeout)
	defer cancel()
	if err := s.emitter.Close(ctx); err != nil {
		logging.WarnWithContext(s.logger, "audit queue not drained", "audit_drain_timeout",
			logging.Error(err),
			logging.Int64("dropped", s.emitter.Dropped()),
			logging.String(logging.FieldImpact, "some audit entries may be missing"),
		)
	}
}

func (s *session) tallyService() *tally.Service {
	return tally.NewService(s.repo)
}

func (s *session) runoffOptions() runoff.Options {
	return runoff.Options{
		AbsoluteMajorityPct: s.cfg.Election.AbsoluteMajorityPct,
		AdmissionPct:        s.cfg.Election.RunoffAdmissionPct,
	}
}

func (s *session) machine() *runoff.Machine {
	return runoff.NewMachine(s.repo, runoff.RoundOneQualifier(s.tallyService(), s.runoffOptions()), s.emitter, s.logger)
}

// round returns flagValue, or the current round from the election state
// when the flag is unset.
func (s *session) round(ctx context.Context, flagValue int) (int, error) {
	if flagValue != 0 {
		return flagValue, nil
	}
	state, err := s.repo.State(ctx)
	if err != nil {
		return 0, err
	}
	return state.Int(records.KeyCurrentRound, 1), nil
}

func (c *commandContext) withSession(cmd *cobra.Command, fn func(context.Context, *session) error) error {
	s, err := c.openSession()
	if err != nil {
		return err
	}
	defer s.close()
	ctx := services.WithActor(cmd.Context(), s.principal.Actor)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	return fn(ctx, s)
}

func tokenSource(cfg *config.Config) auth.TokenSource {
	if cfg.Store.AccessToken != "" {
		return auth.StaticToken(cfg.Store.AccessToken)
	}
	if cfg.Store.TokenFile != "" {
		return auth.NewFileSource(cfg.Store.TokenFile)
	}
	return auth.StaticToken("")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
