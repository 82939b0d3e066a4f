package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"scrutin/internal/config"
	"scrutin/internal/logging"
	"scrutin/internal/tablestore"
)

// daemon owns the store and its single-instance lock for one serve run.
type daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	lockPath string
	lock     *flock.Flock
	store    *tablestore.Store
}

func newDaemon(cfg *config.Config, logger *slog.Logger) *daemon {
	lockPath := cfg.Server.DatabasePath + ".lock"
	return &daemon{
		cfg:      cfg,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
}

// start acquires the lock and opens the seeded store.
func (d *daemon) start(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scrutind instance is already serving " + d.cfg.Server.DatabasePath)
	}

	store, err := openSeeded(ctx, d.cfg)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.store = store
	d.logger.Info("scrutind started",
		logging.String("lock", d.lockPath),
		logging.String("database", store.Path()),
	)
	return nil
}

func (d *daemon) close() {
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("failed to close table store", logging.Error(err))
		}
		d.store = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("scrutind stopped")
}

func (d *daemon) serve(ctx context.Context) error {
	server := tablestore.NewServer(d.store, d.cfg.Server.JWTSecret, d.cfg.Store.SpreadsheetID, d.logger)
	return server.ListenAndServe(ctx, d.cfg.Server.Bind)
}

func openSeeded(ctx context.Context, cfg *config.Config) (*tablestore.Store, error) {
	store, err := tablestore.Open(cfg.Server.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open table store: %w", err)
	}
	if err := store.Seed(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func newServeCommand(ctx *daemonContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the election workbook over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg, "scrutind.log")
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			d := newDaemon(cfg, logger)
			if err := d.start(runCtx); err != nil {
				return err
			}
			defer d.close()
			return d.serve(runCtx)
		},
	}
}

func newInitCommand(ctx *daemonContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and election tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openSeeded(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			sheets, err := store.Sheets(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s with %d tables\n", store.Path(), len(sheets))
			return nil
		},
	}
}
