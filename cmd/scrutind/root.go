package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scrutin/internal/config"
)

type daemonContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *daemonContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.ValidateServer(); err != nil {
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

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &daemonContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "scrutind",
		Short:         "Election table store daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newInitCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))
	return rootCmd
}
