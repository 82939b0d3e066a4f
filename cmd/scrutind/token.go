package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scrutin/internal/access"
	"scrutin/internal/auth"
)

func newTokenCommand(ctx *daemonContext) *cobra.Command {
	var (
		role     string
		precinct string
		ttl      time.Duration
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a signed store token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			parsed, err := access.ParseRole(role)
			if err != nil {
				return err
			}
			if parsed == access.PrecinctOperator && precinct == "" {
				return fmt.Errorf("--precinct is required for role %s", parsed)
			}

			now := time.Now().UTC()
			token, err := auth.Issue(cfg.Server.JWTSecret, args[0], string(parsed), precinct, ttl, now)
			if err != nil {
				return err
			}
			if !save {
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}

			var expiresAt time.Time
			if ttl > 0 {
				expiresAt = now.Add(ttl)
			}
			if err := auth.NewFileSource(cfg.Store.TokenFile).Save(token, expiresAt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token for %s to %s\n", args[0], cfg.Store.TokenFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(access.PrecinctOperator), "Role: precinct_operator, supervisor or administrator")
	cmd.Flags().StringVar(&precinct, "precinct", "", "Precinct bound to an operator token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime; 0 issues a token without expiry")
	cmd.Flags().BoolVar(&save, "save", false, "Write the token to store.token_file instead of stdout")
	return cmd
}
