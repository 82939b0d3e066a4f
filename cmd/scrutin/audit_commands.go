package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scrutin/internal/audit"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var action string
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := audit.ActionUnknown
			if action != "" {
				parsed, ok := audit.ParseActionKind(action)
				if !ok {
					return fmt.Errorf("unknown action %q", action)
				}
				kind = parsed
			}
			return ctx.withSession(cmd, func(c context.Context, s *session) error {
				entries, err := s.repo.AuditTrail(c, kind)
				if err != nil {
					return err
				}
				if limit > 0 && len(entries) > limit {
					entries = entries[len(entries)-limit:]
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, newAuditViews(entries))
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.Timestamp.Format(time.RFC3339),
						e.Actor,
						e.Action,
						e.Entity,
						e.EntityID,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Time", "Actor", "Action", "Entity", "Id"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "Only show entries with this action, e.g. submit_result")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most recent N entries")
	return cmd
}
