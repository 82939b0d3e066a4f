package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"scrutin/internal/runoff"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or change the election state",
	}

	stateCmd.AddCommand(newStateShowCommand(ctx))
	stateCmd.AddCommand(newTransitionCommand(ctx, "lock-round1", "Lock round 1 and record the qualified lists", runoff.LockRound1{}))
	stateCmd.AddCommand(newOpenRound2Command(ctx))
	stateCmd.AddCommand(newTransitionCommand(ctx, "lock-round2", "Lock round 2", runoff.LockRound2{}))
	stateCmd.AddCommand(newTransitionCommand(ctx, "reset", "Return a locked election to round 1 (records are kept)", runoff.ResetToRound1{}))
	stateCmd.AddCommand(newGateCommand(ctx))

	return stateCmd
}

func newStateShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current phase and state values",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s *session) error {
				phase, state, err := s.machine().Phase(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stateView{Phase: phase.String(), State: state})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Phase: %s\n", phase)
				keys := make([]string, 0, len(state))
				for key := range state {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				rows := make([][]string, 0, len(keys))
				for _, key := range keys {
					rows = append(rows, []string{key, state[key]})
				}
				fmt.Fprintln(out, renderTable([]string{"Key", "Value"}, rows, nil))
				return nil
			})
		},
	}
}

func newTransitionCommand(ctx *commandContext, use, short string, ev runoff.Event) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd, ctx, ev)
		},
	}
}

func newOpenRound2Command(ctx *commandContext) *cobra.Command {
	var override []string

	cmd := &cobra.Command{
		Use:   "open-round2",
		Short: "Open round 2 (requires round 1 locked and the confirmation gate on)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd, ctx, runoff.OpenRound2{Override: override})
		},
	}
	cmd.Flags().StringSliceVar(&override, "override", nil, "List ids contesting round 2, replacing the automatic qualification")
	return cmd
}

func runTransition(cmd *cobra.Command, ctx *commandContext, ev runoff.Event) error {
	return ctx.withSession(cmd, func(c context.Context, s *session) error {
		outcome, err := s.machine().Transition(c, ev)
		if err != nil {
			return err
		}
		if ctx.jsonOutput() {
			return writeJSON(cmd, newOutcomeView(outcome))
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Election moved from %s to %s\n", outcome.From, outcome.To)
		if outcome.Qualification != nil {
			renderQualification(cmd, *outcome.Qualification)
		}
		if outcome.QualifyErr != nil {
			alertf(out, "Qualification needs a manual decision: %v", outcome.QualifyErr)
		}
		if outcome.PropagationErr != nil {
			alertf(out, "Round 2 list flags were not updated: %v", outcome.PropagationErr)
		}
		return nil
	})
}

func newGateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "gate on|off",
		Short:     "Toggle the round 2 confirmation gate",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch strings.ToLower(strings.TrimSpace(args[0])) {
			case "on":
				enabled = true
			case "off":
			default:
				return fmt.Errorf("gate takes on or off, got %q", args[0])
			}
			return ctx.withSession(cmd, func(c context.Context, s *session) error {
				if err := s.machine().SetConfirmationGate(c, enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Round 2 confirmation gate %s\n", args[0])
				return nil
			})
		},
	}
}
