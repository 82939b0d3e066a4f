package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scrutin/internal/records"
	"scrutin/internal/runoff"
	"scrutin/internal/seats"
	"scrutin/internal/services"
	"scrutin/internal/textutil"
)

func newSeatsCommand(ctx *commandContext) *cobra.Command {
	var round int
	var persist bool
	var stored bool

	cmd := &cobra.Command{
		Use:   "seats",
		Short: "Apportion municipal and community seats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s *session) error {
				if stored {
					return showStoredSeats(cmd, ctx, s.repo, round)
				}
				r, err := s.round(c, round)
				if err != nil {
					return err
				}
				cons, err := s.tallyService().Consolidate(c, r)
				if err != nil {
					return err
				}
				election := s.cfg.Election
				results := make([]seats.Result, 0, 2)
				municipal, err := seats.AllocateMunicipal(cons.Ranked(), election.MunicipalSeats, election.SeatThresholdPct)
				if err != nil {
					return fmt.Errorf("municipal seats: %w", err)
				}
				results = append(results, municipal)
				if election.CommunitySeats > 0 {
					community, err := seats.AllocateCommunity(cons.Ranked(), election.CommunitySeats, election.SeatThresholdPct)
					if err != nil {
						return fmt.Errorf("community seats: %w", err)
					}
					results = append(results, community)
				}

				if persist {
					for _, res := range results {
						if err := s.repo.SaveSeats(c, r, res); err != nil {
							return fmt.Errorf("save %s seats: %w", res.Kind, err)
						}
					}
				}

				if ctx.jsonOutput() {
					views := make([]seatsView, 0, len(results))
					for _, res := range results {
						views = append(views, newSeatsView(r, res))
					}
					return writeJSON(cmd, views)
				}
				for _, res := range results {
					renderSeats(cmd, r, res)
				}
				if persist {
					fmt.Fprintln(cmd.OutOrStdout(), "Seat allocation saved")
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&round, "round", "r", 0, "Round whose results are apportioned (default: current round)")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save the allocation to the Seats table (administrators only)")
	cmd.Flags().BoolVar(&stored, "stored", false, "Show the saved allocation instead of computing one")
	cmd.MarkFlagsMutuallyExclusive("persist", "stored")
	return cmd
}

func showStoredSeats(cmd *cobra.Command, ctx *commandContext, repo *records.Repository, round int) error {
	rows, err := repo.Seats(cmd.Context())
	if err != nil {
		return err
	}
	if round != 0 {
		kept := rows[:0]
		for _, row := range rows {
			if row.Round == round {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	if ctx.jsonOutput() {
		views := make([]storedSeatView, 0, len(rows))
		for _, row := range rows {
			views = append(views, newStoredSeatView(row))
		}
		return writeJSON(cmd, views)
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No seat allocation saved")
		return nil
	}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			textutil.Title(row.Kind),
			fmt.Sprint(row.Round),
			row.ListID,
			formatCount(row.Votes),
			formatPct(row.Percent),
			fmt.Sprint(row.Total),
			row.ComputedAt.Format(time.RFC3339),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Council", "Round", "List", "Votes", "%", "Seats", "Computed"},
		table,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	return nil
}

func renderSeats(cmd *cobra.Command, round int, res seats.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s council, round %d: %d seats, %s threshold", textutil.Title(string(res.Kind)), round, res.TotalSeats, formatPct(res.ThresholdPct))
	if res.Premium > 0 {
		fmt.Fprintf(out, ", majority premium %d", res.Premium)
	}
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(res.Allocations))
	for _, a := range res.Allocations {
		eligible := "yes"
		if !a.Eligible {
			eligible = "no"
		}
		rows = append(rows, []string{
			textutil.NormalizeName(a.Name),
			formatCount(a.Votes),
			formatPct(a.Percent),
			eligible,
			fmt.Sprint(a.Majority),
			fmt.Sprint(a.Proportional),
			fmt.Sprint(a.Total),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"List", "Votes", "%", "Eligible", "Premium", "Proportional", "Seats"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight, alignRight, alignRight},
	))
}

func newQualifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "qualify",
		Short: "Determine which lists qualify for round 2",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s *session) error {
				q, err := runoff.RoundOneQualifier(s.tallyService(), s.runoffOptions())(c)
				if err != nil && !errors.Is(err, services.ErrManualDecisionRequired) {
					return err
				}
				if ctx.jsonOutput() {
					if jerr := writeJSON(cmd, newQualificationView(q, err)); jerr != nil {
						return jerr
					}
					return err
				}
				renderQualification(cmd, q)
				return err
			})
		},
	}
}

func renderQualification(cmd *cobra.Command, q runoff.Qualification) {
	out := cmd.OutOrStdout()
	switch {
	case q.Winner != "":
		fmt.Fprintf(out, "List %s is elected in round 1 with %s of expressed votes\n", q.Winner, formatPct(q.LeaderPct))
	case len(q.Qualified) > 0:
		fmt.Fprintf(out, "Runoff required. Qualified: %s\n", strings.Join(q.Qualified, ", "))
		fmt.Fprintf(out, "Admitted: %s\n", strings.Join(q.Admitted, ", "))
	default:
		fmt.Fprintln(out, "Runoff required. No automatic qualification")
	}
	for _, alert := range q.Alerts {
		alertf(out, "  ! %s", alert)
	}
}
