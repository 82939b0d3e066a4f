package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"scrutin/internal/schema"
	"scrutin/internal/tally"
	"scrutin/internal/textutil"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var round int

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show consolidated results for a round",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s *session) error {
				r, err := s.round(c, round)
				if err != nil {
					return err
				}
				cons, err := s.tallyService().Consolidate(c, r)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, newResultsView(cons))
				}
				renderResults(cmd, s.cfg.Election.Commune, cons)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&round, "round", "r", 0, "Round to consolidate (default: current round)")
	return cmd
}

func renderResults(cmd *cobra.Command, commune string, cons tally.Consolidation) {
	out := cmd.OutOrStdout()
	if commune != "" {
		fmt.Fprintln(out, textutil.Title(commune))
	}
	fmt.Fprintf(out, "Round %d: %d of %d precincts reporting\n\n", cons.Round, cons.Reporting, cons.Precincts)

	rows := make([][]string, 0, len(cons.Lists))
	for _, l := range cons.Lists {
		rows = append(rows, []string{
			fmt.Sprint(l.Rank),
			textutil.NormalizeName(l.Name),
			formatCount(l.Votes),
			formatPct(l.PctExpressed),
			formatPct(l.PctRegistered),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Rank", "List", "Votes", "% Expressed", "% Registered"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
	))

	t := cons.Totals
	fmt.Fprintln(out, renderTable(
		[]string{"Registered", "Turnout", "Blank", "Null", "Expressed"},
		[][]string{{formatCount(t.Registered), formatCount(t.Turnout), formatCount(t.Blank), formatCount(t.Null), formatCount(t.Expressed)}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	printFlags(out, cons.Flags)
}

func newParticipationCommand(ctx *commandContext) *cobra.Command {
	var round int
	var hour int

	cmd := &cobra.Command{
		Use:   "participation",
		Short: "Show hourly turnout",
		Long: "Without --hour, prints the communal timeline for the configured turnout hours.\n" +
			"With --hour, prints each precinct's turnout at that hour.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s *session) error {
				r, err := s.round(c, round)
				if err != nil {
					return err
				}
				if hour != 0 {
					if hour < schema.FirstSampleHour || hour > schema.LastSampleHour {
						return fmt.Errorf("--hour must be between %d and %d", schema.FirstSampleHour, schema.LastSampleHour)
					}
					summary, err := s.tallyService().Participation(c, r, hour)
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, newParticipationView(r, summary))
					}
					renderParticipationHour(cmd, summary)
					return nil
				}
				recs, err := s.repo.Participation(c, r)
				if err != nil {
					return err
				}
				timeline := tally.ParticipationTimeline(recs, s.cfg.Election.TurnoutHours)
				if ctx.jsonOutput() {
					return writeJSON(cmd, newTimelineView(r, timeline))
				}
				renderTimeline(cmd, r, timeline)
				var flags []tally.Flag
				for _, rec := range recs {
					flags = append(flags, tally.CheckParticipation(rec)...)
				}
				printFlags(cmd.OutOrStdout(), flags)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&round, "round", "r", 0, "Round (default: current round)")
	cmd.Flags().IntVar(&hour, "hour", 0, fmt.Sprintf("Hour of day between %d and %d", schema.FirstSampleHour, schema.LastSampleHour))
	return cmd
}

func renderTimeline(cmd *cobra.Command, round int, points []tally.ParticipationPoint) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Round %d turnout\n\n", round)
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			fmt.Sprintf("%02dh", p.Hour),
			formatCount(p.Turnout),
			formatPct(p.Percent),
			fmt.Sprint(p.Reporting),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Hour", "Turnout", "Rate", "Reporting"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
}

func renderParticipationHour(cmd *cobra.Command, summary tally.ParticipationSummary) {
	out := cmd.OutOrStdout()
	p := summary.Point
	fmt.Fprintf(out, "Turnout at %02dh: %d of %d registered (%s)\n\n", p.Hour, p.Turnout, p.Registered, formatPct(p.Percent))

	ids := make([]string, 0, len(summary.ByPrecinct))
	for id := range summary.ByPrecinct {
		ids = append(ids, id)
	}
	ids = textutil.Strings(ids)
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, []string{id, formatCount(summary.ByPrecinct[id])})
	}
	fmt.Fprintln(out, renderTable([]string{"Precinct", "Turnout"}, rows, []columnAlignment{alignLeft, alignRight}))
	printFlags(out, summary.Flags)
}
