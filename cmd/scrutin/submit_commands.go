package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scrutin/internal/records"
	"scrutin/internal/schema"
	"scrutin/internal/textutil"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit precinct records",
	}
	submitCmd.AddCommand(newSubmitResultCommand(ctx))
	submitCmd.AddCommand(newSubmitParticipationCommand(ctx))
	return submitCmd
}

func newSubmitResultCommand(ctx *commandContext) *cobra.Command {
	var (
		precinct  string
		round     int
		turnout   int64
		blank     int64
		null      int64
		expressed int64
		votes     []string
	)

	cmd := &cobra.Command{
		Use:   "result",
		Short: "Submit a precinct tally sheet",
		Example: "  scrutin submit result --round 1 --turnout 812 --blank 9 --null 3 \\\n" +
			"    --vote A=420 --vote \"Renouveau\"=380",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s *session) error {
				r, err := s.round(c, round)
				if err != nil {
					return err
				}
				lists, err := s.repo.Lists(c)
				if err != nil {
					return err
				}
				parsed, err := parseVotes(votes, lists)
				if err != nil {
					return err
				}
				rec := schema.ResultRecord{
					PrecinctID: precinctOrSession(precinct, s),
					Round:      r,
					Turnout:    turnout,
					Blank:      blank,
					Null:       null,
					Expressed:  expressed,
					Votes:      parsed,
				}
				if !cmd.Flags().Changed("expressed") {
					rec.Expressed = rec.VoteSum()
				}
				if !cmd.Flags().Changed("turnout") {
					rec.Turnout = rec.Blank + rec.Null + rec.Expressed
				}
				outcome, err := s.repo.SubmitResult(c, rec)
				if err != nil {
					return err
				}
				return renderSubmit(cmd, ctx, "Result", rec.PrecinctID, r, outcome)
			})
		},
	}

	cmd.Flags().StringVarP(&precinct, "precinct", "p", "", "Precinct id (default: the session precinct)")
	cmd.Flags().IntVarP(&round, "round", "r", 0, "Round (default: current round)")
	cmd.Flags().Int64Var(&turnout, "turnout", 0, "Ballots cast (default: blank + null + expressed)")
	cmd.Flags().Int64Var(&blank, "blank", 0, "Blank ballots")
	cmd.Flags().Int64Var(&null, "null", 0, "Null ballots")
	cmd.Flags().Int64Var(&expressed, "expressed", 0, "Expressed votes (default: sum of --vote)")
	cmd.Flags().StringArrayVar(&votes, "vote", nil, "Votes for a list as LIST=COUNT; LIST is an id or a name")
	return cmd
}

func newSubmitParticipationCommand(ctx *commandContext) *cobra.Command {
	var (
		precinct   string
		round      int
		registered int64
		samples    []string
	)

	cmd := &cobra.Command{
		Use:     "participation",
		Short:   "Record hourly cumulative turnout",
		Example: "  scrutin submit participation --round 1 --sample 9=64 --sample 10=131",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(c context.Context, s *session) error {
				r, err := s.round(c, round)
				if err != nil {
					return err
				}
				id := precinctOrSession(precinct, s)
				rec := schema.ParticipationRecord{PrecinctID: id, Round: r, Registered: registered}
				existing, err := s.repo.Participation(c, r)
				if err != nil {
					return err
				}
				for _, prev := range existing {
					if prev.PrecinctID == id {
						rec.Samples = prev.Samples
						if registered == 0 {
							rec.Registered = prev.Registered
						}
					}
				}
				if err := applySamples(&rec, samples); err != nil {
					return err
				}
				outcome, err := s.repo.SaveParticipation(c, rec)
				if err != nil {
					return err
				}
				return renderSubmit(cmd, ctx, "Participation", id, r, outcome)
			})
		},
	}

	cmd.Flags().StringVarP(&precinct, "precinct", "p", "", "Precinct id (default: the session precinct)")
	cmd.Flags().IntVarP(&round, "round", "r", 0, "Round (default: current round)")
	cmd.Flags().Int64Var(&registered, "registered", 0, "Registered voters (default: precinct table)")
	cmd.Flags().StringArrayVar(&samples, "sample", nil, "Cumulative turnout as HOUR=COUNT; merged into earlier samples")
	return cmd
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Countersign submitted records",
	}

	var precinct string
	var round int
	resultCmd := &cobra.Command{
		Use:   "result",
		Short: "Validate a precinct's result (supervisors and administrators)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(precinct) == "" {
				return fmt.Errorf("--precinct is required")
			}
			return ctx.withSession(cmd, func(c context.Context, s *session) error {
				r, err := s.round(c, round)
				if err != nil {
					return err
				}
				rec, err := s.repo.ValidateResult(c, precinct, r)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"precinct_id":  rec.PrecinctID,
						"round":        rec.Round,
						"validated_by": rec.ValidatedBy,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Precinct %s round %d validated by %s\n", rec.PrecinctID, rec.Round, rec.ValidatedBy)
				return nil
			})
		},
	}
	resultCmd.Flags().StringVarP(&precinct, "precinct", "p", "", "Precinct id")
	resultCmd.Flags().IntVarP(&round, "round", "r", 0, "Round (default: current round)")
	validateCmd.AddCommand(resultCmd)
	return validateCmd
}

func renderSubmit(cmd *cobra.Command, ctx *commandContext, what, precinct string, round int, outcome records.Outcome) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, newSubmitView(outcome))
	}
	verb := "updated"
	if outcome.Created {
		verb = "recorded"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s for precinct %s round %d\n", what, verb, precinct, round)
	printFlags(out, outcome.Flags)
	return nil
}

func precinctOrSession(flagValue string, s *session) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	return s.principal.Precinct
}

// parseVotes converts LIST=COUNT pairs into list-id keyed votes. LIST
// matches a list id exactly or a list name ignoring case and accents.
func parseVotes(pairs []string, lists []schema.CandidateList) (map[string]int64, error) {
	votes := make(map[string]int64, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("vote %q must be LIST=COUNT", pair)
		}
		count, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("vote %q: count must be a non-negative integer", pair)
		}
		id, err := resolveList(strings.TrimSpace(key), lists)
		if err != nil {
			return nil, err
		}
		if _, dup := votes[id]; dup {
			return nil, fmt.Errorf("list %s given more than once", id)
		}
		votes[id] = count
	}
	return votes, nil
}

func resolveList(key string, lists []schema.CandidateList) (string, error) {
	for _, l := range lists {
		if l.ID == key {
			return l.ID, nil
		}
	}
	var matches []string
	for _, l := range lists {
		if textutil.EqualFold(l.Name, key) {
			matches = append(matches, l.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("unknown list %q", key)
	default:
		return "", fmt.Errorf("list name %q is ambiguous: %s", key, strings.Join(matches, ", "))
	}
}

func applySamples(rec *schema.ParticipationRecord, pairs []string) error {
	for _, pair := range pairs {
		hourText, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("sample %q must be HOUR=COUNT", pair)
		}
		hour, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(hourText), "h"))
		if err != nil {
			return fmt.Errorf("sample %q: invalid hour", pair)
		}
		count, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || count < 0 {
			return fmt.Errorf("sample %q: count must be a non-negative integer", pair)
		}
		if !rec.SetSample(hour, count) {
			return fmt.Errorf("sample %q: hour must be between %d and %d", pair, schema.FirstSampleHour, schema.LastSampleHour)
		}
	}
	return nil
}
