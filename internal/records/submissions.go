package records

import (
	"context"
	"fmt"
	"strings"

	"scrutin/internal/audit"
	"scrutin/internal/logging"
	"scrutin/internal/schema"
	"scrutin/internal/services"
	"scrutin/internal/sheets"
	"scrutin/internal/tally"
)

// Outcome reports how a submission was stored.
type Outcome struct {
	Created bool
	Handle  sheets.Handle
	// Flags are advisory reconciliation findings; the record was stored.
	Flags []tally.Flag
}

// Submissions returns the visible result rows of round with their offsets,
// the input the consolidator resolves duplicates from.
func (r *Repository) Submissions(ctx context.Context, round int) ([]tally.Submission, error) {
	items, err := readAll(ctx, r, schema.Results)
	if err != nil {
		return nil, err
	}
	var out []tally.Submission
	for _, item := range items {
		if item.value.Round == round {
			out = append(out, tally.Submission{Offset: item.handle.Offset(), Record: item.value})
		}
	}
	return out, nil
}

// SubmitResult stores the tally sheet of one precinct. When rows already
// exist for the same precinct and round, every one of them is rewritten in a
// single batch so consolidation reads the correction whichever duplicate it
// resolves; otherwise a row is appended. Resubmitting clears any previous
// validation.
func (r *Repository) SubmitResult(ctx context.Context, rec schema.ResultRecord) (Outcome, error) {
	rec.PrecinctID = strings.TrimSpace(rec.PrecinctID)
	ctx = services.WithRound(ctx, rec.Round)
	if err := r.checkSubmission(ctx, "submit result", rec.PrecinctID, rec.Round); err != nil {
		return Outcome{}, err
	}
	if rec.Votes == nil {
		rec.Votes = map[string]int64{}
	}
	rec.SubmittedBy = r.guard.Principal().Actor
	rec.ValidatedBy = ""
	rec.Timestamp = r.now().UTC()
	row := schema.Results.Encode(rec)
	if _, _, err := schema.Results.Decode(row); err != nil {
		return Outcome{}, err
	}

	registered, err := r.registered(ctx, rec.PrecinctID)
	if err != nil {
		return Outcome{}, err
	}

	items, err := readAll(ctx, r, schema.Results)
	if err != nil {
		return Outcome{}, err
	}
	existing, matches, found := resolvedResult(items, rec.PrecinctID, rec.Round)

	out := Outcome{Flags: tally.CheckResult(rec, registered)}
	entityID := recordID(rec.PrecinctID, rec.Round)
	if found {
		updates := make([]sheets.Update, 0, len(matches))
		for _, h := range matches {
			updates = append(updates, sheets.Update{Handle: h, Values: row})
		}
		if err := r.guard.BatchUpdate(ctx, updates); err != nil {
			return Outcome{}, err
		}
		out.Handle = matches[len(matches)-1]
		r.audit.Record(audit.ActionUpdateResult, schema.TableResults, entityID, existing.value, rec)
	} else {
		handles, err := r.guard.Append(ctx, schema.TableResults, []schema.Row{row})
		if err != nil {
			return Outcome{}, err
		}
		out.Created = true
		if len(handles) > 0 {
			out.Handle = handles[0]
		}
		r.audit.Record(audit.ActionSubmitResult, schema.TableResults, entityID, nil, rec)
	}
	r.logFlags(ctx, rec.PrecinctID, out.Flags)
	return out, nil
}

// SaveParticipation stores the hourly turnout of one precinct, updating the
// existing row for the same precinct and round when there is one. A zero
// registered count is filled from the precinct table.
func (r *Repository) SaveParticipation(ctx context.Context, rec schema.ParticipationRecord) (Outcome, error) {
	rec.PrecinctID = strings.TrimSpace(rec.PrecinctID)
	ctx = services.WithRound(ctx, rec.Round)
	if err := r.checkSubmission(ctx, "save participation", rec.PrecinctID, rec.Round); err != nil {
		return Outcome{}, err
	}
	if rec.Registered == 0 {
		registered, err := r.registered(ctx, rec.PrecinctID)
		if err != nil {
			return Outcome{}, err
		}
		rec.Registered = registered
	}
	rec.UpdatedBy = r.guard.Principal().Actor
	rec.UpdatedAt = r.now().UTC()
	row := schema.Participation.Encode(rec)
	if _, _, err := schema.Participation.Decode(row); err != nil {
		return Outcome{}, err
	}

	items, err := readAll(ctx, r, schema.Participation)
	if err != nil {
		return Outcome{}, err
	}
	existing, found := latestMatch(items, func(v schema.ParticipationRecord) bool {
		return v.PrecinctID == rec.PrecinctID && v.Round == rec.Round
	})

	out := Outcome{Flags: tally.CheckParticipation(rec)}
	entityID := recordID(rec.PrecinctID, rec.Round)
	if found {
		if err := r.guard.Update(ctx, existing.handle, row); err != nil {
			return Outcome{}, err
		}
		out.Handle = existing.handle
		r.audit.Record(audit.ActionUpdateParticipation, schema.TableParticipation, entityID, existing.value, rec)
	} else {
		handles, err := r.guard.Append(ctx, schema.TableParticipation, []schema.Row{row})
		if err != nil {
			return Outcome{}, err
		}
		out.Created = true
		if len(handles) > 0 {
			out.Handle = handles[0]
		}
		r.audit.Record(audit.ActionSaveParticipation, schema.TableParticipation, entityID, nil, rec)
	}
	r.logFlags(ctx, rec.PrecinctID, out.Flags)
	return out, nil
}

// ValidateResult countersigns the record consolidation would use for the
// precinct and round.
func (r *Repository) ValidateResult(ctx context.Context, precinctID string, round int) (schema.ResultRecord, error) {
	principal := r.guard.Principal()
	precinctID = strings.TrimSpace(precinctID)
	if !principal.CanValidate() {
		return schema.ResultRecord{}, services.Wrap(services.ErrPermissionDenied, "records", "validate result",
			fmt.Sprintf("role %s cannot validate results", principal.Role), nil)
	}
	items, err := readAll(ctx, r, schema.Results)
	if err != nil {
		return schema.ResultRecord{}, err
	}
	chosen, _, found := resolvedResult(items, precinctID, round)
	if !found {
		return schema.ResultRecord{}, services.Wrap(services.ErrNotFound, "records", "validate result",
			fmt.Sprintf("no result for precinct %s round %d", precinctID, round), nil)
	}
	before := chosen.value
	after := chosen.value
	after.ValidatedBy = principal.Actor
	if err := r.guard.Update(ctx, chosen.handle, schema.Results.Encode(after)); err != nil {
		return schema.ResultRecord{}, err
	}
	r.audit.Record(audit.ActionValidateResult, schema.TableResults, recordID(precinctID, round), before, after)
	return after, nil
}

func (r *Repository) checkSubmission(ctx context.Context, op, precinctID string, round int) error {
	if precinctID == "" {
		return services.Wrap(services.ErrValidation, "records", op, "precinct id is required", nil)
	}
	if round != 1 && round != 2 {
		return services.Wrap(services.ErrValidation, "records", op, fmt.Sprintf("round must be 1 or 2, got %d", round), nil)
	}
	if r.guard.Principal().IsAdministrator() {
		return nil
	}
	state, err := r.State(ctx)
	if err != nil {
		return err
	}
	if state.RoundLocked(round) {
		return services.Wrap(services.ErrInvalidTransition, "records", op,
			fmt.Sprintf("round %d is locked", round), nil)
	}
	return nil
}

func (r *Repository) logFlags(ctx context.Context, precinctID string, flags []tally.Flag) {
	logger := logging.WithContext(ctx, r.logger)
	for _, f := range flags {
		logging.WarnWithContext(logger, "record stored with reconciliation flag", "reconciliation_flag",
			logging.Precinct(precinctID),
			logging.String("flag", f.Kind.String()),
			logging.String("detail", f.Detail),
			logging.String(logging.FieldErrorHint, "review the tally sheet"),
			logging.String(logging.FieldImpact, "totals include an inconsistent record"),
		)
	}
}

// latestMatch returns the highest-offset item satisfying match.
func latestMatch[T any](items []stored[T], match func(T) bool) (stored[T], bool) {
	var best stored[T]
	found := false
	for _, item := range items {
		if !match(item.value) {
			continue
		}
		if !found || item.handle.Offset() > best.handle.Offset() {
			best = item
			found = true
		}
	}
	return best, found
}

// resolvedResult returns the row consolidation would use for the precinct
// and round, with the handles of every row for that pair in offset order.
func resolvedResult(items []stored[schema.ResultRecord], precinctID string, round int) (stored[schema.ResultRecord], []sheets.Handle, bool) {
	var subs []tally.Submission
	var matches []sheets.Handle
	byOffset := make(map[int]stored[schema.ResultRecord])
	for _, item := range items {
		if item.value.PrecinctID != precinctID || item.value.Round != round {
			continue
		}
		subs = append(subs, tally.Submission{Offset: item.handle.Offset(), Record: item.value})
		matches = append(matches, item.handle)
		byOffset[item.handle.Offset()] = item
	}
	resolved, _ := tally.Resolve(subs, round)
	if len(resolved) == 0 {
		return stored[schema.ResultRecord]{}, nil, false
	}
	return byOffset[resolved[0].Offset], matches, true
}

func recordID(precinctID string, round int) string {
	return fmt.Sprintf("%s:%d", precinctID, round)
}
