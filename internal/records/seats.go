package records

import (
	"context"
	"fmt"

	"scrutin/internal/audit"
	"scrutin/internal/schema"
	"scrutin/internal/seats"
	"scrutin/internal/sheets"
)

type seatKey struct {
	kind   string
	round  int
	listID string
}

// SaveSeats upserts one row per allocation keyed by (kind, round, list).
// Rows of the same kind and round for lists absent from result are cleared.
func (r *Repository) SaveSeats(ctx context.Context, round int, result seats.Result) error {
	items, err := readAll(ctx, r, schema.Seats)
	if err != nil {
		return err
	}
	existing := make(map[seatKey]stored[schema.SeatRow], len(items))
	for _, item := range items {
		existing[seatKey{item.value.Kind, item.value.Round, item.value.ListID}] = item
	}

	now := r.now().UTC()
	kept := make(map[seatKey]bool, len(result.Allocations))
	var updates []sheets.Update
	var appends []schema.Row
	for _, a := range result.Allocations {
		key := seatKey{string(result.Kind), round, a.ListID}
		kept[key] = true
		row := schema.Seats.Encode(schema.SeatRow{
			Kind:         string(result.Kind),
			Round:        round,
			ListID:       a.ListID,
			Votes:        a.Votes,
			Percent:      a.Percent,
			Majority:     a.Majority,
			Proportional: a.Proportional,
			Total:        a.Total,
			ComputedAt:   now,
		})
		if item, ok := existing[key]; ok {
			updates = append(updates, sheets.Update{Handle: item.handle, Values: row})
			continue
		}
		appends = append(appends, row)
	}
	var stale []sheets.Handle
	for key, item := range existing {
		if key.kind == string(result.Kind) && key.round == round && !kept[key] {
			stale = append(stale, item.handle)
		}
	}

	if len(updates) > 0 {
		if err := r.guard.BatchUpdate(ctx, updates); err != nil {
			return err
		}
	}
	if len(appends) > 0 {
		if _, err := r.guard.Append(ctx, schema.TableSeats, appends); err != nil {
			return err
		}
	}
	if len(stale) > 0 {
		if err := r.guard.Clear(ctx, stale); err != nil {
			return err
		}
	}
	r.audit.Record(audit.ActionSaveSeats, schema.TableSeats, fmt.Sprintf("%s:%d", result.Kind, round), nil, result)
	return nil
}
