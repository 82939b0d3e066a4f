package records

import (
	"context"
	"fmt"
	"strings"

	"scrutin/internal/audit"
	"scrutin/internal/schema"
	"scrutin/internal/services"
	"scrutin/internal/sheets"
)

// SetRound2Flags marks exactly the qualified lists as active in round 2
// with a single batch update over the list table.
func (r *Repository) SetRound2Flags(ctx context.Context, qualified []string) error {
	items, err := readAll(ctx, r, schema.Lists)
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(qualified))
	for _, id := range qualified {
		want[strings.TrimSpace(id)] = true
	}
	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.value.ID] = true
	}
	for id := range want {
		if !known[id] {
			return services.Wrap(services.ErrValidation, "records", "set round 2 flags",
				fmt.Sprintf("unknown list %q", id), nil)
		}
	}

	var updates []sheets.Update
	before := make(map[string]bool)
	after := make(map[string]bool)
	for _, item := range items {
		list := item.value
		active := want[list.ID]
		if list.ActiveRound2 == active {
			continue
		}
		before[list.ID] = list.ActiveRound2
		after[list.ID] = active
		list.ActiveRound2 = active
		updates = append(updates, sheets.Update{Handle: item.handle, Values: schema.Lists.Encode(list)})
	}
	if len(updates) == 0 {
		return nil
	}
	if err := r.guard.BatchUpdate(ctx, updates); err != nil {
		return err
	}
	r.audit.Record(audit.ActionPropagateListFlags, schema.TableLists, strings.Join(qualified, ","), before, after)
	return nil
}
