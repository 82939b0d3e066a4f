package records

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"scrutin/internal/audit"
	"scrutin/internal/schema"
	"scrutin/internal/sheets"
)

// Election state keys.
const (
	KeyCurrentRound   = "current_round"
	KeyRound1Locked   = "round1_locked"
	KeyRound2Locked   = "round2_locked"
	KeyRound2Gate     = "round2_gate"
	KeyQualifiedLists = "qualified_lists"
	KeyRound1Date     = "round1_date"
	KeyRound2Date     = "round2_date"
)

// State is the key/value election state.
type State map[string]string

// Bool reports whether key holds a true value.
func (s State) Bool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s[key]))
	return err == nil && v
}

// Int returns key as an integer, or fallback when absent or malformed.
func (s State) Int(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s[key]))
	if err != nil {
		return fallback
	}
	return v
}

// List splits a comma-separated value.
func (s State) List(key string) []string {
	var out []string
	for _, part := range strings.Split(s[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RoundLocked reports whether submissions for round are closed.
func (s State) RoundLocked(round int) bool {
	switch round {
	case 1:
		return s.Bool(KeyRound1Locked)
	case 2:
		return s.Bool(KeyRound2Locked)
	default:
		return false
	}
}

// State reads the election state. When a key appears on several rows the
// highest offset wins.
func (r *Repository) State(ctx context.Context) (State, error) {
	items, err := readAll(ctx, r, schema.State)
	if err != nil {
		return nil, err
	}
	state := make(State, len(items))
	for _, item := range items {
		state[item.value.Key] = item.value.Value
	}
	return state, nil
}

// MergeState writes changes into the state table. Existing keys are
// rewritten in one batch call, new keys are appended and keys not named in
// changes are left untouched.
func (r *Repository) MergeState(ctx context.Context, changes State) error {
	if len(changes) == 0 {
		return nil
	}
	items, err := readAll(ctx, r, schema.State)
	if err != nil {
		return err
	}
	existing := make(map[string]stored[schema.StateEntry], len(items))
	for _, item := range items {
		existing[item.value.Key] = item
	}

	keys := make([]string, 0, len(changes))
	for key := range changes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	now := r.now().UTC()
	before := make(State)
	var updates []sheets.Update
	var appends []schema.Row
	for _, key := range keys {
		entry := schema.StateEntry{Key: key, Value: changes[key], UpdatedAt: now}
		if item, ok := existing[key]; ok {
			before[key] = item.value.Value
			updates = append(updates, sheets.Update{Handle: item.handle, Values: schema.State.Encode(entry)})
			continue
		}
		appends = append(appends, schema.State.Encode(entry))
	}
	if len(updates) > 0 {
		if err := r.guard.BatchUpdate(ctx, updates); err != nil {
			return err
		}
	}
	if len(appends) > 0 {
		if _, err := r.guard.Append(ctx, schema.TableState, appends); err != nil {
			return err
		}
	}
	r.audit.Record(audit.ActionMergeState, schema.TableState, strings.Join(keys, ","), before, changes)
	return nil
}
