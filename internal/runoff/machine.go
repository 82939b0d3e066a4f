package runoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"scrutin/internal/access"
	"scrutin/internal/audit"
	"scrutin/internal/logging"
	"scrutin/internal/records"
	"scrutin/internal/schema"
	"scrutin/internal/services"
)

// Store is the state persistence the machine needs. records.Repository
// satisfies it.
type Store interface {
	Principal() access.Principal
	State(ctx context.Context) (records.State, error)
	MergeState(ctx context.Context, changes records.State) error
	SetRound2Flags(ctx context.Context, qualified []string) error
	Lists(ctx context.Context) ([]schema.CandidateList, error)
}

// Event is a requested round transition.
type Event interface {
	kind() audit.ActionKind
}

// LockRound1 closes round-one submissions and records the qualification.
type LockRound1 struct{}

// OpenRound2 opens the second round. Override replaces the qualified pair
// with an administrator's explicit choice.
type OpenRound2 struct {
	Override []string
}

// LockRound2 closes round-two submissions.
type LockRound2 struct{}

// ResetToRound1 returns a locked election to round one. Submitted records
// are kept.
type ResetToRound1 struct{}

func (LockRound1) kind() audit.ActionKind    { return audit.ActionLockRound1 }
func (OpenRound2) kind() audit.ActionKind    { return audit.ActionOpenRound2 }
func (LockRound2) kind() audit.ActionKind    { return audit.ActionLockRound2 }
func (ResetToRound1) kind() audit.ActionKind { return audit.ActionResetToRound1 }

// Outcome describes an applied transition.
type Outcome struct {
	From Phase
	To   Phase
	// Qualification is set when round one locks. QualifyErr holds a
	// qualification failure; the lock itself still applies.
	Qualification *Qualification
	QualifyErr    error
	// PropagationErr reports a failed list-flag update after round two
	// opened. The transition is not rolled back.
	PropagationErr error
	Changes        records.State
}

// Machine applies transitions to the persisted election state.
type Machine struct {
	store   Store
	qualify Qualifier
	audit   audit.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// MachineOption customizes a Machine.
type MachineOption func(*Machine)

// WithClock overrides the clock used for round dates.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine builds a state machine. qualify may be nil, in which case
// round two can only be opened with an override.
func NewMachine(store Store, qualify Qualifier, recorder audit.Recorder, logger *slog.Logger, opts ...MachineOption) *Machine {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	m := &Machine{
		store:   store,
		qualify: qualify,
		audit:   recorder,
		logger:  logging.NewComponentLogger(logger, "runoff"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Phase returns the current phase and the state it was derived from.
func (m *Machine) Phase(ctx context.Context) (Phase, records.State, error) {
	state, err := m.store.State(ctx)
	if err != nil {
		return Round1Open, nil, err
	}
	return PhaseOf(state), state, nil
}

// Transition applies ev. Every transition requires an administrator.
func (m *Machine) Transition(ctx context.Context, ev Event) (Outcome, error) {
	if err := m.requireAdministrator(ev.kind().String()); err != nil {
		return Outcome{}, err
	}
	from, state, err := m.Phase(ctx)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{From: from}
	today := m.now().UTC().Format(time.DateOnly)

	switch e := ev.(type) {
	case LockRound1:
		if from != Round1Open {
			return Outcome{}, m.reject(ev, from)
		}
		out.To = Round1Locked
		out.Changes = records.State{
			records.KeyCurrentRound: "1",
			records.KeyRound1Locked: "true",
		}
		if state[records.KeyRound1Date] == "" {
			out.Changes[records.KeyRound1Date] = today
		}
		m.qualifyOnLock(ctx, &out)

	case OpenRound2:
		if from != Round1Locked {
			return Outcome{}, m.reject(ev, from)
		}
		if !state.Bool(records.KeyRound2Gate) {
			return Outcome{}, services.Wrap(services.ErrInvalidTransition, "runoff", "open round 2",
				"round 2 confirmation gate is off", nil)
		}
		qualified, err := qualifiedSet(state, e.Override)
		if err != nil {
			return Outcome{}, err
		}
		if err := m.checkKnownLists(ctx, qualified); err != nil {
			return Outcome{}, err
		}
		out.To = Round2Open
		out.Changes = records.State{
			records.KeyCurrentRound:   "2",
			records.KeyRound2Locked:   "false",
			records.KeyQualifiedLists: strings.Join(qualified, ","),
			records.KeyRound2Date:     today,
		}
		if err := m.apply(ctx, ev, state, out.Changes); err != nil {
			return Outcome{}, err
		}
		if err := m.store.SetRound2Flags(ctx, qualified); err != nil {
			out.PropagationErr = err
			logging.WarnWithContext(m.logger, "round 2 opened but list flags were not updated", "list_propagation_failed",
				logging.String("qualified", strings.Join(qualified, ",")),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "set active_round2 on the qualified lists manually"),
				logging.String(logging.FieldImpact, "round 2 forms may show the wrong lists"),
				logging.Alert("list_propagation"),
			)
		}
		return out, nil

	case LockRound2:
		if from != Round2Open {
			return Outcome{}, m.reject(ev, from)
		}
		out.To = Round2Locked
		out.Changes = records.State{records.KeyRound2Locked: "true"}

	case ResetToRound1:
		if !from.Locked() {
			return Outcome{}, m.reject(ev, from)
		}
		out.To = Round1Open
		out.Changes = records.State{
			records.KeyCurrentRound:   "1",
			records.KeyRound1Locked:   "false",
			records.KeyRound2Locked:   "false",
			records.KeyRound2Gate:     "false",
			records.KeyQualifiedLists: "",
			records.KeyRound2Date:     "",
		}

	default:
		return Outcome{}, services.Wrap(services.ErrValidation, "runoff", "transition", fmt.Sprintf("unknown event %T", ev), nil)
	}

	if err := m.apply(ctx, ev, state, out.Changes); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// SetConfirmationGate toggles the independent round-two confirmation.
func (m *Machine) SetConfirmationGate(ctx context.Context, enabled bool) error {
	if err := m.requireAdministrator(audit.ActionSetConfirmationGate.String()); err != nil {
		return err
	}
	state, err := m.store.State(ctx)
	if err != nil {
		return err
	}
	changes := records.State{records.KeyRound2Gate: strconv.FormatBool(enabled)}
	if err := m.store.MergeState(ctx, changes); err != nil {
		return err
	}
	m.audit.Record(audit.ActionSetConfirmationGate, schema.TableState, records.KeyRound2Gate,
		records.State{records.KeyRound2Gate: state[records.KeyRound2Gate]}, changes)
	return nil
}

func (m *Machine) qualifyOnLock(ctx context.Context, out *Outcome) {
	if m.qualify == nil {
		return
	}
	q, err := m.qualify(ctx)
	out.Qualification = &q
	switch {
	case err != nil:
		out.QualifyErr = err
		event := "qualification_failed"
		if errors.Is(err, services.ErrManualDecisionRequired) {
			event = "manual_decision_required"
		}
		logging.WarnWithContext(m.logger, "round 1 locked without automatic qualification", event,
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "open round 2 with an explicit override"),
			logging.String(logging.FieldImpact, "no qualified lists recorded"),
			logging.Alert("qualification"),
		)
		out.Changes[records.KeyQualifiedLists] = ""
	case q.RunoffRequired:
		out.Changes[records.KeyQualifiedLists] = strings.Join(q.Qualified, ",")
	default:
		out.Changes[records.KeyQualifiedLists] = ""
	}
	for _, alert := range q.Alerts {
		m.logger.Info("qualification alert",
			logging.String(logging.FieldEventType, "qualification_alert"),
			logging.Alert(alert),
		)
	}
}

func (m *Machine) apply(ctx context.Context, ev Event, state, changes records.State) error {
	if err := m.store.MergeState(ctx, changes); err != nil {
		return err
	}
	before := make(records.State, len(changes))
	for key := range changes {
		before[key] = state[key]
	}
	m.audit.Record(ev.kind(), schema.TableState, ev.kind().String(), before, changes)
	logging.WithContext(ctx, m.logger).Info("election state changed",
		logging.String(logging.FieldEventType, ev.kind().String()),
	)
	return nil
}

// checkKnownLists rejects qualified ids missing from the list table before
// any state is written.
func (m *Machine) checkKnownLists(ctx context.Context, ids []string) error {
	lists, err := m.store.Lists(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(lists))
	for _, l := range lists {
		known[l.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return services.Wrap(services.ErrValidation, "runoff", "open round 2",
				fmt.Sprintf("unknown list %q", id), nil)
		}
	}
	return nil
}

func (m *Machine) requireAdministrator(op string) error {
	p := m.store.Principal()
	if p.IsAdministrator() {
		return nil
	}
	return services.Wrap(services.ErrPermissionDenied, "runoff", op,
		fmt.Sprintf("role %s cannot change the election state", p.Role), nil)
}

func (m *Machine) reject(ev Event, from Phase) error {
	return services.Wrap(services.ErrInvalidTransition, "runoff", ev.kind().String(),
		fmt.Sprintf("not allowed from %s", from), nil)
}

// qualifiedSet returns the override when given, else the recorded pair.
// An automatic set must hold exactly two lists.
func qualifiedSet(state records.State, override []string) ([]string, error) {
	if len(override) > 0 {
		seen := make(map[string]bool, len(override))
		var ids []string
		for _, id := range override {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) < 2 {
			return nil, services.Wrap(services.ErrValidation, "runoff", "open round 2",
				"an override must name at least two lists", nil)
		}
		return ids, nil
	}
	qualified := state.List(records.KeyQualifiedLists)
	if len(qualified) != 2 {
		return nil, services.Wrap(services.ErrInvalidTransition, "runoff", "open round 2",
			fmt.Sprintf("%d lists qualified, exactly two are required without an override", len(qualified)), nil)
	}
	return qualified, nil
}
