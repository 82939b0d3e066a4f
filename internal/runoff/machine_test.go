package runoff

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scrutin/internal/access"
	"scrutin/internal/audit"
	"scrutin/internal/logging"
	"scrutin/internal/records"
	"scrutin/internal/schema"
	"scrutin/internal/services"
)

type memoryStore struct {
	principal  access.Principal
	state      records.State
	flags      []string
	flagsErr   error
	flagsCalls int
	lists      []schema.CandidateList
}

func newMemoryStore(role access.Role) *memoryStore {
	return &memoryStore{
		principal: access.Principal{Actor: "x", Role: role, Precinct: "1"},
		state:     records.State{},
		lists: []schema.CandidateList{
			{ID: "A", Order: 1}, {ID: "B", Order: 2}, {ID: "C", Order: 3}, {ID: "D", Order: 4},
		},
	}
}

func (s *memoryStore) Principal() access.Principal { return s.principal }

func (s *memoryStore) State(context.Context) (records.State, error) {
	out := make(records.State, len(s.state))
	for k, v := range s.state {
		out[k] = v
	}
	return out, nil
}

func (s *memoryStore) MergeState(_ context.Context, changes records.State) error {
	for k, v := range changes {
		s.state[k] = v
	}
	return nil
}

func (s *memoryStore) SetRound2Flags(_ context.Context, qualified []string) error {
	s.flagsCalls++
	if s.flagsErr != nil {
		return s.flagsErr
	}
	s.flags = append([]string(nil), qualified...)
	return nil
}

func (s *memoryStore) Lists(context.Context) ([]schema.CandidateList, error) {
	return s.lists, nil
}

type kinds struct {
	mu   sync.Mutex
	seen []audit.ActionKind
}

func (k *kinds) Record(kind audit.ActionKind, _ schema.Table, _ string, _, _ any) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.seen = append(k.seen, kind)
}

func fixedQualifier(q Qualification, err error) Qualifier {
	return func(context.Context) (Qualification, error) { return q, err }
}

func newTestMachine(store Store, q Qualifier, rec audit.Recorder) *Machine {
	now := time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC)
	return NewMachine(store, q, rec, logging.NewNop(), WithClock(func() time.Time { return now }))
}

func TestFullRoundSequence(t *testing.T) {
	store := newMemoryStore(access.Administrator)
	rec := &kinds{}
	q := Qualification{RunoffRequired: true, Qualified: []string{"A", "B"}}
	m := newTestMachine(store, fixedQualifier(q, nil), rec)
	ctx := context.Background()

	out, err := m.Transition(ctx, LockRound1{})
	if err != nil {
		t.Fatalf("LockRound1: %v", err)
	}
	if out.From != Round1Open || out.To != Round1Locked || out.Qualification == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if store.state[records.KeyQualifiedLists] != "A,B" || store.state[records.KeyRound1Date] != "2026-03-15" {
		t.Fatalf("state = %v", store.state)
	}

	if _, err := m.Transition(ctx, OpenRound2{}); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("gate off: err = %v, want ErrInvalidTransition", err)
	}
	if err := m.SetConfirmationGate(ctx, true); err != nil {
		t.Fatalf("SetConfirmationGate: %v", err)
	}
	out, err = m.Transition(ctx, OpenRound2{})
	if err != nil {
		t.Fatalf("OpenRound2: %v", err)
	}
	if out.To != Round2Open || out.PropagationErr != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if len(store.flags) != 2 || store.flags[0] != "A" || store.flags[1] != "B" {
		t.Fatalf("flags = %v", store.flags)
	}

	if _, err := m.Transition(ctx, LockRound2{}); err != nil {
		t.Fatalf("LockRound2: %v", err)
	}
	phase, _, err := m.Phase(ctx)
	if err != nil || phase != Round2Locked {
		t.Fatalf("phase = %v, %v", phase, err)
	}

	if _, err := m.Transition(ctx, ResetToRound1{}); err != nil {
		t.Fatalf("ResetToRound1: %v", err)
	}
	if phase, _, _ := m.Phase(ctx); phase != Round1Open {
		t.Fatalf("phase after reset = %v", phase)
	}
	if store.state.Bool(records.KeyRound2Gate) || store.state[records.KeyQualifiedLists] != "" {
		t.Fatalf("reset left state behind: %v", store.state)
	}

	want := []audit.ActionKind{
		audit.ActionLockRound1,
		audit.ActionSetConfirmationGate,
		audit.ActionOpenRound2,
		audit.ActionLockRound2,
		audit.ActionResetToRound1,
	}
	if len(rec.seen) != len(want) {
		t.Fatalf("audited %v, want %v", rec.seen, want)
	}
	for i := range want {
		if rec.seen[i] != want[i] {
			t.Fatalf("audited %v, want %v", rec.seen, want)
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		state records.State
		event Event
	}{
		{"open round 2 while round 1 open", records.State{records.KeyRound2Gate: "true", records.KeyQualifiedLists: "A,B"}, OpenRound2{}},
		{"lock round 1 twice", records.State{records.KeyRound1Locked: "true"}, LockRound1{}},
		{"lock round 2 before open", records.State{records.KeyRound1Locked: "true"}, LockRound2{}},
		{"reset from open round 1", records.State{}, ResetToRound1{}},
		{"reset from open round 2", records.State{records.KeyCurrentRound: "2"}, ResetToRound1{}},
		{"open round 2 with three qualified", records.State{records.KeyRound1Locked: "true", records.KeyRound2Gate: "true", records.KeyQualifiedLists: "A,B,C"}, OpenRound2{}},
		{"open round 2 after a winner", records.State{records.KeyRound1Locked: "true", records.KeyRound2Gate: "true"}, OpenRound2{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore(access.Administrator)
			store.state = tt.state
			_, err := newTestMachine(store, nil, nil).Transition(context.Background(), tt.event)
			if !errors.Is(err, services.ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestOverrideOpensRound2(t *testing.T) {
	store := newMemoryStore(access.Administrator)
	store.state = records.State{records.KeyRound1Locked: "true", records.KeyRound2Gate: "true"}
	m := newTestMachine(store, nil, nil)

	if _, err := m.Transition(context.Background(), OpenRound2{Override: []string{"A"}}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("single-list override err = %v, want ErrValidation", err)
	}
	out, err := m.Transition(context.Background(), OpenRound2{Override: []string{"A", "C", "D"}})
	if err != nil {
		t.Fatalf("OpenRound2: %v", err)
	}
	if out.Changes[records.KeyQualifiedLists] != "A,C,D" || len(store.flags) != 3 {
		t.Fatalf("outcome = %+v flags = %v", out, store.flags)
	}
}

func TestUnknownQualifiedListLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name  string
		state records.State
		ev    OpenRound2
	}{
		{"override", records.State{records.KeyRound1Locked: "true", records.KeyRound2Gate: "true"}, OpenRound2{Override: []string{"A", "ZZ"}}},
		{"recorded", records.State{records.KeyRound1Locked: "true", records.KeyRound2Gate: "true", records.KeyQualifiedLists: "A,ZZ"}, OpenRound2{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore(access.Administrator)
			store.state = tt.state
			m := newTestMachine(store, nil, nil)

			_, err := m.Transition(context.Background(), tt.ev)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if PhaseOf(store.state) != Round1Locked || store.state[records.KeyRound2Date] != "" {
				t.Fatalf("state changed despite the rejection: %v", store.state)
			}
			if store.flagsCalls != 0 {
				t.Fatalf("list flags written %d times", store.flagsCalls)
			}
		})
	}
}

func TestPropagationFailureIsNotRolledBack(t *testing.T) {
	store := newMemoryStore(access.Administrator)
	store.state = records.State{records.KeyRound1Locked: "true", records.KeyRound2Gate: "true", records.KeyQualifiedLists: "A,B"}
	store.flagsErr = services.Wrap(services.ErrRemoteServer, "test", "batch", "unavailable", nil)
	m := newTestMachine(store, nil, nil)

	out, err := m.Transition(context.Background(), OpenRound2{})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !errors.Is(out.PropagationErr, services.ErrRemoteServer) {
		t.Fatalf("PropagationErr = %v", out.PropagationErr)
	}
	if PhaseOf(store.state) != Round2Open || store.flagsCalls != 1 {
		t.Fatalf("round 2 should stay open: %v", store.state)
	}
}

func TestLockRound1WithTieRecordsNoQualification(t *testing.T) {
	store := newMemoryStore(access.Administrator)
	tie := services.Wrap(services.ErrManualDecisionRequired, "runoff", "qualify", "tie", nil)
	m := newTestMachine(store, fixedQualifier(Qualification{RunoffRequired: true}, tie), nil)

	out, err := m.Transition(context.Background(), LockRound1{})
	if err != nil {
		t.Fatalf("LockRound1: %v", err)
	}
	if !errors.Is(out.QualifyErr, services.ErrManualDecisionRequired) {
		t.Fatalf("QualifyErr = %v", out.QualifyErr)
	}
	if PhaseOf(store.state) != Round1Locked || store.state[records.KeyQualifiedLists] != "" {
		t.Fatalf("state = %v", store.state)
	}
}

func TestTransitionsRequireAdministrator(t *testing.T) {
	for _, role := range []access.Role{access.PrecinctOperator, access.Supervisor} {
		store := newMemoryStore(role)
		m := newTestMachine(store, nil, nil)
		if _, err := m.Transition(context.Background(), LockRound1{}); !errors.Is(err, services.ErrPermissionDenied) {
			t.Errorf("%s transition err = %v", role, err)
		}
		if err := m.SetConfirmationGate(context.Background(), true); !errors.Is(err, services.ErrPermissionDenied) {
			t.Errorf("%s gate err = %v", role, err)
		}
		if len(store.state) != 0 {
			t.Errorf("%s changed state: %v", role, store.state)
		}
	}
}

func TestPhaseOf(t *testing.T) {
	tests := []struct {
		state records.State
		want  Phase
	}{
		{records.State{}, Round1Open},
		{records.State{records.KeyRound1Locked: "TRUE"}, Round1Locked},
		{records.State{records.KeyCurrentRound: "2", records.KeyRound1Locked: "true"}, Round2Open},
		{records.State{records.KeyCurrentRound: "2", records.KeyRound2Locked: "true"}, Round2Locked},
	}
	for _, tt := range tests {
		if got := PhaseOf(tt.state); got != tt.want {
			t.Errorf("PhaseOf(%v) = %s, want %s", tt.state, got, tt.want)
		}
	}
}
