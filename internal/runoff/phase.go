package runoff

import "scrutin/internal/records"

// Phase is the position of the election in its round sequence.
type Phase int

const (
	Round1Open Phase = iota
	Round1Locked
	Round2Open
	Round2Locked
)

func (p Phase) String() string {
	switch p {
	case Round1Open:
		return "round1_open"
	case Round1Locked:
		return "round1_locked"
	case Round2Open:
		return "round2_open"
	case Round2Locked:
		return "round2_locked"
	default:
		return "unknown"
	}
}

// Locked reports whether p accepts no more submissions.
func (p Phase) Locked() bool { return p == Round1Locked || p == Round2Locked }

// PhaseOf derives the phase from persisted state. Missing keys read as the
// initial phase.
func PhaseOf(state records.State) Phase {
	if state.Int(records.KeyCurrentRound, 1) == 2 {
		if state.Bool(records.KeyRound2Locked) {
			return Round2Locked
		}
		return Round2Open
	}
	if state.Bool(records.KeyRound1Locked) {
		return Round1Locked
	}
	return Round1Open
}
