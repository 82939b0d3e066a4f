package tally

import (
	"fmt"

	"scrutin/internal/schema"
)

// FlagKind classifies an advisory reconciliation finding.
type FlagKind int

const (
	FlagTurnoutMismatch FlagKind = iota + 1
	FlagVoteSumMismatch
	FlagTurnoutExceedsRegistered
	FlagUnknownList
	FlagUnknownPrecinct
	FlagDuplicateSubmission
	FlagDecreasingSample
	FlagSampleExceedsRegistered
)

func (k FlagKind) String() string {
	switch k {
	case FlagTurnoutMismatch:
		return "turnout_mismatch"
	case FlagVoteSumMismatch:
		return "vote_sum_mismatch"
	case FlagTurnoutExceedsRegistered:
		return "turnout_exceeds_registered"
	case FlagUnknownList:
		return "unknown_list"
	case FlagUnknownPrecinct:
		return "unknown_precinct"
	case FlagDuplicateSubmission:
		return "duplicate_submission"
	case FlagDecreasingSample:
		return "decreasing_sample"
	case FlagSampleExceedsRegistered:
		return "sample_exceeds_registered"
	default:
		return "unknown"
	}
}

// Flag is an advisory finding about one precinct.
type Flag struct {
	PrecinctID string
	Kind       FlagKind
	Expected   int64
	Actual     int64
	Detail     string
}

func (f Flag) String() string {
	if f.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", f.PrecinctID, f.Kind, f.Detail)
	}
	return fmt.Sprintf("%s: %s (expected %d, got %d)", f.PrecinctID, f.Kind, f.Expected, f.Actual)
}

// CheckResult returns the reconciliation flags of a single record.
// registered <= 0 skips the roll check.
func CheckResult(rec schema.ResultRecord, registered int64) []Flag {
	var flags []Flag
	if sum := rec.Blank + rec.Null + rec.Expressed; rec.Turnout != sum {
		flags = append(flags, Flag{
			PrecinctID: rec.PrecinctID,
			Kind:       FlagTurnoutMismatch,
			Expected:   sum,
			Actual:     rec.Turnout,
			Detail:     fmt.Sprintf("turnout %d != blank+null+expressed %d", rec.Turnout, sum),
		})
	}
	if sum := rec.VoteSum(); sum != rec.Expressed {
		flags = append(flags, Flag{
			PrecinctID: rec.PrecinctID,
			Kind:       FlagVoteSumMismatch,
			Expected:   rec.Expressed,
			Actual:     sum,
			Detail:     fmt.Sprintf("list votes sum to %d, expressed is %d", sum, rec.Expressed),
		})
	}
	if registered > 0 && rec.Turnout > registered {
		flags = append(flags, Flag{
			PrecinctID: rec.PrecinctID,
			Kind:       FlagTurnoutExceedsRegistered,
			Expected:   registered,
			Actual:     rec.Turnout,
			Detail:     fmt.Sprintf("turnout %d exceeds %d registered", rec.Turnout, registered),
		})
	}
	return flags
}
