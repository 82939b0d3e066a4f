package audit

// ActionKind enumerates the mutations that are audited.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionSubmitResult
	ActionUpdateResult
	ActionValidateResult
	ActionSaveParticipation
	ActionUpdateParticipation
	ActionLockRound1
	ActionOpenRound2
	ActionLockRound2
	ActionResetToRound1
	ActionSetConfirmationGate
	ActionPropagateListFlags
	ActionMergeState
	ActionSaveSeats
)

var actionNames = map[ActionKind]string{
	ActionSubmitResult:        "submit_result",
	ActionUpdateResult:        "update_result",
	ActionValidateResult:      "validate_result",
	ActionSaveParticipation:   "save_participation",
	ActionUpdateParticipation: "update_participation",
	ActionLockRound1:          "lock_round1",
	ActionOpenRound2:          "open_round2",
	ActionLockRound2:          "lock_round2",
	ActionResetToRound1:       "reset_to_round1",
	ActionSetConfirmationGate: "set_confirmation_gate",
	ActionPropagateListFlags:  "propagate_list_flags",
	ActionMergeState:          "merge_state",
	ActionSaveSeats:           "save_seats",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseActionKind converts a stored action name back into its kind.
func ParseActionKind(name string) (ActionKind, bool) {
	for kind, candidate := range actionNames {
		if candidate == name {
			return kind, true
		}
	}
	return ActionUnknown, false
}
