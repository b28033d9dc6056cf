package domain

// ActionKind enumerates the decision controls attached to a moderator card.
// Payloads arriving from the platform are decoded into this tagged form once,
// at the boundary; unrecognized payloads decode to ActionUnknown and are
// dropped as no-ops.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	// ActionApprove applies the approved terminal state.
	ActionApprove
	// ActionReject applies the rejected terminal state without a reason.
	ActionReject
	// ActionReasonMenu swaps the card controls for the reason menu. No
	// status change occurs.
	ActionReasonMenu
	// ActionBack restores the Approve/Reject controls from the reason menu.
	ActionBack
	// ActionReasonPick rejects with the reason carried alongside.
	ActionReasonPick
)

// DecisionAction is the decoded form of a decision control event.
// Reason is set only for ActionReasonPick.
type DecisionAction struct {
	Kind   ActionKind
	Reason ReasonCode
}

// Mutates reports whether the action attempts a terminal transition, as
// opposed to only repainting the card controls.
func (a DecisionAction) Mutates() bool {
	return a.Kind == ActionApprove || a.Kind == ActionReject || a.Kind == ActionReasonPick
}
