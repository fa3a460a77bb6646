package workflow

// State represents an expense status in the approval lifecycle.
type State string

const (
	StateDraft             State = "Draft"
	StateWaitingApproval   State = "Waiting Approval"
	StateApproved          State = "Approved"
	StateRejected          State = "Rejected"
	StatePartiallyApproved State = "Partially Approved"
)

var validStates = map[State]bool{
	StateDraft:             true,
	StateWaitingApproval:   true,
	StateApproved:          true,
	StateRejected:          true,
	StatePartiallyApproved: true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if the state is terminal (no further transitions allowed).
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a valid expense state.
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
