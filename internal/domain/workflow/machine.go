package workflow

import "context"

// StateMachine tracks the current state of one expense and validates
// transitions against the configured table.
type StateMachine interface {
	// State returns the current state.
	State() State

	// CanFire returns true if the trigger is permitted in the current state.
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if
	// allowed. Guards are evaluated in registration order; the first passing
	// transition wins.
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state.
	PermittedTriggers() []Trigger
}
