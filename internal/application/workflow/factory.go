package workflow

import (
	"context"

	domainwf "github.com/expenseflow/expenseflow/internal/domain/workflow"
)

type advanceKey struct{}

// withAdvance marks the transition context as "another approval level
// remains", steering an APPROVE from Waiting Approval back into Waiting
// Approval instead of the terminal Approved state.
func withAdvance(ctx context.Context, advance bool) context.Context {
	return context.WithValue(ctx, advanceKey{}, advance)
}

func advanceGuard(ctx context.Context) bool {
	advance, _ := ctx.Value(advanceKey{}).(bool)
	return advance
}

// BuildExpenseStateMachine creates a state machine configured for the
// expense approval lifecycle.
func BuildExpenseStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StateWaitingApproval)

	// APPROVE stays in Waiting Approval while a later level remains, and
	// finalizes otherwise. Guards run in registration order.
	builder.Configure(domainwf.StateWaitingApproval).
		PermitIf(domainwf.TriggerApprove, domainwf.StateWaitingApproval, advanceGuard).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	// Approved and Rejected are terminal, no outgoing transitions.
	// Partially Approved is reserved for conditional-rule outcomes and has no
	// outgoing transitions in the two-tier path.

	return builder.Build(initialState)
}
