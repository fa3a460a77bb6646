package workflow

import (
	"context"

	"github.com/expenseflow/expenseflow/internal/domain/entity"
)

// Engine is the approval workflow engine: it validates that a requested
// action is legal for the expense's current state, authorizes the actor,
// and computes the resulting status, level and history entry.
type Engine interface {
	// Submit moves a draft into the approval flow at level 1. Only the owning
	// employee may submit, and only from Draft.
	Submit(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error)

	// Approve records an approval at the current level and advances the
	// workflow per the two-tier manager/admin path.
	Approve(ctx context.Context, actor entity.Actor, expenseID, comment string) (*entity.Expense, error)

	// Reject terminates the workflow. The comment is mandatory.
	Reject(ctx context.Context, actor entity.Actor, expenseID, comment string) (*entity.Expense, error)
}
