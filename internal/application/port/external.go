package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Directory resolves the org chart. It is an external collaborator; the
// engine fails closed (treats the action as unauthorized) when it errors.
type Directory interface {
	// ResolveManager returns the direct manager's user id for an employee,
	// or "" when the employee has no manager.
	ResolveManager(ctx context.Context, employeeID string) (string, error)
}

// RateSource supplies point-in-time exchange rates. Lookups must apply a
// timeout; unavailability degrades softly (callers fall back to the original
// amount), it never blocks a workflow transition.
type RateSource interface {
	GetRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error)
}
