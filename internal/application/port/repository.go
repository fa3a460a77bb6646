package port

import (
	"context"
	"time"

	"github.com/expenseflow/expenseflow/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ExpenseFilter narrows expense list queries. CompanyID is always required;
// every query is scoped to a single tenant.
type ExpenseFilter struct {
	CompanyID  string
	EmployeeID string
	// ManagerID restricts results to expenses owned by the manager's direct
	// reports (resolved through the users table).
	ManagerID string
	Status    string
	Category  string
	Level     int
	DateFrom  *time.Time
	DateTo    *time.Time
}

// StatusCounts aggregates expense counts per workflow status.
type StatusCounts struct {
	Draft             int `json:"draft"`
	Pending           int `json:"pending"`
	PartiallyApproved int `json:"partially_approved"`
	Approved          int `json:"approved"`
	Rejected          int `json:"rejected"`
	Total             int `json:"total"`
}

// MonthlyTotal is one month of approved expense volume.
type MonthlyTotal struct {
	Year   int             `json:"year"`
	Month  int             `json:"month"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// ExpenseRepository defines persistence operations for Expense.
// History entries are owned by HistoryRepository; implementations return
// expenses without history attached.
type ExpenseRepository interface {
	// Create inserts a new expense. A duplicate human-readable expense id
	// fails with apperr.ErrConflict so the registry can regenerate and retry.
	Create(ctx context.Context, expense *entity.Expense) error

	// GetByID retrieves an expense by its human-readable identifier.
	// Returns nil, nil when absent. Tenant checks happen in the callers so
	// that cross-company access surfaces as an authorization failure, not a
	// missing record.
	GetByID(ctx context.Context, expenseID string) (*entity.Expense, error)

	// UpdateDraft persists editable fields. Workflow fields are untouched.
	UpdateDraft(ctx context.Context, expense *entity.Expense) error

	// UpdateWorkflow conditionally advances status and level. The update only
	// succeeds if the stored status and level still match the values read;
	// otherwise it fails with apperr.ErrConflict.
	UpdateWorkflow(ctx context.Context, expenseID, fromStatus string, fromLevel int, toStatus string, toLevel int) error

	// Delete removes an expense record.
	Delete(ctx context.Context, expenseID string) error

	// List retrieves expenses matching the filter, newest first.
	List(ctx context.Context, filter ExpenseFilter) ([]*entity.Expense, error)

	// CountByStatus aggregates expense counts per status for a company.
	CountByStatus(ctx context.Context, companyID string) (*StatusCounts, error)

	// SumApproved totals approved expense amounts for a company, grouped by
	// currency code (normalization to the base currency happens in Go).
	SumApproved(ctx context.Context, companyID string) (map[string]decimal.Decimal, error)

	// MonthlyApprovedTotals aggregates approved expenses per calendar month
	// since the given time.
	MonthlyApprovedTotals(ctx context.Context, companyID string, since time.Time) ([]MonthlyTotal, error)
}

// HistoryRepository defines persistence operations for the append-only
// approval history. There is deliberately no update or delete.
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.ApprovalEntry) error
	ListByExpense(ctx context.Context, expenseID string) ([]entity.ApprovalEntry, error)
}

// PolicyRepository defines persistence operations for ApprovalPolicy.
type PolicyRepository interface {
	// GetActive returns the company's active policy, or nil, nil when the
	// company has not configured one yet.
	GetActive(ctx context.Context, companyID string) (*entity.ApprovalPolicy, error)

	// Upsert atomically replaces the company's policy.
	Upsert(ctx context.Context, policy *entity.ApprovalPolicy) error
}

// UserRepository defines read operations on users needed by the workflow.
// GetByID returns apperr.ErrNotFound for a missing user, never (nil, nil).
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// CompanyRepository defines read operations on companies.
// GetByID returns apperr.ErrNotFound for a missing company, never (nil, nil).
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}

// TransactionManager handles database transactions. The callback runs with a
// transaction bound to the context; nested calls reuse the outer transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
