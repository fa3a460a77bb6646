package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/currency"
	"github.com/expenseflow/expenseflow/internal/domain/apperr"
	"github.com/expenseflow/expenseflow/internal/domain/entity"
	"github.com/expenseflow/expenseflow/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// idRetryLimit bounds regeneration attempts when the random suffix collides.
const idRetryLimit = 5

// CreateExpenseInput carries the fields an employee supplies for a new draft.
// OCR data is accepted as a pre-fill aid only.
type CreateExpenseInput struct {
	Description string
	Amount      decimal.Decimal
	Currency    string
	Category    string
	ExpenseDate time.Time
	PaidBy      string
	Remarks     string
	Receipt     *entity.Receipt
	OCRData     *entity.OCRData
}

// UpdateExpenseInput carries the editable fields of a non-terminal expense.
type UpdateExpenseInput struct {
	Description *string
	Amount      *decimal.Decimal
	Currency    *string
	Category    *string
	ExpenseDate *time.Time
	PaidBy      *string
	Remarks     *string
	Receipt     *entity.Receipt
}

// ListFilter narrows expense listings at the service boundary.
type ListFilter struct {
	Status     string
	Category   string
	EmployeeID string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// ApprovedSummary is the approved-expense listing with its aggregate total.
// When Normalized is false a rate lookup failed and Total is the raw sum of
// the original amounts instead of a base-currency figure.
type ApprovedSummary struct {
	Expenses   []*entity.Expense `json:"expenses"`
	Total      decimal.Decimal   `json:"total_amount"`
	Currency   string            `json:"currency"`
	Normalized bool              `json:"normalized"`
}

// Statistics aggregates a company's expense volume.
type Statistics struct {
	StatusCounts        *port.StatusCounts  `json:"status_counts"`
	TotalApprovedAmount decimal.Decimal     `json:"total_approved_amount"`
	Currency            string              `json:"currency"`
	Normalized          bool                `json:"normalized"`
	MonthlyBreakdown    []port.MonthlyTotal `json:"monthly_breakdown"`
}

// ExpenseService owns expense records and their lifecycle outside the
// workflow transitions: drafting, editing, deletion and listings.
type ExpenseService interface {
	CreateDraft(ctx context.Context, actor entity.Actor, input CreateExpenseInput) (*entity.Expense, error)
	Get(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error)
	EditDraft(ctx context.Context, actor entity.Actor, expenseID string, input UpdateExpenseInput) (*entity.Expense, error)
	Delete(ctx context.Context, actor entity.Actor, expenseID string) error
	List(ctx context.Context, actor entity.Actor, filter ListFilter) ([]*entity.Expense, error)
	ListPendingFor(ctx context.Context, actor entity.Actor) ([]*entity.Expense, error)
	ListApproved(ctx context.Context, actor entity.Actor, filter ListFilter) (*ApprovedSummary, error)
	ListRejected(ctx context.Context, actor entity.Actor, filter ListFilter) ([]*entity.Expense, error)
	History(ctx context.Context, actor entity.Actor, expenseID string) ([]entity.ApprovalEntry, error)
	Statistics(ctx context.Context, actor entity.Actor) (*Statistics, error)
}

type expenseServiceImpl struct {
	expenseRepo port.ExpenseRepository
	historyRepo port.HistoryRepository
	companyRepo port.CompanyRepository
	normalizer  *currency.Normalizer
	logger      Logger

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

// ExpenseServiceOption configures the expense service.
type ExpenseServiceOption func(*expenseServiceImpl)

// WithRandSource injects deterministic randomness for expense id generation.
func WithRandSource(rng *rand.Rand) ExpenseServiceOption {
	return func(s *expenseServiceImpl) {
		s.rng = rng
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ExpenseServiceOption {
	return func(s *expenseServiceImpl) {
		s.now = now
	}
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(
	expenseRepo port.ExpenseRepository,
	historyRepo port.HistoryRepository,
	companyRepo port.CompanyRepository,
	normalizer *currency.Normalizer,
	logger Logger,
	opts ...ExpenseServiceOption,
) ExpenseService {
	s := &expenseServiceImpl{
		expenseRepo: expenseRepo,
		historyRepo: historyRepo,
		companyRepo: companyRepo,
		normalizer:  normalizer,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateDraft validates input and stores a new draft expense. Collisions on
// the generated human-readable id are retried with a fresh suffix.
func (s *expenseServiceImpl) CreateDraft(ctx context.Context, actor entity.Actor, input CreateExpenseInput) (*entity.Expense, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	company, err := s.companyRepo.GetByID(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}

	cur := strings.ToUpper(strings.TrimSpace(input.Currency))
	if cur == "" {
		cur = company.Currency
	}
	if err := utils.ValidateCurrencyCode(cur); err != nil {
		return nil, apperr.Validation("invalid currency code %q", cur)
	}

	expense := &entity.Expense{
		ID:          uuid.NewString(),
		EmployeeID:  actor.ID,
		CompanyID:   actor.CompanyID,
		Description: utils.SanitizeString(strings.TrimSpace(input.Description)),
		Amount:      input.Amount,
		Currency:    cur,
		Category:    input.Category,
		ExpenseDate: input.ExpenseDate,
		PaidBy:      defaultString(input.PaidBy, "Self"),
		Remarks:     utils.SanitizeString(input.Remarks),
		Receipt:     input.Receipt,
		OCRData:     input.OCRData,
		Status:      entity.StatusDraft,
	}

	for attempt := 0; ; attempt++ {
		expense.ExpenseID = s.newExpenseID(company.Name)
		err = s.expenseRepo.Create(ctx, expense)
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrConflict) || attempt+1 >= idRetryLimit {
			s.logger.Error("Failed to create expense", "error", err, "employee_id", actor.ID)
			return nil, err
		}
	}

	s.logger.Info("Expense draft created", "expense_id", expense.ExpenseID, "employee_id", actor.ID)
	return expense, nil
}

// Get returns one expense with its approval history attached.
func (s *expenseServiceImpl) Get(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error) {
	expense, err := s.fetch(ctx, actor, expenseID)
	if err != nil {
		return nil, err
	}
	if actor.Role == entity.RoleEmployee && expense.EmployeeID != actor.ID {
		return nil, apperr.Unauthorized("not authorized to view expense %s", expenseID)
	}

	history, err := s.historyRepo.ListByExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	expense.ApprovalHistory = history
	return expense, nil
}

// EditDraft updates editable fields. Terminal expenses are immutable.
func (s *expenseServiceImpl) EditDraft(ctx context.Context, actor entity.Actor, expenseID string, input UpdateExpenseInput) (*entity.Expense, error) {
	expense, err := s.fetch(ctx, actor, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.EmployeeID != actor.ID && actor.Role != entity.RoleAdmin {
		return nil, apperr.Unauthorized("not authorized to update expense %s", expenseID)
	}
	if expense.IsTerminal() {
		return nil, apperr.InvalidState("cannot update %s expenses", strings.ToLower(expense.Status))
	}

	applyUpdate(expense, input)
	if err := validateExpense(expense); err != nil {
		return nil, err
	}
	if input.Currency != nil {
		if err := utils.ValidateCurrencyCode(expense.Currency); err != nil {
			return nil, apperr.Validation("invalid currency code %q", expense.Currency)
		}
	}

	if err := s.expenseRepo.UpdateDraft(ctx, expense); err != nil {
		return nil, err
	}

	s.logger.Info("Expense updated", "expense_id", expenseID, "actor_id", actor.ID)
	return expense, nil
}

// Delete removes a non-terminal expense. Approved expenses are never
// deleted, not even by an admin.
func (s *expenseServiceImpl) Delete(ctx context.Context, actor entity.Actor, expenseID string) error {
	expense, err := s.fetch(ctx, actor, expenseID)
	if err != nil {
		return err
	}
	if expense.EmployeeID != actor.ID && actor.Role != entity.RoleAdmin {
		return apperr.Unauthorized("not authorized to delete expense %s", expenseID)
	}
	if expense.IsTerminal() {
		return apperr.InvalidState("cannot delete %s expenses", strings.ToLower(expense.Status))
	}

	if err := s.expenseRepo.Delete(ctx, expenseID); err != nil {
		return err
	}

	s.logger.Info("Expense deleted", "expense_id", expenseID, "actor_id", actor.ID)
	return nil
}

// List returns company-scoped expenses; employees only see their own.
func (s *expenseServiceImpl) List(ctx context.Context, actor entity.Actor, filter ListFilter) ([]*entity.Expense, error) {
	f := port.ExpenseFilter{
		CompanyID:  actor.CompanyID,
		EmployeeID: filter.EmployeeID,
		Status:     filter.Status,
		Category:   filter.Category,
		DateFrom:   filter.DateFrom,
		DateTo:     filter.DateTo,
	}
	if actor.Role == entity.RoleEmployee {
		f.EmployeeID = actor.ID
	}
	return s.expenseRepo.List(ctx, f)
}

// ListPendingFor returns the expenses waiting on the actor: level 1 for the
// manager's own reports, level 2 for admins, the employee's own submissions
// otherwise.
func (s *expenseServiceImpl) ListPendingFor(ctx context.Context, actor entity.Actor) ([]*entity.Expense, error) {
	f := port.ExpenseFilter{
		CompanyID: actor.CompanyID,
		Status:    entity.StatusWaitingApproval,
	}

	switch actor.Role {
	case entity.RoleManager:
		f.ManagerID = actor.ID
		f.Level = 1
	case entity.RoleAdmin:
		f.Level = 2
	default:
		f.EmployeeID = actor.ID
	}

	return s.expenseRepo.List(ctx, f)
}

// ListApproved returns approved expenses plus their total, normalized to the
// company base currency when rates are available.
func (s *expenseServiceImpl) ListApproved(ctx context.Context, actor entity.Actor, filter ListFilter) (*ApprovedSummary, error) {
	filter.Status = entity.StatusApproved
	expenses, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	company, err := s.companyRepo.GetByID(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}

	total, normalized := s.sumInBaseCurrency(ctx, expenses, company.Currency)
	return &ApprovedSummary{
		Expenses:   expenses,
		Total:      total,
		Currency:   company.Currency,
		Normalized: normalized,
	}, nil
}

// ListRejected returns rejected expenses for the company.
func (s *expenseServiceImpl) ListRejected(ctx context.Context, actor entity.Actor, filter ListFilter) ([]*entity.Expense, error) {
	filter.Status = entity.StatusRejected
	return s.List(ctx, actor, filter)
}

// History returns the append-only approval trail of one expense.
func (s *expenseServiceImpl) History(ctx context.Context, actor entity.Actor, expenseID string) ([]entity.ApprovalEntry, error) {
	expense, err := s.fetch(ctx, actor, expenseID)
	if err != nil {
		return nil, err
	}
	if actor.Role == entity.RoleEmployee && expense.EmployeeID != actor.ID {
		return nil, apperr.Unauthorized("not authorized to view expense %s", expenseID)
	}
	return s.historyRepo.ListByExpense(ctx, expenseID)
}

// Statistics aggregates status counts, the approved total and a six-month
// breakdown for the actor's company.
func (s *expenseServiceImpl) Statistics(ctx context.Context, actor entity.Actor) (*Statistics, error) {
	if actor.Role == entity.RoleEmployee {
		return nil, apperr.Unauthorized("statistics are limited to managers and admins")
	}

	counts, err := s.expenseRepo.CountByStatus(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}

	company, err := s.companyRepo.GetByID(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}

	perCurrency, err := s.expenseRepo.SumApproved(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	normalized := true
	asOf := s.now()
	for cur, amount := range perCurrency {
		converted, ok := s.normalizer.Normalize(ctx, amount, cur, company.Currency, asOf)
		if !ok {
			normalized = false
		}
		total = total.Add(converted)
	}

	since := asOf.AddDate(0, -6, 0)
	monthly, err := s.expenseRepo.MonthlyApprovedTotals(ctx, actor.CompanyID, since)
	if err != nil {
		return nil, err
	}

	return &Statistics{
		StatusCounts:        counts,
		TotalApprovedAmount: total,
		Currency:            company.Currency,
		Normalized:          normalized,
		MonthlyBreakdown:    monthly,
	}, nil
}

func (s *expenseServiceImpl) fetch(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, apperr.NotFound("expense %s", expenseID)
	}
	if expense.CompanyID != actor.CompanyID {
		return nil, apperr.Unauthorized("expense %s belongs to another company", expenseID)
	}
	return expense, nil
}

func (s *expenseServiceImpl) sumInBaseCurrency(ctx context.Context, expenses []*entity.Expense, base string) (decimal.Decimal, bool) {
	total := decimal.Zero
	normalized := true
	asOf := s.now()
	for _, e := range expenses {
		converted, ok := s.normalizer.Normalize(ctx, e.Amount, e.Currency, base, asOf)
		if !ok {
			normalized = false
		}
		total = total.Add(converted)
	}
	return total, normalized
}

func (s *expenseServiceImpl) newExpenseID(companyName string) string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return entity.NewExpenseID(companyName, s.now(), s.rng)
}

func validateCreate(input CreateExpenseInput) error {
	if strings.TrimSpace(input.Description) == "" {
		return apperr.Validation("description is required")
	}
	if input.Amount.IsNegative() {
		return apperr.Validation("amount must not be negative")
	}
	if !entity.IsValidCategory(input.Category) {
		return apperr.Validation("unknown category %q", input.Category)
	}
	if input.ExpenseDate.IsZero() {
		return apperr.Validation("expense date is required")
	}
	return nil
}

func validateExpense(expense *entity.Expense) error {
	return validateCreate(CreateExpenseInput{
		Description: expense.Description,
		Amount:      expense.Amount,
		Category:    expense.Category,
		ExpenseDate: expense.ExpenseDate,
	})
}

func applyUpdate(expense *entity.Expense, input UpdateExpenseInput) {
	if input.Description != nil {
		expense.Description = utils.SanitizeString(strings.TrimSpace(*input.Description))
	}
	if input.Amount != nil {
		expense.Amount = *input.Amount
	}
	if input.Currency != nil {
		expense.Currency = strings.ToUpper(strings.TrimSpace(*input.Currency))
	}
	if input.Category != nil {
		expense.Category = *input.Category
	}
	if input.ExpenseDate != nil {
		expense.ExpenseDate = *input.ExpenseDate
	}
	if input.PaidBy != nil {
		expense.PaidBy = *input.PaidBy
	}
	if input.Remarks != nil {
		expense.Remarks = utils.SanitizeString(*input.Remarks)
	}
	if input.Receipt != nil {
		expense.Receipt = input.Receipt
	}
}

func defaultString(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
