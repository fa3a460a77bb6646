package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/domain/apperr"
	"github.com/expenseflow/expenseflow/internal/domain/entity"
	domainwf "github.com/expenseflow/expenseflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of Engine.
type engineImpl struct {
	expenseRepo port.ExpenseRepository
	historyRepo port.HistoryRepository
	policyRepo  port.PolicyRepository
	userRepo    port.UserRepository
	directory   port.Directory
	txManager   port.TransactionManager
	logger      Logger

	// Per-expense mutexes serialize in-process writes. The expense snapshot is
	// always read before the lock is taken, so a racer that serialized second
	// still carries the stale (status, level) pair and fails the conditional
	// UPDATE with ErrConflict instead of re-reading the winner's state.
	locks sync.Map

	evaluateRules bool
	now           func() time.Time
}

// EngineOption configures the workflow engine.
type EngineOption func(*engineImpl)

// WithConditionalRules enables the optional auto-approval evaluation step
// after each non-final approval. Off by default: the stored rules are
// configuration only and the two-tier path ignores them.
func WithConditionalRules() EngineOption {
	return func(e *engineImpl) {
		e.evaluateRules = true
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new approval workflow engine.
func NewEngine(
	expenseRepo port.ExpenseRepository,
	historyRepo port.HistoryRepository,
	policyRepo port.PolicyRepository,
	userRepo port.UserRepository,
	directory port.Directory,
	txManager port.TransactionManager,
	logger Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		expenseRepo: expenseRepo,
		historyRepo: historyRepo,
		policyRepo:  policyRepo,
		userRepo:    userRepo,
		directory:   directory,
		txManager:   txManager,
		logger:      logger,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Submit moves a draft into the approval flow at level 1.
func (e *engineImpl) Submit(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error) {
	expense, err := e.fetch(ctx, actor, expenseID)
	if err != nil {
		return nil, err
	}

	if expense.EmployeeID != actor.ID {
		return nil, apperr.Unauthorized("only the owning employee can submit expense %s", expenseID)
	}

	unlock := e.lock(expenseID)
	defer unlock()

	machine, err := e.machineFor(expense)
	if err != nil {
		return nil, err
	}
	if err := machine.Fire(ctx, domainwf.TriggerSubmit); err != nil {
		return nil, apperr.InvalidState("only draft expenses can be submitted (current status: %s)", expense.Status)
	}

	toStatus := machine.State().String()
	if err := e.expenseRepo.UpdateWorkflow(ctx, expenseID, expense.Status, expense.CurrentApprovalLevel, toStatus, 1); err != nil {
		return nil, err
	}

	e.logger.Info("Expense submitted", "expense_id", expenseID, "employee_id", actor.ID)

	expense.Status = toStatus
	expense.CurrentApprovalLevel = 1
	return expense, nil
}

// Approve records an approval at the current level and advances the workflow.
func (e *engineImpl) Approve(ctx context.Context, actor entity.Actor, expenseID, comment string) (*entity.Expense, error) {
	expense, err := e.fetch(ctx, actor, expenseID)
	if err != nil {
		return nil, err
	}
	if err := e.authorizeReviewer(ctx, actor, expense); err != nil {
		return nil, err
	}

	unlock := e.lock(expenseID)
	defer unlock()

	levelBefore := expense.CurrentApprovalLevel
	toStatus, toLevel := nextOnApprove(levelBefore, actor.Role)

	machine, err := e.machineFor(expense)
	if err != nil {
		return nil, err
	}
	fireCtx := withAdvance(ctx, toStatus == entity.StatusWaitingApproval)
	if err := machine.Fire(fireCtx, domainwf.TriggerApprove); err != nil {
		return nil, apperr.InvalidState("expense %s is not pending approval (current status: %s)", expenseID, expense.Status)
	}

	finalStatus := toStatus
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.expenseRepo.UpdateWorkflow(txCtx, expenseID, expense.Status, levelBefore, toStatus, toLevel); err != nil {
			return err
		}

		entry := &entity.ApprovalEntry{
			ExpenseID:    expenseID,
			ApproverID:   actor.ID,
			ApproverName: e.approverName(txCtx, actor.ID),
			Action:       entity.ActionApproved,
			Comment:      comment,
			Level:        levelBefore,
			Timestamp:    e.now(),
		}
		if err := e.historyRepo.Append(txCtx, entry); err != nil {
			return err
		}

		// Optional conditional-rule step; finalizes early when a rule fires.
		if e.evaluateRules && toStatus == entity.StatusWaitingApproval {
			status, err := e.applyConditionalRules(txCtx, expense, toLevel)
			if err != nil {
				return err
			}
			if status != "" {
				finalStatus = status
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Expense approval recorded",
		"expense_id", expenseID,
		"approver_id", actor.ID,
		"level", levelBefore,
		"status", finalStatus)

	expense.Status = finalStatus
	expense.CurrentApprovalLevel = toLevel
	return expense, nil
}

// Reject terminates the workflow. The comment is mandatory.
func (e *engineImpl) Reject(ctx context.Context, actor entity.Actor, expenseID, comment string) (*entity.Expense, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, apperr.Validation("a comment is required when rejecting an expense")
	}

	expense, err := e.fetch(ctx, actor, expenseID)
	if err != nil {
		return nil, err
	}
	if err := e.authorizeReviewer(ctx, actor, expense); err != nil {
		return nil, err
	}

	unlock := e.lock(expenseID)
	defer unlock()

	machine, err := e.machineFor(expense)
	if err != nil {
		return nil, err
	}
	if err := machine.Fire(ctx, domainwf.TriggerReject); err != nil {
		return nil, apperr.InvalidState("expense %s is not pending approval (current status: %s)", expenseID, expense.Status)
	}

	levelBefore := expense.CurrentApprovalLevel
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.expenseRepo.UpdateWorkflow(txCtx, expenseID, expense.Status, levelBefore, entity.StatusRejected, levelBefore); err != nil {
			return err
		}

		entry := &entity.ApprovalEntry{
			ExpenseID:    expenseID,
			ApproverID:   actor.ID,
			ApproverName: e.approverName(txCtx, actor.ID),
			Action:       entity.ActionRejected,
			Comment:      comment,
			Level:        levelBefore,
			Timestamp:    e.now(),
		}
		return e.historyRepo.Append(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Expense rejected",
		"expense_id", expenseID,
		"approver_id", actor.ID,
		"level", levelBefore)

	expense.Status = entity.StatusRejected
	return expense, nil
}

// nextOnApprove is the two-tier transition table: manager at level 1 hands
// over to the admin at level 2; an admin approval is always final.
func nextOnApprove(level int, role entity.Role) (string, int) {
	switch {
	case level == 1 && role == entity.RoleManager:
		return entity.StatusWaitingApproval, 2
	case level == 2 && role == entity.RoleAdmin:
		return entity.StatusApproved, level
	case level == 1 && role == entity.RoleAdmin:
		// Admin may bypass the manager tier.
		return entity.StatusApproved, level
	default:
		// Deliberate permissive default for unanticipated level/role pairs:
		// treat the action as final approval rather than stalling the workflow.
		return entity.StatusApproved, level
	}
}

// fetch loads the expense and enforces tenant isolation.
func (e *engineImpl) fetch(ctx context.Context, actor entity.Actor, expenseID string) (*entity.Expense, error) {
	expense, err := e.expenseRepo.GetByID(ctx, expenseID)
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

// authorizeReviewer checks the reviewer rules: admins always pass, managers
// must be the employee's resolved direct manager, employees never review.
// A directory failure fails closed.
func (e *engineImpl) authorizeReviewer(ctx context.Context, actor entity.Actor, expense *entity.Expense) error {
	switch actor.Role {
	case entity.RoleAdmin:
		return nil
	case entity.RoleManager:
		managerID, err := e.directory.ResolveManager(ctx, expense.EmployeeID)
		if err != nil {
			e.logger.Error("Directory lookup failed, denying action", "expense_id", expense.ExpenseID, "error", err)
			return apperr.Unauthorized("cannot verify manager relationship for expense %s", expense.ExpenseID)
		}
		if managerID == "" || managerID != actor.ID {
			return apperr.Unauthorized("you are not the manager of this expense's employee")
		}
		return nil
	default:
		return apperr.Unauthorized("employees cannot review expenses")
	}
}

func (e *engineImpl) machineFor(expense *entity.Expense) (domainwf.StateMachine, error) {
	state := domainwf.State(expense.Status)
	if !state.IsValid() {
		return nil, apperr.InvalidState("expense %s has unknown status %q", expense.ExpenseID, expense.Status)
	}
	return BuildExpenseStateMachine(state), nil
}

// applyConditionalRules runs the optional auto-approval evaluation after a
// non-final approval. Returns the new status when a rule finalized the
// expense, "" otherwise.
func (e *engineImpl) applyConditionalRules(ctx context.Context, expense *entity.Expense, level int) (string, error) {
	policy, err := e.policyRepo.GetActive(ctx, expense.CompanyID)
	if err != nil {
		return "", err
	}
	if policy == nil {
		policy = entity.DefaultApprovalPolicy(expense.CompanyID)
	}

	history, err := e.historyRepo.ListByExpense(ctx, expense.ExpenseID)
	if err != nil {
		return "", err
	}

	outcome := EvaluateConditionalRules(policy, history)
	if !outcome.AutoApprove {
		return "", nil
	}

	if err := e.expenseRepo.UpdateWorkflow(ctx, expense.ExpenseID, entity.StatusWaitingApproval, level, entity.StatusApproved, level); err != nil {
		return "", err
	}

	e.logger.Info("Conditional rule auto-approved expense",
		"expense_id", expense.ExpenseID,
		"rule", outcome.MatchedRule)
	return entity.StatusApproved, nil
}

func (e *engineImpl) approverName(ctx context.Context, userID string) string {
	user, err := e.userRepo.GetByID(ctx, userID)
	if err != nil || user == nil {
		return ""
	}
	return user.Name
}

func (e *engineImpl) lock(expenseID string) func() {
	v, _ := e.locks.LoadOrStore(expenseID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
