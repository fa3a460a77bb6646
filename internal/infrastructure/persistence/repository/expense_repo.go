package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/domain/apperr"
	"github.com/expenseflow/expenseflow/internal/domain/entity"
	"github.com/expenseflow/expenseflow/internal/infrastructure/persistence/sqlite"
)

const expenseColumns = `
	id, expense_id, employee_id, company_id, description, amount, currency,
	category, expense_date, paid_by, remarks,
	receipt_filename, receipt_path, receipt_mimetype, receipt_size,
	ocr_data, status, current_approval_level, created_at, updated_at`

// ExpenseRepository implements port.ExpenseRepository on SQLite.
// Amounts are stored as decimal strings to avoid float drift.
type ExpenseRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sqlite.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new expense. A duplicate expense_id surfaces as
// apperr.ErrConflict so the caller can regenerate the id and retry.
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	query := `
		INSERT INTO expenses (
			id, expense_id, employee_id, company_id, description, amount,
			currency, category, expense_date, paid_by, remarks,
			receipt_filename, receipt_path, receipt_mimetype, receipt_size,
			ocr_data, status, current_approval_level
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var rf, rp, rm sql.NullString
	var rs sql.NullInt64
	if expense.Receipt != nil {
		rf = sql.NullString{String: expense.Receipt.Filename, Valid: true}
		rp = sql.NullString{String: expense.Receipt.Path, Valid: true}
		rm = sql.NullString{String: expense.Receipt.MimeType, Valid: true}
		rs = sql.NullInt64{Int64: expense.Receipt.Size, Valid: true}
	}

	ocr, err := marshalOCR(expense.OCRData)
	if err != nil {
		return err
	}

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		expense.ID,
		expense.ExpenseID,
		expense.EmployeeID,
		expense.CompanyID,
		expense.Description,
		expense.Amount.String(),
		expense.Currency,
		expense.Category,
		expense.ExpenseDate,
		expense.PaidBy,
		expense.Remarks,
		rf, rp, rm, rs,
		ocr,
		expense.Status,
		expense.CurrentApprovalLevel,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("expense id %s already exists", expense.ExpenseID)
		}
		r.logger.Error("Failed to create expense", zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}

	return nil
}

// GetByID retrieves an expense by its human-readable identifier.
func (r *ExpenseRepository) GetByID(ctx context.Context, expenseID string) (*entity.Expense, error) {
	query := `SELECT` + expenseColumns + ` FROM expenses WHERE expense_id = ?`

	expense, err := scanExpense(r.db.Executor(ctx).QueryRowContext(ctx, query, expenseID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return expense, nil
}

// UpdateDraft persists the editable fields of a non-terminal expense.
func (r *ExpenseRepository) UpdateDraft(ctx context.Context, expense *entity.Expense) error {
	query := `
		UPDATE expenses
		SET description = ?, amount = ?, currency = ?, category = ?,
			expense_date = ?, paid_by = ?, remarks = ?,
			receipt_filename = ?, receipt_path = ?, receipt_mimetype = ?, receipt_size = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE expense_id = ?
	`

	var rf, rp, rm sql.NullString
	var rs sql.NullInt64
	if expense.Receipt != nil {
		rf = sql.NullString{String: expense.Receipt.Filename, Valid: true}
		rp = sql.NullString{String: expense.Receipt.Path, Valid: true}
		rm = sql.NullString{String: expense.Receipt.MimeType, Valid: true}
		rs = sql.NullInt64{Int64: expense.Receipt.Size, Valid: true}
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		expense.Description,
		expense.Amount.String(),
		expense.Currency,
		expense.Category,
		expense.ExpenseDate,
		expense.PaidBy,
		expense.Remarks,
		rf, rp, rm, rs,
		expense.ExpenseID,
	)
	if err != nil {
		r.logger.Error("Failed to update expense", zap.String("expense_id", expense.ExpenseID), zap.Error(err))
		return fmt.Errorf("failed to update expense: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("expense %s", expense.ExpenseID)
	}

	return nil
}

// UpdateWorkflow conditionally advances status and level. The WHERE clause
// re-checks the values read so a racing transition loses with ErrConflict
// instead of silently double-advancing.
func (r *ExpenseRepository) UpdateWorkflow(ctx context.Context, expenseID, fromStatus string, fromLevel int, toStatus string, toLevel int) error {
	query := `
		UPDATE expenses
		SET status = ?, current_approval_level = ?, updated_at = CURRENT_TIMESTAMP
		WHERE expense_id = ? AND status = ? AND current_approval_level = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		toStatus, toLevel, expenseID, fromStatus, fromLevel,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow state", zap.String("expense_id", expenseID), zap.Error(err))
		return fmt.Errorf("failed to update workflow state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.Conflict("expense %s changed concurrently", expenseID)
	}

	return nil
}

// Delete removes an expense record. History rows cascade via foreign key.
func (r *ExpenseRepository) Delete(ctx context.Context, expenseID string) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM expenses WHERE expense_id = ?`, expenseID)
	if err != nil {
		r.logger.Error("Failed to delete expense", zap.String("expense_id", expenseID), zap.Error(err))
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("expense %s", expenseID)
	}

	return nil
}

// List retrieves expenses matching the filter, newest first.
func (r *ExpenseRepository) List(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	query := `SELECT` + expenseColumns + ` FROM expenses WHERE company_id = ?`
	args := []interface{}{filter.CompanyID}

	if filter.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, filter.EmployeeID)
	}
	if filter.ManagerID != "" {
		query += ` AND employee_id IN (SELECT id FROM users WHERE manager_id = ? AND company_id = ?)`
		args = append(args, filter.ManagerID, filter.CompanyID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Level > 0 {
		query += ` AND current_approval_level = ?`
		args = append(args, filter.Level)
	}
	if filter.DateFrom != nil {
		query += ` AND expense_date >= ?`
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query += ` AND expense_date <= ?`
		args = append(args, *filter.DateTo)
	}

	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}

	return expenses, rows.Err()
}

// CountByStatus aggregates expense counts per status for a company.
func (r *ExpenseRepository) CountByStatus(ctx context.Context, companyID string) (*port.StatusCounts, error) {
	query := `
		SELECT
			COUNT(CASE WHEN status = 'Draft' THEN 1 END),
			COUNT(CASE WHEN status = 'Waiting Approval' THEN 1 END),
			COUNT(CASE WHEN status = 'Partially Approved' THEN 1 END),
			COUNT(CASE WHEN status = 'Approved' THEN 1 END),
			COUNT(CASE WHEN status = 'Rejected' THEN 1 END)
		FROM expenses
		WHERE company_id = ?
	`

	var counts port.StatusCounts
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, companyID).Scan(
		&counts.Draft, &counts.Pending, &counts.PartiallyApproved, &counts.Approved, &counts.Rejected,
	)
	if err != nil {
		r.logger.Error("Failed to count expenses", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to count expenses: %w", err)
	}

	counts.Total = counts.Draft + counts.Pending + counts.PartiallyApproved + counts.Approved + counts.Rejected
	return &counts, nil
}

// SumApproved totals approved amounts per currency. The decimal addition
// happens in Go; SQLite would coerce the stored strings to floats.
func (r *ExpenseRepository) SumApproved(ctx context.Context, companyID string) (map[string]decimal.Decimal, error) {
	query := `SELECT currency, amount FROM expenses WHERE company_id = ? AND status = 'Approved'`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to sum approved expenses", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to sum approved expenses: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var cur, raw string
		if err := rows.Scan(&cur, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", raw, err)
		}
		totals[cur] = totals[cur].Add(amount)
	}

	return totals, rows.Err()
}

// MonthlyApprovedTotals aggregates approved expenses per calendar month.
func (r *ExpenseRepository) MonthlyApprovedTotals(ctx context.Context, companyID string, since time.Time) ([]port.MonthlyTotal, error) {
	query := `
		SELECT expense_date, amount FROM expenses
		WHERE company_id = ? AND status = 'Approved' AND expense_date >= ?
		ORDER BY expense_date
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, companyID, since)
	if err != nil {
		r.logger.Error("Failed to aggregate monthly totals", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate monthly totals: %w", err)
	}
	defer rows.Close()

	type ym struct{ year, month int }
	sums := make(map[ym]*port.MonthlyTotal)
	var order []ym

	for rows.Next() {
		var date time.Time
		var raw string
		if err := rows.Scan(&date, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan monthly row: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", raw, err)
		}

		key := ym{year: date.Year(), month: int(date.Month())}
		total, ok := sums[key]
		if !ok {
			total = &port.MonthlyTotal{Year: key.year, Month: key.month}
			sums[key] = total
			order = append(order, key)
		}
		total.Count++
		total.Amount = total.Amount.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]port.MonthlyTotal, 0, len(order))
	for _, key := range order {
		result = append(result, *sums[key])
	}
	return result, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(row scanner) (*entity.Expense, error) {
	var expense entity.Expense
	var raw string
	var remarks, rf, rp, rm, ocr sql.NullString
	var rs sql.NullInt64

	err := row.Scan(
		&expense.ID,
		&expense.ExpenseID,
		&expense.EmployeeID,
		&expense.CompanyID,
		&expense.Description,
		&raw,
		&expense.Currency,
		&expense.Category,
		&expense.ExpenseDate,
		&expense.PaidBy,
		&remarks,
		&rf, &rp, &rm, &rs,
		&ocr,
		&expense.Status,
		&expense.CurrentApprovalLevel,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	expense.Amount, err = decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", raw, err)
	}
	expense.Remarks = remarks.String

	if rf.Valid {
		expense.Receipt = &entity.Receipt{
			Filename: rf.String,
			Path:     rp.String,
			MimeType: rm.String,
			Size:     rs.Int64,
		}
	}

	if ocr.Valid && ocr.String != "" {
		var data entity.OCRData
		if err := json.Unmarshal([]byte(ocr.String), &data); err != nil {
			return nil, fmt.Errorf("invalid stored ocr data: %w", err)
		}
		expense.OCRData = &data
	}

	return &expense, nil
}

func marshalOCR(data *entity.OCRData) (sql.NullString, error) {
	if data == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal ocr data: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// Verify interface compliance
var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
