package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/domain/entity"
	"github.com/expenseflow/expenseflow/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository on SQLite.
// The table is append-only; there is no update or delete path.
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append records one approval decision.
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.ApprovalEntry) error {
	query := `
		INSERT INTO expense_approval_history (
			expense_id, approver_id, approver_name, action, comment, level, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		entry.ExpenseID,
		entry.ApproverID,
		entry.ApproverName,
		entry.Action,
		entry.Comment,
		entry.Level,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append approval history", zap.String("expense_id", entry.ExpenseID), zap.Error(err))
		return fmt.Errorf("failed to append approval history: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}

	return nil
}

// ListByExpense returns the full decision trail, oldest first.
func (r *HistoryRepository) ListByExpense(ctx context.Context, expenseID string) ([]entity.ApprovalEntry, error) {
	query := `
		SELECT id, expense_id, approver_id, approver_name, action, comment, level, timestamp
		FROM expense_approval_history
		WHERE expense_id = ?
		ORDER BY id
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list approval history", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval history: %w", err)
	}
	defer rows.Close()

	var entries []entity.ApprovalEntry
	for rows.Next() {
		var entry entity.ApprovalEntry
		err := rows.Scan(
			&entry.ID,
			&entry.ExpenseID,
			&entry.ApproverID,
			&entry.ApproverName,
			&entry.Action,
			&entry.Comment,
			&entry.Level,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
