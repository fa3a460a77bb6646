package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/domain/apperr"
	"github.com/expenseflow/expenseflow/internal/domain/entity"
	"github.com/expenseflow/expenseflow/internal/infrastructure/persistence/sqlite"
)

// CompanyRepository implements port.CompanyRepository on SQLite.
type CompanyRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sqlite.DB, logger *zap.Logger) port.CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a company by id.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `
		SELECT id, name, country, currency, currency_symbol, admin_id, is_active, created_at
		FROM companies
		WHERE id = ?
	`

	var company entity.Company
	var adminID sql.NullString

	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&company.ID,
		&company.Name,
		&company.Country,
		&company.Currency,
		&company.CurrencySymbol,
		&adminID,
		&company.IsActive,
		&company.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("company %s", id)
	}
	if err != nil {
		r.logger.Error("Failed to get company", zap.String("company_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	company.AdminID = adminID.String
	return &company, nil
}

// Verify interface compliance
var _ port.CompanyRepository = (*CompanyRepository)(nil)
