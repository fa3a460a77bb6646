package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/domain/entity"
	"github.com/expenseflow/expenseflow/internal/infrastructure/persistence/sqlite"
)

// PolicyRepository implements port.PolicyRepository on SQLite. The approval
// rules list is stored as a JSON column; one active policy row per company.
type PolicyRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *sqlite.DB, logger *zap.Logger) port.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// GetActive returns the company's active policy, nil when none is stored.
func (r *PolicyRepository) GetActive(ctx context.Context, companyID string) (*entity.ApprovalPolicy, error) {
	query := `
		SELECT id, company_id, is_manager_approver, approval_sequence,
			min_approval_percentage, percentage_rule, specific_approver_rule,
			hybrid_rule, approval_rules, is_active, created_at, updated_at
		FROM approval_policies
		WHERE company_id = ? AND is_active = 1
	`

	var policy entity.ApprovalPolicy
	var rulesJSON sql.NullString

	err := r.db.Executor(ctx).QueryRowContext(ctx, query, companyID).Scan(
		&policy.ID,
		&policy.CompanyID,
		&policy.IsManagerApprover,
		&policy.ApprovalSequence,
		&policy.MinApprovalPercentage,
		&policy.ConditionalRules.PercentageRule,
		&policy.ConditionalRules.SpecificApproverRule,
		&policy.ConditionalRules.HybridRule,
		&rulesJSON,
		&policy.IsActive,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval policy", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval policy: %w", err)
	}

	policy.ApprovalRules = []entity.ApprovalRule{}
	if rulesJSON.Valid && rulesJSON.String != "" {
		if err := json.Unmarshal([]byte(rulesJSON.String), &policy.ApprovalRules); err != nil {
			return nil, fmt.Errorf("invalid stored approval rules: %w", err)
		}
	}

	return &policy, nil
}

// Upsert atomically replaces the company's policy.
func (r *PolicyRepository) Upsert(ctx context.Context, policy *entity.ApprovalPolicy) error {
	rules, err := json.Marshal(policy.ApprovalRules)
	if err != nil {
		return fmt.Errorf("failed to marshal approval rules: %w", err)
	}

	query := `
		INSERT INTO approval_policies (
			id, company_id, is_manager_approver, approval_sequence,
			min_approval_percentage, percentage_rule, specific_approver_rule,
			hybrid_rule, approval_rules, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			is_manager_approver = excluded.is_manager_approver,
			approval_sequence = excluded.approval_sequence,
			min_approval_percentage = excluded.min_approval_percentage,
			percentage_rule = excluded.percentage_rule,
			specific_approver_rule = excluded.specific_approver_rule,
			hybrid_rule = excluded.hybrid_rule,
			approval_rules = excluded.approval_rules,
			is_active = excluded.is_active,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		policy.ID,
		policy.CompanyID,
		policy.IsManagerApprover,
		policy.ApprovalSequence,
		policy.MinApprovalPercentage,
		policy.ConditionalRules.PercentageRule,
		policy.ConditionalRules.SpecificApproverRule,
		policy.ConditionalRules.HybridRule,
		string(rules),
		policy.IsActive,
	)
	if err != nil {
		r.logger.Error("Failed to upsert approval policy", zap.String("company_id", policy.CompanyID), zap.Error(err))
		return fmt.Errorf("failed to upsert approval policy: %w", err)
	}

	return nil
}

// Verify interface compliance
var _ port.PolicyRepository = (*PolicyRepository)(nil)
