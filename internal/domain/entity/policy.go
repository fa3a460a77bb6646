package entity

import (
	"time"

	"github.com/expenseflow/expenseflow/internal/domain/apperr"
)

// ApprovalPolicy is the per-company approval configuration. Exactly one
// active policy exists per company; updates replace it (upsert), no history.
type ApprovalPolicy struct {
	ID                    string           `json:"id"`
	CompanyID             string           `json:"company_id"`
	IsManagerApprover     bool             `json:"is_manager_approver"`
	ApprovalSequence      bool             `json:"approval_sequence"`
	MinApprovalPercentage int              `json:"min_approval_percentage"`
	ConditionalRules      ConditionalRules `json:"conditional_rules"`
	ApprovalRules         []ApprovalRule   `json:"approval_rules"`
	IsActive              bool             `json:"is_active"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// ConditionalRules toggles the auto-approval rules. The rules are stored and
// round-tripped faithfully; the two-level transition path does not enact them.
type ConditionalRules struct {
	PercentageRule       bool `json:"percentage_rule"`
	SpecificApproverRule bool `json:"specific_approver_rule"`
	HybridRule           bool `json:"hybrid_rule"`
}

// ApprovalRule is one named approval level beyond the manager tier.
type ApprovalRule struct {
	Level        int    `json:"level"`
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name,omitempty"`
	ApproverRole string `json:"approver_role,omitempty"`
	Required     bool   `json:"required"`
	Description  string `json:"description,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// DefaultApprovalPolicy returns the documented default used when a company
// has not configured a policy yet. It is never persisted by a read; only an
// explicit policy update materializes a stored record.
func DefaultApprovalPolicy(companyID string) *ApprovalPolicy {
	return &ApprovalPolicy{
		CompanyID:             companyID,
		IsManagerApprover:     true,
		ApprovalSequence:      true,
		MinApprovalPercentage: 60,
		ConditionalRules: ConditionalRules{
			PercentageRule:       true,
			SpecificApproverRule: false,
			HybridRule:           false,
		},
		ApprovalRules: []ApprovalRule{},
		IsActive:      true,
	}
}

// Validate checks policy invariants before persistence.
func (p *ApprovalPolicy) Validate() error {
	if p.CompanyID == "" {
		return apperr.Validation("policy requires a company id")
	}
	if p.MinApprovalPercentage < 0 || p.MinApprovalPercentage > 100 {
		return apperr.Validation("minimum approval percentage must be between 0 and 100, got %d", p.MinApprovalPercentage)
	}
	for i, rule := range p.ApprovalRules {
		if rule.Level < 1 {
			return apperr.Validation("approval rule %d: level must be >= 1, got %d", i, rule.Level)
		}
		if rule.ApproverID == "" {
			return apperr.Validation("approval rule %d: approver is required", i)
		}
	}
	return nil
}
