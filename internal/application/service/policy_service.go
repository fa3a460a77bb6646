package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/domain/apperr"
	"github.com/expenseflow/expenseflow/internal/domain/entity"
)

// PolicyInput carries a policy update. Absent fields fall back to the
// documented defaults. Levels is a legacy alias for ApprovalRules kept for
// input compatibility; ApprovalRules wins when both are present.
type PolicyInput struct {
	IsManagerApprover     *bool
	ApprovalSequence      *bool
	MinApprovalPercentage *int
	ConditionalRules      *entity.ConditionalRules
	ApprovalRules         []entity.ApprovalRule
	Levels                []entity.ApprovalRule
}

// PolicyService manages the per-company approval policy.
type PolicyService interface {
	// Get returns the company's active policy, or the documented default
	// when none is stored. The default is never persisted by a read.
	Get(ctx context.Context, actor entity.Actor) (*entity.ApprovalPolicy, error)

	// Set validates and atomically replaces the company's policy (upsert).
	Set(ctx context.Context, actor entity.Actor, input PolicyInput) (*entity.ApprovalPolicy, error)
}

type policyServiceImpl struct {
	policyRepo port.PolicyRepository
	logger     Logger
}

// NewPolicyService creates a new PolicyService.
func NewPolicyService(policyRepo port.PolicyRepository, logger Logger) PolicyService {
	return &policyServiceImpl{
		policyRepo: policyRepo,
		logger:     logger,
	}
}

func (s *policyServiceImpl) Get(ctx context.Context, actor entity.Actor) (*entity.ApprovalPolicy, error) {
	if actor.Role != entity.RoleAdmin {
		return nil, apperr.Unauthorized("only admins can read the approval policy")
	}

	policy, err := s.policyRepo.GetActive(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return entity.DefaultApprovalPolicy(actor.CompanyID), nil
	}
	return policy, nil
}

func (s *policyServiceImpl) Set(ctx context.Context, actor entity.Actor, input PolicyInput) (*entity.ApprovalPolicy, error) {
	if actor.Role != entity.RoleAdmin {
		return nil, apperr.Unauthorized("only admins can update the approval policy")
	}

	rules := input.ApprovalRules
	if rules == nil {
		rules = input.Levels
	}
	if rules == nil {
		rules = []entity.ApprovalRule{}
	}

	policy := &entity.ApprovalPolicy{
		ID:                    uuid.NewString(),
		CompanyID:             actor.CompanyID,
		IsManagerApprover:     true,
		ApprovalSequence:      true,
		MinApprovalPercentage: 60,
		ApprovalRules:         rules,
		IsActive:              true,
	}
	if input.IsManagerApprover != nil {
		policy.IsManagerApprover = *input.IsManagerApprover
	}
	if input.ApprovalSequence != nil {
		policy.ApprovalSequence = *input.ApprovalSequence
	}
	if input.MinApprovalPercentage != nil {
		policy.MinApprovalPercentage = *input.MinApprovalPercentage
	}
	if input.ConditionalRules != nil {
		policy.ConditionalRules = *input.ConditionalRules
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	if err := s.policyRepo.Upsert(ctx, policy); err != nil {
		s.logger.Error("Failed to upsert approval policy", "error", err, "company_id", actor.CompanyID)
		return nil, err
	}

	s.logger.Info("Approval policy updated", "company_id", actor.CompanyID, "rules", len(policy.ApprovalRules))
	return policy, nil
}
