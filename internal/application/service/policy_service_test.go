package service

import (
	"context"
	"errors"
	"testing"

	"github.com/expenseflow/expenseflow/internal/domain/apperr"
	"github.com/expenseflow/expenseflow/internal/domain/entity"
)

type mockPolicyRepo struct {
	getActiveFunc func(ctx context.Context, companyID string) (*entity.ApprovalPolicy, error)
	upsertFunc    func(ctx context.Context, policy *entity.ApprovalPolicy) error

	upserted *entity.ApprovalPolicy
}

func (m *mockPolicyRepo) GetActive(ctx context.Context, companyID string) (*entity.ApprovalPolicy, error) {
	if m.getActiveFunc != nil {
		return m.getActiveFunc(ctx, companyID)
	}
	return nil, nil
}

func (m *mockPolicyRepo) Upsert(ctx context.Context, policy *entity.ApprovalPolicy) error {
	m.upserted = policy
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, policy)
	}
	return nil
}

func TestPolicyService_Get_AdminOnly(t *testing.T) {
	svc := NewPolicyService(&mockPolicyRepo{}, &mockLogger{})

	for _, actor := range []entity.Actor{employee, manager} {
		if _, err := svc.Get(context.Background(), actor); !errors.Is(err, apperr.ErrUnauthorized) {
			t.Errorf("Get() as %s error = %v, want ErrUnauthorized", actor.Role, err)
		}
	}
}

func TestPolicyService_Get_DefaultNotPersisted(t *testing.T) {
	repo := &mockPolicyRepo{}
	svc := NewPolicyService(repo, &mockLogger{})

	policy, err := svc.Get(context.Background(), admin)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if policy.MinApprovalPercentage != 60 {
		t.Errorf("MinApprovalPercentage = %d, want default 60", policy.MinApprovalPercentage)
	}
	if !policy.IsManagerApprover || !policy.ApprovalSequence {
		t.Error("default policy should enable manager approval and sequencing")
	}
	if !policy.ConditionalRules.PercentageRule || policy.ConditionalRules.SpecificApproverRule {
		t.Errorf("ConditionalRules = %+v, want percentage rule only", policy.ConditionalRules)
	}
	if len(policy.ApprovalRules) != 0 {
		t.Errorf("ApprovalRules = %v, want empty", policy.ApprovalRules)
	}

	if repo.upserted != nil {
		t.Error("reading the default policy must not persist it")
	}
}

func TestPolicyService_Get_Stored(t *testing.T) {
	stored := &entity.ApprovalPolicy{CompanyID: "c-1", MinApprovalPercentage: 80, IsActive: true}
	repo := &mockPolicyRepo{
		getActiveFunc: func(ctx context.Context, companyID string) (*entity.ApprovalPolicy, error) {
			return stored, nil
		},
	}
	svc := NewPolicyService(repo, &mockLogger{})

	policy, err := svc.Get(context.Background(), admin)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if policy != stored {
		t.Error("Get() should return the stored policy unchanged")
	}
}

func TestPolicyService_Set(t *testing.T) {
	repo := &mockPolicyRepo{}
	svc := NewPolicyService(repo, &mockLogger{})

	pct := 75
	seq := false
	policy, err := svc.Set(context.Background(), admin, PolicyInput{
		MinApprovalPercentage: &pct,
		ApprovalSequence:      &seq,
		ApprovalRules: []entity.ApprovalRule{
			{Level: 1, ApproverID: "cfo", Required: true, IsActive: true},
		},
	})
	if err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if policy.MinApprovalPercentage != 75 {
		t.Errorf("MinApprovalPercentage = %d, want 75", policy.MinApprovalPercentage)
	}
	if policy.ApprovalSequence {
		t.Error("ApprovalSequence should be overridden to false")
	}
	if !policy.IsManagerApprover {
		t.Error("IsManagerApprover should default to true when absent")
	}
	if policy.CompanyID != admin.CompanyID {
		t.Errorf("CompanyID = %v, want %v", policy.CompanyID, admin.CompanyID)
	}
	if repo.upserted == nil {
		t.Fatal("Set() should persist the policy")
	}
}

func TestPolicyService_Set_LevelsAlias(t *testing.T) {
	repo := &mockPolicyRepo{}
	svc := NewPolicyService(repo, &mockLogger{})

	policy, err := svc.Set(context.Background(), admin, PolicyInput{
		Levels: []entity.ApprovalRule{
			{Level: 1, ApproverID: "cfo", Required: true, IsActive: true},
		},
	})
	if err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if len(policy.ApprovalRules) != 1 || policy.ApprovalRules[0].ApproverID != "cfo" {
		t.Errorf("ApprovalRules = %+v, want the legacy levels content", policy.ApprovalRules)
	}
}

func TestPolicyService_Set_ApprovalRulesWinOverLevels(t *testing.T) {
	svc := NewPolicyService(&mockPolicyRepo{}, &mockLogger{})

	policy, err := svc.Set(context.Background(), admin, PolicyInput{
		ApprovalRules: []entity.ApprovalRule{{Level: 1, ApproverID: "new", IsActive: true}},
		Levels:        []entity.ApprovalRule{{Level: 1, ApproverID: "legacy", IsActive: true}},
	})
	if err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if policy.ApprovalRules[0].ApproverID != "new" {
		t.Errorf("ApproverID = %v, want the approval_rules content to win", policy.ApprovalRules[0].ApproverID)
	}
}

func TestPolicyService_Set_Validation(t *testing.T) {
	svc := NewPolicyService(&mockPolicyRepo{}, &mockLogger{})

	tests := []struct {
		name  string
		input PolicyInput
	}{
		{"percentage above 100", PolicyInput{MinApprovalPercentage: intPtr(101)}},
		{"negative percentage", PolicyInput{MinApprovalPercentage: intPtr(-1)}},
		{"rule without approver", PolicyInput{ApprovalRules: []entity.ApprovalRule{{Level: 1}}}},
		{"rule with zero level", PolicyInput{ApprovalRules: []entity.ApprovalRule{{Level: 0, ApproverID: "x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Set(context.Background(), admin, tt.input)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Set() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestPolicyService_Set_BoundaryPercentages(t *testing.T) {
	svc := NewPolicyService(&mockPolicyRepo{}, &mockLogger{})

	for _, pct := range []int{0, 100} {
		input := PolicyInput{MinApprovalPercentage: intPtr(pct)}
		if _, err := svc.Set(context.Background(), admin, input); err != nil {
			t.Errorf("Set(%d%%) failed: %v", pct, err)
		}
	}
}

func TestPolicyService_Set_AdminOnly(t *testing.T) {
	svc := NewPolicyService(&mockPolicyRepo{}, &mockLogger{})

	_, err := svc.Set(context.Background(), manager, PolicyInput{})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Set() error = %v, want ErrUnauthorized", err)
	}
}

func intPtr(v int) *int { return &v }
