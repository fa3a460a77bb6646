package workflow

import (
	"github.com/expenseflow/expenseflow/internal/domain/entity"
)

// RuleOutcome is the result of evaluating the conditional auto-approval
// rules against the approvals recorded so far.
type RuleOutcome struct {
	AutoApprove bool
	// MatchedRule names the rule that fired: "specific_approver" or
	// "percentage". Empty when no rule fired.
	MatchedRule string
}

// EvaluateConditionalRules applies the policy's conditional auto-approval
// rules to the recorded approval history. The specific-approver check runs
// first, then the percentage check; the hybrid toggle enables both.
//
// This is a separate, optional evaluation step. The two-tier transition path
// does not invoke it unless the engine is built with WithConditionalRules.
func EvaluateConditionalRules(policy *entity.ApprovalPolicy, history []entity.ApprovalEntry) RuleOutcome {
	if policy == nil {
		return RuleOutcome{}
	}

	specificEnabled := policy.ConditionalRules.SpecificApproverRule || policy.ConditionalRules.HybridRule
	percentageEnabled := policy.ConditionalRules.PercentageRule || policy.ConditionalRules.HybridRule

	approvedBy := make(map[string]bool)
	for _, entry := range history {
		if entry.Action == entity.ActionApproved {
			approvedBy[entry.ApproverID] = true
		}
	}

	if specificEnabled {
		for _, rule := range policy.ApprovalRules {
			if rule.IsActive && approvedBy[rule.ApproverID] {
				return RuleOutcome{AutoApprove: true, MatchedRule: "specific_approver"}
			}
		}
	}

	if percentageEnabled {
		var required, approved int
		for _, rule := range policy.ApprovalRules {
			if !rule.IsActive || !rule.Required {
				continue
			}
			required++
			if approvedBy[rule.ApproverID] {
				approved++
			}
		}
		if required > 0 && approved*100 >= policy.MinApprovalPercentage*required {
			return RuleOutcome{AutoApprove: true, MatchedRule: "percentage"}
		}
	}

	return RuleOutcome{}
}
