package workflow

import (
	"context"
	"testing"

	domainwf "github.com/expenseflow/expenseflow/internal/domain/workflow"
)

func TestBuildExpenseStateMachine_Submit(t *testing.T) {
	machine := BuildExpenseStateMachine(domainwf.StateDraft)

	if err := machine.Fire(context.Background(), domainwf.TriggerSubmit); err != nil {
		t.Fatalf("Fire(SUBMIT) failed: %v", err)
	}
	if machine.State() != domainwf.StateWaitingApproval {
		t.Errorf("State = %v, want %v", machine.State(), domainwf.StateWaitingApproval)
	}
}

func TestBuildExpenseStateMachine_ApproveAdvances(t *testing.T) {
	machine := BuildExpenseStateMachine(domainwf.StateWaitingApproval)

	ctx := withAdvance(context.Background(), true)
	if err := machine.Fire(ctx, domainwf.TriggerApprove); err != nil {
		t.Fatalf("Fire(APPROVE) failed: %v", err)
	}
	if machine.State() != domainwf.StateWaitingApproval {
		t.Errorf("State = %v, want %v (another level remains)", machine.State(), domainwf.StateWaitingApproval)
	}
}

func TestBuildExpenseStateMachine_ApproveFinalizes(t *testing.T) {
	machine := BuildExpenseStateMachine(domainwf.StateWaitingApproval)

	ctx := withAdvance(context.Background(), false)
	if err := machine.Fire(ctx, domainwf.TriggerApprove); err != nil {
		t.Fatalf("Fire(APPROVE) failed: %v", err)
	}
	if machine.State() != domainwf.StateApproved {
		t.Errorf("State = %v, want %v", machine.State(), domainwf.StateApproved)
	}
}

func TestBuildExpenseStateMachine_Reject(t *testing.T) {
	machine := BuildExpenseStateMachine(domainwf.StateWaitingApproval)

	if err := machine.Fire(context.Background(), domainwf.TriggerReject); err != nil {
		t.Fatalf("Fire(REJECT) failed: %v", err)
	}
	if machine.State() != domainwf.StateRejected {
		t.Errorf("State = %v, want %v", machine.State(), domainwf.StateRejected)
	}
}

func TestBuildExpenseStateMachine_DraftCannotBeDecided(t *testing.T) {
	for _, trigger := range []domainwf.Trigger{domainwf.TriggerApprove, domainwf.TriggerReject} {
		machine := BuildExpenseStateMachine(domainwf.StateDraft)
		if err := machine.Fire(context.Background(), trigger); err == nil {
			t.Errorf("Fire(%v) from Draft should fail", trigger)
		}
	}
}

func TestBuildExpenseStateMachine_TerminalStatesAreFinal(t *testing.T) {
	for _, state := range []domainwf.State{domainwf.StateApproved, domainwf.StateRejected} {
		machine := BuildExpenseStateMachine(state)
		if triggers := machine.PermittedTriggers(); len(triggers) != 0 {
			t.Errorf("state %v permits %v, want no triggers", state, triggers)
		}
	}
}
