package qre

import (
	"errors"
	"testing"

	"github.com/yourorg/rdcredit/internal/evidence"
)

func qualifiedVerdict(projectID string) evidence.Verdict {
	return evidence.Verdict{ProjectID: projectID, Outcome: evidence.OutcomeQualifiedTier2, Tier: evidence.Tier2}
}

func TestComputeContractResearchMultiplier(t *testing.T) {
	calc := NewCalculator(Config{
		RoleAllocationBP: map[string]int64{"engineer": 8000},
		CreditRateBP:     1400,
	})
	p := evidence.Project{
		ID: "proj-1",
		CostLines: []evidence.CostLine{
			{Role: "engineer", AmountCents: 100_000_00, Type: evidence.Wages},
			{Role: "vendor", AmountCents: 50_000_00, Type: evidence.ContractResearch},
		},
	}

	res, err := calc.Compute(p, qualifiedVerdict("proj-1"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := res.PerTypeCents[evidence.Wages]; got != 80_000_00 {
		t.Fatalf("wages: expected 8000000, got %d", got)
	}
	// 50,000.00 at the fixed 65% contract-research share
	if got := res.PerTypeCents[evidence.ContractResearch]; got != 32_500_00 {
		t.Fatalf("contract research: expected 3250000, got %d", got)
	}
	if res.TotalEligibleCents != 112_500_00 {
		t.Fatalf("total: expected 11250000, got %d", res.TotalEligibleCents)
	}
	if res.EstimatedCreditCents != 15_750_00 {
		t.Fatalf("credit: expected 1575000, got %d", res.EstimatedCreditCents)
	}
}

func TestComputeRoleDefaultsToFullAllocation(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	p := evidence.Project{
		ID:        "proj-2",
		CostLines: []evidence.CostLine{{Role: "scientist", AmountCents: 1234, Type: evidence.Supplies}},
	}
	res, err := calc.Compute(p, qualifiedVerdict("proj-2"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.TotalEligibleCents != 1234 {
		t.Fatalf("expected full allocation, got %d", res.TotalEligibleCents)
	}
}

func TestComputeRejectsUnqualifiedVerdict(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	p := evidence.Project{ID: "proj-3"}
	v := evidence.Verdict{ProjectID: "proj-3", Outcome: evidence.OutcomeDisqualifiedTier2}
	if _, err := calc.Compute(p, v); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestComputeRejectsVerdictProjectMismatch(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	p := evidence.Project{ID: "proj-4"}
	if _, err := calc.Compute(p, qualifiedVerdict("other")); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestApplyBPRoundsHalfUp(t *testing.T) {
	// 1 cent at 65% rounds to 1, not 0
	if got := applyBP(1, ContractResearchBP); got != 1 {
		t.Fatalf("expected half-up rounding to 1, got %d", got)
	}
	if got := applyBP(3, 5000); got != 2 {
		t.Fatalf("1.5 cents should round to 2, got %d", got)
	}
}
