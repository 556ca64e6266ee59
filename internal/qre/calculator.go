// Package qre computes qualified research expense totals from accepted
// verdicts and cost lines. All arithmetic is integer cents with half-up
// rounding; there is no I/O and no randomness.
package qre

import (
	"errors"
	"fmt"

	"github.com/yourorg/rdcredit/internal/evidence"
)

// ErrPrecondition rejects a QRE computation for a project whose latest
// verdict is not a qualified outcome.
var ErrPrecondition = errors.New("qre precondition: latest verdict is not qualified")

// ContractResearchBP is the fixed eligibility multiplier for contract
// research, in basis points. It is an invariant of the calculator, not of the
// cost-line data model.
const ContractResearchBP = 6500

const bpScale = 10000

// Config holds the externally supplied allocation table and credit rate.
type Config struct {
	// RoleAllocationBP maps a cost-line role to its includable share in
	// basis points. Roles absent from the table count at 100%.
	RoleAllocationBP map[string]int64
	// CreditRateBP converts total eligible expense into the estimated
	// credit. Default follows the alternative simplified credit rate.
	CreditRateBP int64
}

func DefaultConfig() Config {
	return Config{
		RoleAllocationBP: map[string]int64{},
		CreditRateBP:     1400,
	}
}

// Result is the QRE breakdown for one project.
type Result struct {
	ProjectID            string                         `json:"projectId"`
	TotalEligibleCents   int64                          `json:"totalEligibleCents"`
	PerTypeCents         map[evidence.ExpenseType]int64 `json:"perTypeCents"`
	EstimatedCreditCents int64                          `json:"estimatedCreditCents"`
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	if cfg.CreditRateBP <= 0 {
		cfg.CreditRateBP = DefaultConfig().CreditRateBP
	}
	return &Calculator{cfg: cfg}
}

// Compute derives the eligible expense totals for a project under its latest
// verdict. Only qualified outcomes are computable.
func (c *Calculator) Compute(p evidence.Project, v evidence.Verdict) (Result, error) {
	if v.ProjectID != p.ID {
		return Result{}, fmt.Errorf("verdict belongs to project %q, not %q", v.ProjectID, p.ID)
	}
	if !v.Outcome.Qualified() {
		return Result{}, fmt.Errorf("%w: outcome %s", ErrPrecondition, v.Outcome)
	}

	perType := map[evidence.ExpenseType]int64{}
	var total int64
	for _, line := range p.CostLines {
		eligible := applyBP(line.AmountCents, c.roleBP(line.Role))
		if line.Type == evidence.ContractResearch {
			eligible = applyBP(eligible, ContractResearchBP)
		}
		perType[line.Type] += eligible
		total += eligible
	}

	return Result{
		ProjectID:            p.ID,
		TotalEligibleCents:   total,
		PerTypeCents:         perType,
		EstimatedCreditCents: applyBP(total, c.cfg.CreditRateBP),
	}, nil
}

func (c *Calculator) roleBP(role string) int64 {
	if bp, ok := c.cfg.RoleAllocationBP[role]; ok {
		return bp
	}
	return bpScale
}

// applyBP multiplies an amount by a basis-point share, rounding half-up at
// the cent.
func applyBP(cents, bp int64) int64 {
	return (cents*bp + bpScale/2) / bpScale
}
