// Package evidence defines the typed records a classification run is judged
// on: the project, its cost lines, and the four-part criterion assessments.
package evidence

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Criterion is one of the four qualification criteria evaluated per project.
type Criterion string

const (
	PermittedPurpose         Criterion = "PERMITTED_PURPOSE"
	UncertaintyElimination   Criterion = "UNCERTAINTY_ELIMINATION"
	ProcessOfExperimentation Criterion = "PROCESS_OF_EXPERIMENTATION"
	TechnologicalNature      Criterion = "TECHNOLOGICAL_NATURE"
)

// AllCriteria lists the required criterion slots in canonical order.
var AllCriteria = []Criterion{
	PermittedPurpose,
	UncertaintyElimination,
	ProcessOfExperimentation,
	TechnologicalNature,
}

// AssessmentStatus is the resolution of a single criterion.
type AssessmentStatus string

const (
	Satisfied    AssessmentStatus = "SATISFIED"
	NotSatisfied AssessmentStatus = "NOT_SATISFIED"
	Undetermined AssessmentStatus = "UNDETERMINED"
)

// CriterionAssessment records how one criterion resolved. Confidence is only
// meaningful for assessments produced by the escalation tier; deterministic
// tiers always report 1.0.
type CriterionAssessment struct {
	Criterion  Criterion        `json:"criterion"`
	Status     AssessmentStatus `json:"status"`
	Rationale  string           `json:"rationale,omitempty"`
	Confidence float64          `json:"confidence"`
}

// ExpenseType categorizes a cost line for QRE purposes.
type ExpenseType string

const (
	Wages            ExpenseType = "WAGES"
	Supplies         ExpenseType = "SUPPLIES"
	Cloud            ExpenseType = "CLOUD"
	ContractResearch ExpenseType = "CONTRACT_RESEARCH"
)

// KnownExpenseType reports whether t is a member of the closed set.
func KnownExpenseType(t ExpenseType) bool {
	switch t {
	case Wages, Supplies, Cloud, ContractResearch:
		return true
	}
	return false
}

// CostLine is one expense row attributed to a project. Amounts are integer
// cents to keep the downstream arithmetic exact.
type CostLine struct {
	Role        string      `json:"role"`
	AmountCents int64       `json:"amountCents"`
	Type        ExpenseType `json:"type"`
}

// Project is the evidence record a decision is made about.
type Project struct {
	ID          string                `json:"projectId"`
	Name        string                `json:"projectName"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Department  string                `json:"department,omitempty"`
	StartDate   *openapi_types.Date   `json:"startDate,omitempty"`
	EndDate     *openapi_types.Date   `json:"endDate,omitempty"`
	CostLines   []CostLine            `json:"costLines,omitempty"`
	Assessments []CriterionAssessment `json:"assessments,omitempty"`
}

// Assessment returns the slot for the given criterion, if present.
func (p Project) Assessment(c Criterion) (CriterionAssessment, bool) {
	for _, a := range p.Assessments {
		if a.Criterion == c {
			return a, true
		}
	}
	return CriterionAssessment{}, false
}

// Tier identifies the decision stage that produced a verdict.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

// Outcome is the closed set of routing results. Undetermined and
// EvaluationFailed are routing states, never persisted as verdicts.
type Outcome string

const (
	OutcomeExcludedTier1     Outcome = "EXCLUDED_TIER1"
	OutcomeQualifiedTier2    Outcome = "QUALIFIED_TIER2"
	OutcomeDisqualifiedTier2 Outcome = "DISQUALIFIED_TIER2"
	OutcomeQualifiedTier3    Outcome = "QUALIFIED_TIER3"
	OutcomeDisqualifiedTier3 Outcome = "DISQUALIFIED_TIER3"
	OutcomeUndetermined      Outcome = "UNDETERMINED"
	OutcomeEvaluationFailed  Outcome = "EVALUATION_FAILED"
)

// Terminal reports whether an outcome ends routing with a recordable verdict.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeExcludedTier1,
		OutcomeQualifiedTier2, OutcomeDisqualifiedTier2,
		OutcomeQualifiedTier3, OutcomeDisqualifiedTier3:
		return true
	}
	return false
}

// Qualified reports whether an outcome grants eligibility.
func (o Outcome) Qualified() bool {
	return o == OutcomeQualifiedTier2 || o == OutcomeQualifiedTier3
}

// Verdict is the finalized eligibility outcome for a project. A new verdict
// supersedes a prior one; verdicts are never mutated in place.
type Verdict struct {
	ProjectID         string                `json:"projectId"`
	Outcome           Outcome               `json:"outcome"`
	Assessments       []CriterionAssessment `json:"assessments"`
	Tier              Tier                  `json:"tier"`
	DecidedAt         time.Time             `json:"decidedAt"`
	DecisionCostCents int64                 `json:"decisionCostCents"`
}

// OverallConfidence is the minimum assessment confidence, the conservative
// roll-up used when mapping a verdict to a review recommendation.
func (v Verdict) OverallConfidence() float64 {
	if len(v.Assessments) == 0 {
		return 0
	}
	min := 1.0
	for _, a := range v.Assessments {
		if a.Confidence < min {
			min = a.Confidence
		}
	}
	return min
}
