package rules

import (
	"fmt"
	"strings"

	"github.com/yourorg/rdcredit/internal/evidence"
)

// EvaluateTier1 checks the project against the fixed exclusion set. A match
// on category or an exclusion phrase in the description is terminal:
// Tier 2 must not run for excluded projects. A non-match returns
// OutcomeUndetermined, meaning routing continues.
func EvaluateTier1(rs Ruleset, p evidence.Project) evidence.Outcome {
	category := strings.ToLower(strings.TrimSpace(p.Category))
	desc := strings.ToLower(p.Description)
	for _, excluded := range rs.ExcludedCategories {
		excluded = strings.ToLower(strings.TrimSpace(excluded))
		if excluded == "" {
			continue
		}
		if category == excluded {
			return evidence.OutcomeExcludedTier1
		}
		if strings.Contains(desc, "category: "+excluded) {
			return evidence.OutcomeExcludedTier1
		}
	}
	return evidence.OutcomeUndetermined
}

// EvaluateTier2 resolves the four criterion slots with structured heuristics
// and applies the decision rule:
//
//   - all four Satisfied             -> QualifiedTier2
//   - any NotSatisfied, none open    -> DisqualifiedTier2
//   - any Undetermined               -> Undetermined (escalation required)
//
// Undetermined dominates NotSatisfied: an open criterion always forces
// escalation because a reviewer may surface mitigating evidence.
func EvaluateTier2(rs Ruleset, p evidence.Project) (evidence.Outcome, []evidence.CriterionAssessment) {
	assessments := make([]evidence.CriterionAssessment, 0, len(evidence.AllCriteria))
	satisfied := 0
	notSatisfied := 0
	undetermined := 0

	for _, c := range evidence.AllCriteria {
		a := assessCriterion(rs, p, c)
		assessments = append(assessments, a)
		switch a.Status {
		case evidence.Satisfied:
			satisfied++
		case evidence.NotSatisfied:
			notSatisfied++
		default:
			undetermined++
		}
	}

	switch {
	case undetermined > 0:
		return evidence.OutcomeUndetermined, assessments
	case notSatisfied > 0:
		return evidence.OutcomeDisqualifiedTier2, assessments
	default:
		return evidence.OutcomeQualifiedTier2, assessments
	}
}

func assessCriterion(rs Ruleset, p evidence.Project, c evidence.Criterion) evidence.CriterionAssessment {
	rule := rs.Criteria[c]
	text := strings.ToLower(p.Description)
	slot, hasSlot := p.Assessment(c)
	if hasSlot && slot.Rationale != "" {
		text += "\n" + strings.ToLower(slot.Rationale)
	}

	// A pre-resolved slot from upstream review is respected verbatim.
	if hasSlot && slot.Status != "" && slot.Status != evidence.Undetermined {
		out := slot
		out.Confidence = 1.0
		return out
	}

	if marker, ok := containsAny(text, rs.UncertaintyMarkers); ok {
		return evidence.CriterionAssessment{
			Criterion:  c,
			Status:     evidence.Undetermined,
			Rationale:  fmt.Sprintf("evidence carries uncertainty marker %q", marker),
			Confidence: 1.0,
		}
	}

	if neg, ok := containsAny(text, rule.Negations); ok {
		return evidence.CriterionAssessment{
			Criterion:  c,
			Status:     evidence.NotSatisfied,
			Rationale:  fmt.Sprintf("negating evidence %q", neg),
			Confidence: 1.0,
		}
	}

	minHits := rule.MinHits
	if minHits <= 0 {
		minHits = 1
	}
	if hits := countHits(text, rule.Keywords); hits >= minHits {
		return evidence.CriterionAssessment{
			Criterion:  c,
			Status:     evidence.Satisfied,
			Rationale:  fmt.Sprintf("%d keyword evidence hit(s)", hits),
			Confidence: 1.0,
		}
	}

	return evidence.CriterionAssessment{
		Criterion:  c,
		Status:     evidence.Undetermined,
		Rationale:  "insufficient deterministic evidence",
		Confidence: 1.0,
	}
}
