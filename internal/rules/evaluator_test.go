package rules

import (
	"testing"

	"github.com/yourorg/rdcredit/internal/evidence"
)

func project(category, description string) evidence.Project {
	assessments := make([]evidence.CriterionAssessment, 0, len(evidence.AllCriteria))
	for _, c := range evidence.AllCriteria {
		assessments = append(assessments, evidence.CriterionAssessment{Criterion: c})
	}
	return evidence.Project{
		ID:          "proj-1",
		Description: description,
		Category:    category,
		Assessments: assessments,
	}
}

func TestTier1ExcludedCategory(t *testing.T) {
	rs := DefaultRuleset()
	if got := EvaluateTier1(rs, project("marketing", "anything")); got != evidence.OutcomeExcludedTier1 {
		t.Fatalf("expected exclusion, got %s", got)
	}
	if got := EvaluateTier1(rs, project("Data-Entry ", "anything")); got != evidence.OutcomeExcludedTier1 {
		t.Fatalf("case and whitespace should not matter, got %s", got)
	}
}

func TestTier1ExclusionPhraseInDescription(t *testing.T) {
	rs := DefaultRuleset()
	p := project("software", "routine work, category: documentation, nothing novel")
	if got := EvaluateTier1(rs, p); got != evidence.OutcomeExcludedTier1 {
		t.Fatalf("expected exclusion from description phrase, got %s", got)
	}
}

func TestTier1PassThrough(t *testing.T) {
	rs := DefaultRuleset()
	if got := EvaluateTier1(rs, project("software", "new algorithm work")); got != evidence.OutcomeUndetermined {
		t.Fatalf("expected continuation, got %s", got)
	}
}

func TestTier2AllSatisfied(t *testing.T) {
	rs := DefaultRuleset()
	desc := "Developed a new product using a novel algorithm. Feasibility was uncertain, " +
		"so we built a prototype and ran benchmark experiments grounded in computer science."
	outcome, assessments := EvaluateTier2(rs, project("software", desc))
	if outcome != evidence.OutcomeQualifiedTier2 {
		t.Fatalf("expected QUALIFIED_TIER2, got %s (%+v)", outcome, assessments)
	}
	if len(assessments) != len(evidence.AllCriteria) {
		t.Fatalf("expected %d assessments, got %d", len(evidence.AllCriteria), len(assessments))
	}
	for _, a := range assessments {
		if a.Status != evidence.Satisfied || a.Confidence != 1.0 {
			t.Fatalf("expected all satisfied at confidence 1.0, got %+v", a)
		}
	}
}

func TestTier2NegationDisqualifies(t *testing.T) {
	rs := DefaultRuleset()
	desc := "Improved performance of a new product using an off-the-shelf known solution; " +
		"we ran prototype experiments grounded in engineering."
	outcome, _ := EvaluateTier2(rs, project("software", desc))
	if outcome != evidence.OutcomeDisqualifiedTier2 {
		t.Fatalf("expected DISQUALIFIED_TIER2, got %s", outcome)
	}
}

func TestTier2UndeterminedDominatesNotSatisfied(t *testing.T) {
	rs := DefaultRuleset()
	// one criterion negated, another left without evidence
	desc := "Improved performance with a known solution."
	outcome, assessments := EvaluateTier2(rs, project("software", desc))
	if outcome != evidence.OutcomeUndetermined {
		t.Fatalf("expected UNDETERMINED to dominate, got %s (%+v)", outcome, assessments)
	}
}

func TestTier2UncertaintyMarkerForcesEscalation(t *testing.T) {
	rs := DefaultRuleset()
	desc := "New product with a novel algorithm, feasibility uncertain, prototype experiments " +
		"in computer science. Cost allocation tbd."
	outcome, _ := EvaluateTier2(rs, project("software", desc))
	if outcome != evidence.OutcomeUndetermined {
		t.Fatalf("expected UNDETERMINED from marker, got %s", outcome)
	}
}

func TestTier2RespectsResolvedSlot(t *testing.T) {
	rs := DefaultRuleset()
	p := project("software", "no matching evidence at all")
	for i := range p.Assessments {
		p.Assessments[i].Status = evidence.Satisfied
		p.Assessments[i].Confidence = 0.3
	}
	outcome, assessments := EvaluateTier2(rs, p)
	if outcome != evidence.OutcomeQualifiedTier2 {
		t.Fatalf("expected resolved slots to be respected, got %s", outcome)
	}
	for _, a := range assessments {
		if a.Confidence != 1.0 {
			t.Fatalf("resolved slot should report confidence 1.0, got %+v", a)
		}
	}
}

func TestTier2IsPure(t *testing.T) {
	rs := DefaultRuleset()
	p := project("software", "new product prototype with uncertain feasibility, engineering experiments")
	o1, a1 := EvaluateTier2(rs, p)
	o2, a2 := EvaluateTier2(rs, p)
	if o1 != o2 || len(a1) != len(a2) {
		t.Fatalf("evaluation must be deterministic: %s vs %s", o1, o2)
	}
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("assessment %d differs: %+v vs %+v", i, a1[i], a2[i])
		}
	}
}
