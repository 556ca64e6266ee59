package review

import (
	"errors"
	"testing"

	"github.com/yourorg/rdcredit/internal/evidence"
)

func TestValidateTransitionApprove(t *testing.T) {
	if err := ValidateTransition(StatusRecommendedEligible, StatusApproved, RoleReviewer); err != nil {
		t.Fatalf("reviewer approve should pass: %v", err)
	}
	if err := ValidateTransition(StatusManualReview, StatusRejected, RoleTaxManager); err != nil {
		t.Fatalf("tax manager reject should pass: %v", err)
	}
}

func TestValidateTransitionAnalystCannotApprove(t *testing.T) {
	err := ValidateTransition(StatusRecommendedEligible, StatusApproved, RoleAnalyst)
	if !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
}

func TestValidateTransitionOverrideNeedsSeniorRole(t *testing.T) {
	if err := ValidateTransition(StatusApproved, StatusOverridden, RoleReviewer); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("reviewer override should fail, got %v", err)
	}
	if err := ValidateTransition(StatusApproved, StatusOverridden, RoleDirector); err != nil {
		t.Fatalf("director override should pass: %v", err)
	}
	if err := ValidateTransition(StatusRejected, StatusOverridden, RolePartner); err != nil {
		t.Fatalf("partner override should pass: %v", err)
	}
}

func TestValidateTransitionOverriddenIsFinal(t *testing.T) {
	for _, next := range []Status{StatusApproved, StatusRejected, StatusOverridden} {
		if err := ValidateTransition(StatusOverridden, next, RoleAdmin); !errors.Is(err, ErrTransitionNotAllowed) {
			t.Fatalf("overridden -> %s should be blocked, got %v", next, err)
		}
	}
}

func TestValidateTransitionFinalizedOnlyOverridable(t *testing.T) {
	if err := ValidateTransition(StatusApproved, StatusRejected, RoleAdmin); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("approved -> rejected should be blocked, got %v", err)
	}
}

func TestValidateTransitionUnknownRole(t *testing.T) {
	if err := ValidateTransition(StatusManualReview, StatusApproved, Role("INTERN")); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestValidateTransitionEmptyCurrentDefaultsToManualReview(t *testing.T) {
	if err := ValidateTransition("", StatusApproved, RoleReviewer); err != nil {
		t.Fatalf("empty current should behave like manual review: %v", err)
	}
}

func TestRecommend(t *testing.T) {
	qualified := evidence.Verdict{
		Outcome: evidence.OutcomeQualifiedTier3,
		Assessments: []evidence.CriterionAssessment{
			{Criterion: evidence.PermittedPurpose, Confidence: 0.9},
			{Criterion: evidence.TechnologicalNature, Confidence: 0.8},
		},
	}
	if got := Recommend(qualified); got != StatusRecommendedEligible {
		t.Fatalf("expected eligible recommendation, got %s", got)
	}

	lowConfidence := qualified
	lowConfidence.Assessments = []evidence.CriterionAssessment{
		{Criterion: evidence.PermittedPurpose, Confidence: 0.4},
	}
	if got := Recommend(lowConfidence); got != StatusManualReview {
		t.Fatalf("low confidence should go to manual review, got %s", got)
	}

	disqualified := evidence.Verdict{
		Outcome: evidence.OutcomeDisqualifiedTier2,
		Assessments: []evidence.CriterionAssessment{
			{Criterion: evidence.PermittedPurpose, Confidence: 1.0},
		},
	}
	if got := Recommend(disqualified); got != StatusRecommendedNotEligible {
		t.Fatalf("expected not-eligible recommendation, got %s", got)
	}
}
