package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yourorg/rdcredit/internal/evidence"
)

// Gateway normalizes classifier output into the criterion-assessment shape
// and applies the configured confidence cutoff. It is invoked only when
// Tier 2 leaves a criterion undetermined.
type Gateway struct {
	cfg        Config
	classifier Classifier
	logger     *slog.Logger
}

func NewGateway(cfg Config, classifier Classifier, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{cfg: cfg, classifier: classifier, logger: logger}
}

// Escalate scores the project and produces a Tier 3 outcome. Per-criterion
// confidences are recorded verbatim for audit. Any failure to obtain or
// normalize a usable response surfaces as ErrUnavailable.
func (g *Gateway) Escalate(ctx context.Context, p evidence.Project) (evidence.Outcome, []evidence.CriterionAssessment, int64, error) {
	req := ClassifyRequest{
		ProjectID:   p.ID,
		Description: p.Description,
	}
	for _, a := range p.Assessments {
		req.Evidence = append(req.Evidence, CriterionEvidence{
			Criterion: string(a.Criterion),
			Status:    string(a.Status),
			Rationale: a.Rationale,
		})
	}

	callCtx, cancel := callTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.classifier.Classify(callCtx, req)
	if err != nil {
		return evidence.OutcomeUndetermined, nil, 0, err
	}

	assessments, err := normalize(resp)
	if err != nil {
		g.logger.Warn("classifier response rejected", "projectId", p.ID, "error", err)
		return evidence.OutcomeUndetermined, nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	overall := weightedConfidence(assessments)
	outcome := evidence.OutcomeDisqualifiedTier3
	if overall >= g.cfg.ConfidenceCutoff && allSatisfied(assessments) {
		outcome = evidence.OutcomeQualifiedTier3
	}

	g.logger.Info("escalation resolved",
		"projectId", p.ID,
		"outcome", string(outcome),
		"overallConfidence", overall,
		"cutoff", g.cfg.ConfidenceCutoff,
	)
	return outcome, assessments, g.cfg.DecisionCostCents, nil
}

// normalize converts arbitrary service output into exactly one assessment per
// criterion. Unknown criteria are dropped; a missing criterion or an
// unmappable status is an error the caller treats as unavailability.
func normalize(resp ClassifyResponse) ([]evidence.CriterionAssessment, error) {
	byCriterion := map[evidence.Criterion]evidence.CriterionAssessment{}
	for _, score := range resp.Scores {
		c := evidence.Criterion(strings.ToUpper(strings.TrimSpace(score.Criterion)))
		if !knownCriterion(c) {
			continue
		}
		status, ok := mapStatus(score.Status)
		if !ok {
			return nil, fmt.Errorf("unmappable status %q for %s", score.Status, c)
		}
		conf := score.Confidence
		if conf < 0 || conf > 1 {
			return nil, fmt.Errorf("confidence %v out of range for %s", conf, c)
		}
		byCriterion[c] = evidence.CriterionAssessment{
			Criterion:  c,
			Status:     status,
			Rationale:  score.Rationale,
			Confidence: conf,
		}
	}

	out := make([]evidence.CriterionAssessment, 0, len(evidence.AllCriteria))
	for _, c := range evidence.AllCriteria {
		a, ok := byCriterion[c]
		if !ok {
			return nil, fmt.Errorf("response missing criterion %s", c)
		}
		out = append(out, a)
	}
	return out, nil
}

func knownCriterion(c evidence.Criterion) bool {
	for _, known := range evidence.AllCriteria {
		if c == known {
			return true
		}
	}
	return false
}

func mapStatus(raw string) (evidence.AssessmentStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SATISFIED", "MET", "PASS", "YES":
		return evidence.Satisfied, true
	case "NOT_SATISFIED", "UNMET", "FAIL", "NO":
		return evidence.NotSatisfied, true
	case "UNDETERMINED", "UNKNOWN", "UNCERTAIN":
		return evidence.Undetermined, true
	}
	return "", false
}

// weightedConfidence folds satisfaction into the confidence roll-up: a
// criterion scored NotSatisfied or Undetermined contributes its confidence
// against qualification.
func weightedConfidence(assessments []evidence.CriterionAssessment) float64 {
	if len(assessments) == 0 {
		return 0
	}
	total := 0.0
	for _, a := range assessments {
		if a.Status == evidence.Satisfied {
			total += a.Confidence
		} else {
			total += 1 - a.Confidence
		}
	}
	return total / float64(len(assessments))
}

func allSatisfied(assessments []evidence.CriterionAssessment) bool {
	for _, a := range assessments {
		if a.Status != evidence.Satisfied {
			return false
		}
	}
	return true
}
