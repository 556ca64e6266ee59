// Package router orchestrates the decision tiers. Decide is the single code
// path that turns evidence into a persisted verdict: Tier 1 exclusion, Tier 2
// rules, Tier 3 escalation, then exactly one ledger append per terminal
// outcome.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yourorg/rdcredit/internal/escalate"
	"github.com/yourorg/rdcredit/internal/evidence"
	"github.com/yourorg/rdcredit/internal/ledger"
	"github.com/yourorg/rdcredit/internal/rules"
)

// ErrEvaluationFailed is the terminal per-project failure after the retry
// budget is spent. The project is left without a verdict; a default verdict
// is never fabricated.
var ErrEvaluationFailed = errors.New("evaluation failed")

// Gateway is the Tier 3 seam, satisfied by *escalate.Gateway.
type Gateway interface {
	Escalate(ctx context.Context, p evidence.Project) (evidence.Outcome, []evidence.CriterionAssessment, int64, error)
}

// verdictPayload is the ledger payload for a decision. Supersedes carries the
// sequence of the prior verdict entry on re-evaluation; corrections append,
// they never mutate.
type verdictPayload struct {
	evidence.Verdict
	Supersedes *uint64 `json:"supersedes,omitempty"`
}

type Router struct {
	cfg     Config
	ruleset rules.Ruleset
	gateway Gateway
	ledger  *ledger.Ledger
	logger  *slog.Logger
	clock   func() time.Time

	// projectLocks serializes evaluations of the same project; evaluations
	// of different projects run concurrently.
	mu           sync.Mutex
	projectLocks map[string]*sync.Mutex

	// failed tracks projects whose last evaluation ended in
	// ErrEvaluationFailed, surfaced as the needs-manual-review set.
	failedMu sync.Mutex
	failed   map[string]FailedEvaluation
}

// FailedEvaluation describes a project stuck without a verdict.
type FailedEvaluation struct {
	ProjectID string    `json:"projectId"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failedAt"`
}

func New(cfg Config, ruleset rules.Ruleset, gateway Gateway, led *ledger.Ledger, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:          cfg,
		ruleset:      ruleset,
		gateway:      gateway,
		ledger:       led,
		logger:       logger,
		clock:        time.Now,
		projectLocks: map[string]*sync.Mutex{},
		failed:       map[string]FailedEvaluation{},
	}
}

// WithClock overrides the clock for deterministic tests.
func (r *Router) WithClock(clock func() time.Time) *Router {
	r.clock = clock
	return r
}

// Decide runs the tier state machine for one project and appends the verdict.
// Validation failures surface before any tier runs; evaluation failures leave
// the project without a verdict.
func (r *Router) Decide(ctx context.Context, p evidence.Project) (evidence.Verdict, error) {
	if items := evidence.ValidateProject(p); len(items) > 0 {
		return evidence.Verdict{}, &evidence.ValidationError{Errors: items}
	}

	unlock := r.lockProject(p.ID)
	defer unlock()

	log := r.logger.With("projectId", p.ID)

	// Tier 1: exclusion check. A hit is terminal and Tier 2 never runs.
	if outcome := rules.EvaluateTier1(r.ruleset, p); outcome == evidence.OutcomeExcludedTier1 {
		v := evidence.Verdict{
			ProjectID:   p.ID,
			Outcome:     outcome,
			Assessments: nil,
			Tier:        evidence.Tier1,
			DecidedAt:   r.clock().UTC(),
		}
		return r.record(ctx, log, v)
	}

	// Tier 2: deterministic criterion heuristics.
	outcome, assessments := rules.EvaluateTier2(r.ruleset, p)
	if outcome.Terminal() {
		v := evidence.Verdict{
			ProjectID:   p.ID,
			Outcome:     outcome,
			Assessments: assessments,
			Tier:        evidence.Tier2,
			DecidedAt:   r.clock().UTC(),
		}
		return r.record(ctx, log, v)
	}

	// Tier 3: escalation, retried only on unavailability.
	enriched := p
	enriched.Assessments = assessments
	outcome3, assessments3, cost, err := r.escalateWithRetry(ctx, log, enriched)
	if err != nil {
		r.markFailed(p.ID, err)
		return evidence.Verdict{}, err
	}

	v := evidence.Verdict{
		ProjectID:         p.ID,
		Outcome:           outcome3,
		Assessments:       assessments3,
		Tier:              evidence.Tier3,
		DecidedAt:         r.clock().UTC(),
		DecisionCostCents: cost,
	}
	return r.record(ctx, log, v)
}

func (r *Router) escalateWithRetry(ctx context.Context, log *slog.Logger, p evidence.Project) (evidence.Outcome, []evidence.CriterionAssessment, int64, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		outcome, assessments, cost, err := r.gateway.Escalate(ctx, p)
		if err == nil {
			return outcome, assessments, cost, nil
		}
		if !errors.Is(err, escalate.ErrUnavailable) {
			return evidence.OutcomeUndetermined, nil, 0, fmt.Errorf("%w: %v", ErrEvaluationFailed, err)
		}
		lastErr = err
		log.Warn("escalation unavailable", "attempt", attempt, "error", err)

		if attempt == r.cfg.MaxAttempts {
			break
		}
		backoff := r.cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return evidence.OutcomeUndetermined, nil, 0, fmt.Errorf("%w: %v", ErrEvaluationFailed, ctx.Err())
		}
	}
	return evidence.OutcomeUndetermined, nil, 0, fmt.Errorf("%w: retries exhausted: %v", ErrEvaluationFailed, lastErr)
}

// record appends the verdict to the ledger. This is the authoritative
// "decision made" event; no other code path appends decisions.
func (r *Router) record(ctx context.Context, log *slog.Logger, v evidence.Verdict) (evidence.Verdict, error) {
	payload := verdictPayload{Verdict: v}
	if prior, ok, err := r.priorVerdictSeq(ctx, v.ProjectID); err != nil {
		return evidence.Verdict{}, err
	} else if ok {
		payload.Supersedes = &prior
	}

	entry, err := r.ledger.Append(ctx, ledger.KindVerdict, v.ProjectID, payload)
	if err != nil {
		return evidence.Verdict{}, fmt.Errorf("record verdict: %w", err)
	}
	r.clearFailed(v.ProjectID)
	log.Info("verdict recorded",
		"outcome", string(v.Outcome),
		"tier", int(v.Tier),
		"seq", entry.Seq,
		"costCents", v.DecisionCostCents,
	)
	return v, nil
}

// priorVerdictSeq finds the latest non-superseded verdict entry, if any.
func (r *Router) priorVerdictSeq(ctx context.Context, projectID string) (uint64, bool, error) {
	entries, err := r.ledger.Get(ctx, projectID)
	if err != nil {
		return 0, false, fmt.Errorf("lookup prior verdict: %w", err)
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == ledger.KindVerdict {
			return entries[i].Seq, true, nil
		}
	}
	return 0, false, nil
}

func (r *Router) lockProject(id string) func() {
	r.mu.Lock()
	lock, ok := r.projectLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.projectLocks[id] = lock
	}
	r.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (r *Router) markFailed(projectID string, cause error) {
	r.failedMu.Lock()
	defer r.failedMu.Unlock()
	r.failed[projectID] = FailedEvaluation{
		ProjectID: projectID,
		Reason:    cause.Error(),
		FailedAt:  r.clock().UTC(),
	}
}

func (r *Router) clearFailed(projectID string) {
	r.failedMu.Lock()
	defer r.failedMu.Unlock()
	delete(r.failed, projectID)
}

// NeedsReview lists projects whose last evaluation failed and which therefore
// have no automated verdict.
func (r *Router) NeedsReview() []FailedEvaluation {
	r.failedMu.Lock()
	defer r.failedMu.Unlock()
	out := make([]FailedEvaluation, 0, len(r.failed))
	for _, f := range r.failed {
		out = append(out, f)
	}
	return out
}
