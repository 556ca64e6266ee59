package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yourorg/rdcredit/internal/auth"
	"github.com/yourorg/rdcredit/internal/evidence"
	"github.com/yourorg/rdcredit/internal/ledger"
	"github.com/yourorg/rdcredit/internal/qre"
	"github.com/yourorg/rdcredit/internal/review"
	"github.com/yourorg/rdcredit/internal/router"
)

type Service struct {
	cfg    Config
	router *router.Router
	ledger *ledger.Ledger
	calc   *qre.Calculator
	store  ProjectStore
	logger *slog.Logger
}

func NewService(cfg Config, r *router.Router, led *ledger.Ledger, calc *qre.Calculator, store ProjectStore, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{cfg: cfg, router: r, ledger: led, calc: calc, store: store, logger: logger}
}

// Classify runs the decision pipeline for a batch of projects. Results are
// per-project: one project failing validation or escalation does not abort the
// rest of the batch.
func (s Service) Classify(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(w, r)
	log := CorrelationLogger(s.logger, corrID)

	var req ClassifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, corrID, ErrorBody{Code: "BAD_JSON", Message: "invalid JSON", CorrID: corrID})
		return
	}
	if len(req.Projects) == 0 {
		writeJSON(w, http.StatusBadRequest, corrID, ErrorBody{Code: "EMPTY_BATCH", Message: "projects must not be empty", CorrID: corrID})
		return
	}

	results := make([]ClassifyResult, 0, len(req.Projects))
	for _, p := range req.Projects {
		results = append(results, s.classifyOne(r, log, corrID, p))
	}
	writeJSON(w, http.StatusOK, corrID, ClassifyResponse{Results: results})
}

func (s Service) classifyOne(r *http.Request, log *slog.Logger, corrID string, p evidence.Project) ClassifyResult {
	res := ClassifyResult{ProjectID: p.ID}

	v, err := s.router.Decide(r.Context(), p)
	if err != nil {
		var verr *evidence.ValidationError
		switch {
		case errors.As(err, &verr):
			res.Error = &ErrorBody{Code: "VALIDATION_ERROR", Message: "project validation failed", CorrID: corrID, Errors: verr.Errors}
		case errors.Is(err, router.ErrEvaluationFailed):
			res.Error = &ErrorBody{Code: "EVALUATION_FAILED", Message: err.Error(), CorrID: corrID, Retryable: true}
		case errors.Is(err, ledger.ErrHalted):
			res.Error = &ErrorBody{Code: "LEDGER_HALTED", Message: err.Error(), CorrID: corrID, Retryable: true}
		default:
			res.Error = &ErrorBody{Code: "INTERNAL_ERROR", Message: err.Error(), CorrID: corrID, Retryable: true}
		}
		log.Warn("classification failed", "projectId", p.ID, "code", res.Error.Code)
		return res
	}

	if err := s.store.PutProject(r.Context(), p); err != nil {
		log.Error("store project", "projectId", p.ID, "error", err)
	}
	if err := s.store.PutVerdict(r.Context(), v); err != nil {
		log.Error("store verdict", "projectId", p.ID, "error", err)
	}
	status, _, _ := s.store.ReviewStatus(r.Context(), p.ID)

	res.Verdict = &v
	res.ReviewStatus = status
	if seq, found := s.lastEntrySeq(r, p.ID); found {
		res.LedgerSeq = &seq
	}
	return res
}

// ProjectLedger returns the full entry history for one project in sequence
// order, superseded entries included.
func (s Service) ProjectLedger(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(w, r)
	projectID := chi.URLParam(r, "projectID")

	entries, err := s.ledger.Get(r.Context(), projectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, corrID, ErrorBody{Code: "INTERNAL_ERROR", Message: err.Error(), CorrID: corrID, Retryable: true})
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusNotFound, corrID, ErrorBody{Code: "NOT_FOUND", Message: "no ledger entries for project", CorrID: corrID})
		return
	}
	writeJSON(w, http.StatusOK, corrID, map[string]any{"projectId": projectID, "entries": entries})
}

// VerifyLedger recomputes the hash chain over [from, to] (the full chain when
// unspecified) and reports the first broken sequence if any.
func (s Service) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(w, r)
	log := CorrelationLogger(s.logger, corrID)

	n, err := s.ledger.Len(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, corrID, ErrorBody{Code: "INTERNAL_ERROR", Message: err.Error(), CorrID: corrID, Retryable: true})
		return
	}
	resp := VerifyResponse{Ok: true, Entries: n}
	if n == 0 {
		writeJSON(w, http.StatusOK, corrID, resp)
		return
	}

	from, to := uint64(0), n-1
	if v := r.URL.Query().Get("from"); v != "" {
		if parsed, perr := strconv.ParseUint(v, 10, 64); perr == nil {
			from = parsed
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if parsed, perr := strconv.ParseUint(v, 10, 64); perr == nil && parsed <= to {
			to = parsed
		}
	}
	if from > to {
		writeJSON(w, http.StatusBadRequest, corrID, ErrorBody{Code: "BAD_RANGE", Message: "from must not exceed to", CorrID: corrID})
		return
	}

	if err := s.ledger.Verify(r.Context(), from, to); err != nil {
		var ierr *ledger.IntegrityError
		if errors.As(err, &ierr) {
			resp.Ok = false
			resp.BrokenSeq = &ierr.Seq
			resp.Reason = ierr.Reason
			log.Error("ledger verification failed", "seq", ierr.Seq, "reason", ierr.Reason)
			writeJSON(w, http.StatusOK, corrID, resp)
			return
		}
		writeJSON(w, http.StatusInternalServerError, corrID, ErrorBody{Code: "INTERNAL_ERROR", Message: err.Error(), CorrID: corrID, Retryable: true})
		return
	}
	writeJSON(w, http.StatusOK, corrID, resp)
}

// Review applies a human review decision. The transition table and the
// reviewer-role hierarchy are enforced before anything is appended.
func (s Service) Review(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(w, r)
	log := CorrelationLogger(s.logger, corrID)
	projectID := chi.URLParam(r, "projectID")

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, corrID, ErrorBody{Code: "AUTH_REQUIRED", Message: "no authenticated actor", CorrID: corrID})
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, corrID, ErrorBody{Code: "BAD_JSON", Message: "invalid JSON", CorrID: corrID})
		return
	}

	if _, _, err := s.latestVerdict(r, projectID); err != nil {
		writeJSON(w, http.StatusNotFound, corrID, ErrorBody{Code: "NOT_FOUND", Message: "project has no verdict to review", CorrID: corrID})
		return
	}
	current, _, _ := s.store.ReviewStatus(r.Context(), projectID)

	if err := review.ValidateTransition(current, req.Status, actor.Role); err != nil {
		status := http.StatusConflict
		code := "TRANSITION_NOT_ALLOWED"
		if errors.Is(err, review.ErrInsufficientRole) || errors.Is(err, review.ErrUnknownRole) {
			status = http.StatusForbidden
			code = "FORBIDDEN"
		}
		writeJSON(w, status, corrID, ErrorBody{Code: code, Message: err.Error(), CorrID: corrID})
		return
	}

	action := review.Action{
		ProjectID:    projectID,
		Status:       req.Status,
		PriorStatus:  current,
		ReviewerName: req.ReviewerName,
		ReviewerRole: actor.Role,
		Reason:       req.Reason,
	}
	if seq, found := s.lastEntrySeq(r, projectID); found {
		action.Supersedes = &seq
	}

	entry, err := s.ledger.Append(r.Context(), ledger.KindReview, projectID, action)
	if err != nil {
		if errors.Is(err, ledger.ErrHalted) {
			writeJSON(w, http.StatusServiceUnavailable, corrID, ErrorBody{Code: "LEDGER_HALTED", Message: err.Error(), CorrID: corrID, Retryable: true})
			return
		}
		writeJSON(w, http.StatusInternalServerError, corrID, ErrorBody{Code: "INTERNAL_ERROR", Message: err.Error(), CorrID: corrID, Retryable: true})
		return
	}
	if err := s.store.PutReviewStatus(r.Context(), projectID, req.Status); err != nil {
		log.Error("store review status", "projectId", projectID, "error", err)
	}

	log.Info("review recorded", "projectId", projectID, "status", string(req.Status), "role", string(actor.Role), "seq", entry.Seq)
	writeJSON(w, http.StatusOK, corrID, ReviewResponse{
		ProjectID:   projectID,
		Status:      req.Status,
		PriorStatus: current,
		LedgerSeq:   entry.Seq,
	})
}

// QRE reports the qualified research expense breakdown for a project under
// its latest verdict.
func (s Service) QRE(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(w, r)
	projectID := chi.URLParam(r, "projectID")

	p, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, corrID, ErrorBody{Code: "NOT_FOUND", Message: "project not found", CorrID: corrID})
		return
	}
	v, ok, err := s.store.LatestVerdict(r.Context(), projectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, corrID, ErrorBody{Code: "INTERNAL_ERROR", Message: err.Error(), CorrID: corrID, Retryable: true})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, corrID, ErrorBody{Code: "NOT_FOUND", Message: "project has no verdict", CorrID: corrID})
		return
	}

	result, err := s.calc.Compute(p, v)
	if err != nil {
		if errors.Is(err, qre.ErrPrecondition) {
			writeJSON(w, http.StatusConflict, corrID, ErrorBody{Code: "NOT_QUALIFIED", Message: err.Error(), CorrID: corrID})
			return
		}
		writeJSON(w, http.StatusInternalServerError, corrID, ErrorBody{Code: "INTERNAL_ERROR", Message: err.Error(), CorrID: corrID, Retryable: true})
		return
	}
	writeJSON(w, http.StatusOK, corrID, result)
}

// NeedsReview lists projects whose last evaluation failed and therefore sit
// without an automated verdict.
func (s Service) NeedsReview(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(w, r)
	writeJSON(w, http.StatusOK, corrID, map[string]any{"projects": s.router.NeedsReview()})
}

func (s Service) Healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.ledger.Halted() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, "", map[string]any{"status": status, "ledgerHalted": s.ledger.Halted()})
}

func (s Service) latestVerdict(r *http.Request, projectID string) (evidence.Verdict, bool, error) {
	v, ok, err := s.store.LatestVerdict(r.Context(), projectID)
	if err != nil {
		return evidence.Verdict{}, false, err
	}
	if !ok {
		return evidence.Verdict{}, false, ErrProjectNotFound
	}
	return v, true, nil
}

func (s Service) lastEntrySeq(r *http.Request, projectID string) (uint64, bool) {
	entries, err := s.ledger.Get(r.Context(), projectID)
	if err != nil || len(entries) == 0 {
		return 0, false
	}
	return entries[len(entries)-1].Seq, true
}

func correlationID(w http.ResponseWriter, r *http.Request) string {
	if id := w.Header().Get("X-Correlation-Id"); id != "" {
		return id
	}
	return r.Header.Get("X-Correlation-Id")
}

// CorrelationLogger scopes a logger to one request.
func CorrelationLogger(logger *slog.Logger, corrID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("corrId", corrID)
}

func writeJSON(w http.ResponseWriter, status int, corrID string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if corrID != "" {
		w.Header().Set("X-Correlation-Id", corrID)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
