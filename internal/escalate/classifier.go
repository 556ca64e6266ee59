// Package escalate is the Tier 3 gateway. It wraps an external scoring
// service behind a one-method interface so the underlying model can be
// swapped without touching routing or ledger logic.
package escalate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable marks a transient classifier failure: timeout, transport
// error, non-2xx status, or a response shape that cannot be normalized. The
// router retries it; it is never interpreted as a disqualification.
var ErrUnavailable = errors.New("escalation unavailable")

// CriterionEvidence is the partial evidence forwarded per criterion.
type CriterionEvidence struct {
	Criterion string `json:"criterion"`
	Status    string `json:"status,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// ClassifyRequest is the stable request contract toward the scoring service.
type ClassifyRequest struct {
	ProjectID   string              `json:"projectId"`
	Description string              `json:"description"`
	Evidence    []CriterionEvidence `json:"evidence,omitempty"`
}

// CriterionScore is one scored criterion as returned by the service. Unknown
// extra fields are ignored on decode; missing ones are normalized later.
type CriterionScore struct {
	Criterion  string  `json:"criterion"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// ClassifyResponse is the raw service response.
type ClassifyResponse struct {
	Scores []CriterionScore `json:"scores"`
	Model  string           `json:"model,omitempty"`
}

// Classifier is the narrow seam to the external scoring capability.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error)
}

// HTTPClassifier calls a JSON scoring endpoint.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

func NewHTTPClassifier(cfg Config) *HTTPClassifier {
	return &HTTPClassifier{
		url:    cfg.ClassifierURL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ClassifyResponse{}, fmt.Errorf("encode classify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ClassifyResponse{}, fmt.Errorf("build classify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return ClassifyResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ClassifyResponse{}, fmt.Errorf("%w: classifier returned %d", ErrUnavailable, resp.StatusCode)
	}

	var out ClassifyResponse
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&out); err != nil {
		return ClassifyResponse{}, fmt.Errorf("%w: undecodable response: %v", ErrUnavailable, err)
	}
	return out, nil
}

var _ Classifier = (*HTTPClassifier)(nil)

// callTimeout returns a context bounded by the configured timeout unless the
// parent already expires sooner.
func callTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
