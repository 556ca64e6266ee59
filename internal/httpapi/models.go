package httpapi

import (
	"github.com/yourorg/rdcredit/internal/evidence"
	"github.com/yourorg/rdcredit/internal/review"
)

type ClassifyRequest struct {
	Projects []evidence.Project `json:"projects"`
}

// ClassifyResult is the per-project outcome of a batch classification. Either
// Verdict or Error is set, never both.
type ClassifyResult struct {
	ProjectID    string            `json:"projectId"`
	Verdict      *evidence.Verdict `json:"verdict,omitempty"`
	ReviewStatus review.Status     `json:"reviewStatus,omitempty"`
	LedgerSeq    *uint64           `json:"ledgerSeq,omitempty"`
	Error        *ErrorBody        `json:"error,omitempty"`
}

type ClassifyResponse struct {
	Results []ClassifyResult `json:"results"`
}

type ErrorBody struct {
	Code      string                         `json:"code"`
	Message   string                         `json:"message"`
	CorrID    string                         `json:"corrId,omitempty"`
	Retryable bool                           `json:"retryable"`
	Errors    []evidence.ValidationErrorItem `json:"errors,omitempty"`
}

type ReviewRequest struct {
	Status       review.Status `json:"status"`
	ReviewerName string        `json:"reviewerName"`
	Reason       string        `json:"reason"`
}

type ReviewResponse struct {
	ProjectID   string        `json:"projectId"`
	Status      review.Status `json:"status"`
	PriorStatus review.Status `json:"priorStatus,omitempty"`
	LedgerSeq   uint64        `json:"ledgerSeq"`
}

type VerifyResponse struct {
	Ok      bool   `json:"ok"`
	Entries uint64 `json:"entries"`
	// BrokenSeq and Reason are set when verification fails.
	BrokenSeq *uint64 `json:"brokenSeq,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}
