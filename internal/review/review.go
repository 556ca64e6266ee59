// Package review implements the human review workflow layered on top of
// automated verdicts: canonical statuses, reviewer roles with a permission
// hierarchy, and hard transition rules. Review actions are appended to the
// ledger as administrative events; they supersede, never overwrite.
package review

import (
	"errors"
	"fmt"

	"github.com/yourorg/rdcredit/internal/evidence"
)

type Status string

const (
	StatusRecommendedEligible    Status = "RECOMMENDED_ELIGIBLE"
	StatusRecommendedNotEligible Status = "RECOMMENDED_NOT_ELIGIBLE"
	StatusManualReview           Status = "MANUAL_REVIEW"
	StatusApproved               Status = "APPROVED"
	StatusRejected               Status = "REJECTED"
	StatusOverridden             Status = "OVERRIDDEN"
)

type Role string

const (
	RoleAnalyst    Role = "ANALYST"
	RoleReviewer   Role = "REVIEWER"
	RoleTaxManager Role = "TAX_MANAGER"
	RoleDirector   Role = "DIRECTOR"
	RolePartner    Role = "PARTNER"
	RoleAdmin      Role = "ADMIN"
)

// roleLevel orders roles by permission. Reviewer and TaxManager share a
// level, as do Director and Partner.
var roleLevel = map[Role]int{
	RoleAnalyst:    0,
	RoleReviewer:   1,
	RoleTaxManager: 1,
	RoleDirector:   2,
	RolePartner:    2,
	RoleAdmin:      3,
}

// allowedTransitions are the hard rules: recommendations can be approved,
// rejected, or overridden; approvals and rejections can only be overridden;
// overridden is final.
var allowedTransitions = map[Status][]Status{
	StatusRecommendedEligible:    {StatusApproved, StatusRejected, StatusOverridden},
	StatusRecommendedNotEligible: {StatusApproved, StatusRejected, StatusOverridden},
	StatusManualReview:           {StatusApproved, StatusRejected, StatusOverridden},
	StatusApproved:               {StatusOverridden},
	StatusRejected:               {StatusOverridden},
	StatusOverridden:             {},
}

var (
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
	ErrInsufficientRole     = errors.New("insufficient reviewer role")
	ErrUnknownRole          = errors.New("unknown reviewer role")
)

// CanApproveReject reports whether a role may approve or reject.
func CanApproveReject(r Role) bool {
	return roleLevel[r] >= 1
}

// CanOverride reports whether a role may override a finalized review.
func CanOverride(r Role) bool {
	return roleLevel[r] >= 2
}

// ValidateTransition enforces the transition table and role permissions.
// An empty current status is treated as ManualReview.
func ValidateTransition(current, next Status, role Role) error {
	if _, ok := roleLevel[role]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if current == "" {
		current = StatusManualReview
	}
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("%w: unknown current status %q", ErrTransitionNotAllowed, current)
	}
	permitted := false
	for _, s := range allowed {
		if s == next {
			permitted = true
			break
		}
	}
	if !permitted {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, current, next)
	}

	switch next {
	case StatusApproved, StatusRejected:
		if !CanApproveReject(role) {
			return fmt.Errorf("%w: %s cannot approve or reject", ErrInsufficientRole, role)
		}
	case StatusOverridden:
		if !CanOverride(role) {
			return fmt.Errorf("%w: %s cannot override", ErrInsufficientRole, role)
		}
	}
	return nil
}

// Recommend maps an automated verdict to the initial review status. Low
// confidence lands in manual review regardless of outcome.
func Recommend(v evidence.Verdict) Status {
	if v.OverallConfidence() < 0.5 {
		return StatusManualReview
	}
	if v.Outcome.Qualified() {
		return StatusRecommendedEligible
	}
	return StatusRecommendedNotEligible
}

// Action is the ledger payload for one review decision. Supersedes points at
// the verdict or review entry this action finalizes or replaces.
type Action struct {
	ProjectID    string  `json:"projectId"`
	Status       Status  `json:"status"`
	PriorStatus  Status  `json:"priorStatus,omitempty"`
	ReviewerName string  `json:"reviewerName"`
	ReviewerRole Role    `json:"reviewerRole"`
	Reason       string  `json:"reason"`
	Supersedes   *uint64 `json:"supersedes,omitempty"`
}
