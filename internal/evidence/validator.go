package evidence

import (
	"fmt"
	"strings"
)

type ValidationErrorItem struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError rejects a malformed project before any tier runs. It is
// reported to the caller and never persisted.
type ValidationError struct {
	Errors []ValidationErrorItem `json:"errors"`
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s %s: %s", item.Code, item.Path, item.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateProject checks the required fields and the four criterion slots.
// An empty result means the project is well-formed.
func ValidateProject(p Project) []ValidationErrorItem {
	errs := make([]ValidationErrorItem, 0)
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, ValidationErrorItem{Code: "EVD-REQ-001", Path: "projectId", Message: "projectId is required"})
	}
	if strings.TrimSpace(p.Description) == "" {
		errs = append(errs, ValidationErrorItem{Code: "EVD-REQ-002", Path: "description", Message: "description is required"})
	}
	if strings.TrimSpace(p.Category) == "" {
		errs = append(errs, ValidationErrorItem{Code: "EVD-REQ-003", Path: "category", Message: "category is required"})
	}

	seen := map[Criterion]int{}
	for i, a := range p.Assessments {
		path := fmt.Sprintf("assessments[%d]", i)
		if _, ok := seen[a.Criterion]; ok {
			errs = append(errs, ValidationErrorItem{Code: "EVD-REQ-004", Path: path, Message: fmt.Sprintf("duplicate criterion %s", a.Criterion)})
		}
		seen[a.Criterion] = i
		if a.Confidence < 0 || a.Confidence > 1 {
			errs = append(errs, ValidationErrorItem{Code: "EVD-REQ-005", Path: path + ".confidence", Message: "confidence must be within [0,1]"})
		}
		switch a.Status {
		case Satisfied, NotSatisfied, Undetermined, "":
			// empty status means the slot is pending evaluation
		default:
			errs = append(errs, ValidationErrorItem{Code: "EVD-REQ-010", Path: path + ".status", Message: fmt.Sprintf("unknown status %q", a.Status)})
		}
	}
	for _, c := range AllCriteria {
		if _, ok := seen[c]; !ok {
			errs = append(errs, ValidationErrorItem{Code: "EVD-REQ-006", Path: "assessments", Message: fmt.Sprintf("missing criterion slot %s", c)})
		}
	}

	for i, line := range p.CostLines {
		path := fmt.Sprintf("costLines[%d]", i)
		if line.AmountCents < 0 {
			errs = append(errs, ValidationErrorItem{Code: "EVD-REQ-007", Path: path + ".amountCents", Message: "amount must be non-negative"})
		}
		if !KnownExpenseType(line.Type) {
			errs = append(errs, ValidationErrorItem{Code: "EVD-REQ-008", Path: path + ".type", Message: fmt.Sprintf("unknown expense type %q", line.Type)})
		}
	}

	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Time.Before(p.StartDate.Time) {
		errs = append(errs, ValidationErrorItem{Code: "EVD-REQ-009", Path: "endDate", Message: "endDate must be on or after startDate"})
	}
	return errs
}
