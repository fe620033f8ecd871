package entity

import "github.com/joseph-ayodele/invoice-pipeline/constants"

// CheckResult is the outcome of one validation check.
type CheckResult struct {
	Passed   bool     `json:"passed"`
	Critical bool     `json:"critical"`
	Detail   string   `json:"detail,omitempty"`
	Fields   []string `json:"fields,omitempty"`
}

// Flag is a raised signal with a severity.
type Flag struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
}

// ValidationOutcome is derived from ExtractedFields and the invoice history.
type ValidationOutcome struct {
	Status         constants.ValidationStatus `json:"status"`
	Checks         map[string]CheckResult     `json:"checks"`
	Flags          []Flag                     `json:"flags"`
	Recommendation string                     `json:"recommendation,omitempty"`
	StageStatus    constants.ResultStatus     `json:"stage_status"`
	Error          string                     `json:"error,omitempty"`
}

// HasFlag reports whether a flag of the given type was raised.
func (v ValidationOutcome) HasFlag(flagType string) bool {
	for _, f := range v.Flags {
		if f.Type == flagType {
			return true
		}
	}
	return false
}
