package entity

import "github.com/joseph-ayodele/invoice-pipeline/constants"

// Issue is something a stage surfaced for the exception handler.
type Issue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
}

// RoutingDecision is derived from ExtractedFields and ValidationOutcome.
type RoutingDecision struct {
	ApproverRole constants.ApproverRole `json:"approver_role"`
	Priority     constants.Priority     `json:"priority"`
	RequiredBy   string                 `json:"required_by,omitempty"` // YYYY-MM-DD
	Escalation   bool                   `json:"escalation_needed"`
	Issues       []Issue                `json:"issues,omitempty"`
	Notes        string                 `json:"approval_notes,omitempty"`
	GLAccount    string                 `json:"gl_account_suggested,omitempty"`
	StageStatus  constants.ResultStatus `json:"stage_status"`
	Error        string                 `json:"error,omitempty"`
}
