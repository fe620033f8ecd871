package entity

import "github.com/joseph-ayodele/invoice-pipeline/constants"

// ExceptionRecord is one escalation item. Structural fields come from the policy table;
// ActionRequired and NextSteps may come from the model.
type ExceptionRecord struct {
	Kind           constants.ExceptionKind `json:"exception_type"`
	Severity       string                  `json:"severity"`
	AssignedTo     constants.ApproverRole  `json:"assigned_to"`
	Priority       constants.Priority      `json:"priority"`
	Escalation     bool                    `json:"escalation_needed"`
	ActionRequired string                  `json:"action_required"`
	NextSteps      []string                `json:"next_steps"`
	Source         string                  `json:"source"`
}
