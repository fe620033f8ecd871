package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

// Route picks the approver and priority. The model may only add notes and a GL account.
type Route struct {
	gateway llm.Gateway
	prompts *llm.PromptLibrary
	policy  Policy
	logger  *slog.Logger
	Now     func() time.Time
}

func NewRoute(gw llm.Gateway, prompts *llm.PromptLibrary, policy Policy, logger *slog.Logger) *Route {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = llm.NewPromptLibrary()
	}
	return &Route{gateway: gw, prompts: prompts, policy: policy, logger: logger, Now: time.Now}
}

func (r *Route) Route(ctx context.Context, fields *entity.ExtractedFields, validation entity.ValidationOutcome) entity.RoutingDecision {
	f := orEmpty(fields)
	var amount *float64
	if entity.Provided(f.TotalAmount) {
		amount = f.TotalAmount
	}

	role, priority, reason := Decide(validation.Status, amount)
	d := entity.RoutingDecision{
		ApproverRole: role,
		Priority:     priority,
		Escalation:   priority.Escalates(),
		RequiredBy:   r.requiredBy(priority, f.DueDate),
		Notes:        reason,
		StageStatus:  constants.StatusSuccess,
	}

	if strings.TrimSpace(entity.Str(f.PONumber)) == "" && amount != nil && *amount >= r.policy.PORequiredAbove {
		d.Issues = append(d.Issues, entity.Issue{
			Type:        constants.IssueMissingPO,
			Severity:    constants.SeverityMedium,
			Description: fmt.Sprintf("no purchase order for an invoice of %.2f", *amount),
		})
	}

	if r.policy.Narratives && r.gateway != nil {
		r.consultModel(ctx, f, validation, &d)
	}

	r.logger.Info("agents.route.done",
		"approver", d.ApproverRole,
		"priority", d.Priority,
		"required_by", d.RequiredBy,
		"issues", len(d.Issues),
	)
	return d
}

// Decide is the routing table. A nil amount means the total was not captured.
func Decide(status constants.ValidationStatus, amount *float64) (constants.ApproverRole, constants.Priority, string) {
	switch status {
	case constants.ValidationFail:
		return constants.ComplianceOfficer, constants.PriorityCritical, "Validation failed; compliance review required."
	case constants.ValidationReview:
		return constants.FinanceAnalyst, constants.PriorityHigh, "Validation raised flags that need analyst review."
	}
	if amount == nil {
		return constants.FinanceAnalyst, constants.PriorityHigh, "Invoice total is missing."
	}
	a := *amount
	switch {
	case a < constants.AutoApproveBelow:
		return constants.AutoApprove, constants.PriorityNormal, fmt.Sprintf("Amount %.2f is below the auto-approval limit.", a)
	case a < constants.DeptManagerBelow:
		return constants.DeptManager, constants.PriorityNormal, fmt.Sprintf("Amount %.2f is within department manager authority.", a)
	case a <= constants.FinanceManagerUpTo:
		return constants.FinanceManager, constants.PriorityHigh, fmt.Sprintf("Amount %.2f requires finance manager approval.", a)
	default:
		return constants.CFO, constants.PriorityCritical, fmt.Sprintf("Amount %.2f exceeds finance manager authority.", a)
	}
}

// requiredBy is today plus the SLA, pulled in to the due date when that comes first
// and has not passed.
func (r *Route) requiredBy(p constants.Priority, due *string) string {
	now := r.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	by := today.AddDate(0, 0, p.SLADays())
	if d, ok := parseDate(due); ok && d.Before(by) && !d.Before(today) {
		by = d
	}
	return by.Format(time.DateOnly)
}

func (r *Route) consultModel(ctx context.Context, f *entity.ExtractedFields, v entity.ValidationOutcome, d *entity.RoutingDecision) {
	p := r.prompts.Get(llm.StageRoute)
	reply, err := consult(ctx, r.gateway, p, map[string]any{
		"invoice":    f,
		"validation": map[string]any{"status": v.Status, "flags": v.Flags},
		"decision":   map[string]any{"approver_role": d.ApproverRole, "priority": d.Priority, "required_by": d.RequiredBy},
	}, r.logger)
	if err != nil {
		d.StageStatus = constants.StatusError
		d.Error = err.Error()
		return
	}
	if notes := reply.Record.String("approval_notes"); notes != nil {
		d.Notes = *notes
	}
	if gl := reply.Record.String("gl_account_suggested"); gl != nil {
		d.GLAccount = *gl
	}
}
