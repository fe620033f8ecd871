package agents

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

// Where an exception's narrative came from.
const (
	NarrativePolicy = "policy"
	NarrativeModel  = "model"
)

type exceptionPolicy struct {
	assignee  constants.ApproverRole
	priority  constants.Priority
	action    string
	nextSteps []string
}

var exceptionPolicies = map[constants.ExceptionKind]exceptionPolicy{
	constants.ExceptionDuplicate: {constants.APManager, constants.PriorityMedium,
		"Confirm whether this invoice was already paid.",
		[]string{"Compare with the matching invoice in history", "Contact the vendor if both are legitimate", "Void the duplicate"}},
	constants.ExceptionFraudSignal: {constants.ComplianceOfficer, constants.PriorityCritical,
		"Hold payment and investigate the fraud signal.",
		[]string{"Verify vendor contact and bank details through a known channel", "Escalate to compliance", "Document the outcome"}},
	constants.ExceptionValidationFail: {constants.FinanceAnalyst, constants.PriorityHigh,
		"Correct the malformed invoice data.",
		[]string{"Check dates, amounts and currency against the source document", "Request a corrected invoice if needed"}},
	constants.ExceptionMissingPO: {constants.ProcurementManager, constants.PriorityMedium,
		"Obtain or raise a purchase order.",
		[]string{"Locate the purchase order for this spend", "Raise a retrospective PO if policy allows"}},
	constants.ExceptionVendorNew: {constants.VendorManager, constants.PriorityLow,
		"Onboard and verify the new vendor.",
		[]string{"Collect tax and banking details", "Add the vendor to the master file"}},
	constants.ExceptionCalculationError: {constants.FinanceAnalyst, constants.PriorityMedium,
		"Reconcile the invoice arithmetic.",
		[]string{"Recompute line items, subtotal and tax", "Request a corrected invoice from the vendor"}},
	constants.ExceptionMissingRequiredData: {constants.APCoordinator, constants.PriorityLow,
		"Fill in the missing invoice data.",
		[]string{"Read the missing fields from the source document", "Contact the vendor if they are absent"}},
	constants.ExceptionHighAmount: {constants.FinanceManager, constants.PriorityHigh,
		"Review the high-value invoice before payment.",
		[]string{"Confirm budget availability", "Verify goods or services were received"}},
}

// issueKinds maps validation flags, failed check names and routing issues onto exception kinds.
var issueKinds = map[string]constants.ExceptionKind{
	constants.FlagDuplicate:     constants.ExceptionDuplicate,
	constants.FlagNewVendor:     constants.ExceptionVendorNew,
	constants.FlagHighAmount:    constants.ExceptionHighAmount,
	constants.FlagUnusualTerms:  constants.ExceptionFraudSignal,
	constants.FlagEmailMismatch: constants.ExceptionFraudSignal,
	constants.CheckCompleteness: constants.ExceptionMissingRequiredData,
	constants.CheckFormat:       constants.ExceptionValidationFail,
	constants.CheckCalculations: constants.ExceptionCalculationError,
	constants.IssueMissingPO:    constants.ExceptionMissingPO,
}

var severityRank = map[string]int{
	constants.SeverityLow:      1,
	constants.SeverityMedium:   2,
	constants.SeverityHigh:     3,
	constants.SeverityCritical: 4,
}

// CollectIssues gathers what validation and routing surfaced, in a stable order:
// failed critical checks, then flags, then routing issues.
func CollectIssues(v entity.ValidationOutcome, r entity.RoutingDecision) []entity.Issue {
	var issues []entity.Issue
	for _, name := range []string{constants.CheckCompleteness, constants.CheckFormat, constants.CheckCalculations} {
		if c, ok := v.Checks[name]; ok && !c.Passed {
			issues = append(issues, entity.Issue{Type: name, Severity: constants.SeverityHigh, Description: c.Detail})
		}
	}
	for _, fl := range v.Flags {
		issues = append(issues, entity.Issue(fl))
	}
	return append(issues, r.Issues...)
}

// ExceptionHandle turns issues into assigned exception records.
type ExceptionHandle struct {
	gateway llm.Gateway
	prompts *llm.PromptLibrary
	policy  Policy
	logger  *slog.Logger
}

func NewExceptionHandle(gw llm.Gateway, prompts *llm.PromptLibrary, policy Policy, logger *slog.Logger) *ExceptionHandle {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = llm.NewPromptLibrary()
	}
	return &ExceptionHandle{gateway: gw, prompts: prompts, policy: policy, logger: logger}
}

// Handle produces one record per exception kind, in first-seen order.
func (h *ExceptionHandle) Handle(ctx context.Context, fields *entity.ExtractedFields, issues []entity.Issue) []entity.ExceptionRecord {
	records := []entity.ExceptionRecord{}
	index := map[constants.ExceptionKind]int{}

	for _, is := range issues {
		kind, ok := issueKinds[strings.ToUpper(is.Type)]
		if !ok {
			kind, ok = issueKinds[strings.ToLower(is.Type)]
		}
		if !ok {
			kind, ok = constants.CanonicalizeException(is.Type)
		}
		if !ok {
			h.logger.Warn("agents.exception.unmapped_issue", "type", is.Type)
			continue
		}
		if i, seen := index[kind]; seen {
			if severityRank[is.Severity] > severityRank[records[i].Severity] {
				records[i].Severity = is.Severity
			}
			continue
		}
		pol := exceptionPolicies[kind]
		index[kind] = len(records)
		records = append(records, entity.ExceptionRecord{
			Kind:           kind,
			Severity:       is.Severity,
			AssignedTo:     pol.assignee,
			Priority:       pol.priority,
			Escalation:     pol.priority.Escalates(),
			ActionRequired: pol.action,
			NextSteps:      append([]string(nil), pol.nextSteps...),
			Source:         NarrativePolicy,
		})
	}

	if len(records) > 0 && h.policy.Narratives && h.gateway != nil {
		h.consultModel(ctx, orEmpty(fields), records, index)
	}

	h.logger.Info("agents.exception.done", "issues", len(issues), "records", len(records))
	return records
}

// consultModel fills action text and next steps for matching kinds only.
func (h *ExceptionHandle) consultModel(ctx context.Context, f *entity.ExtractedFields, records []entity.ExceptionRecord, index map[constants.ExceptionKind]int) {
	reply, err := consult(ctx, h.gateway, h.prompts.Get(llm.StageException), map[string]any{
		"invoice":    f,
		"exceptions": records,
	}, h.logger)
	if err != nil || reply.Degraded {
		return
	}

	items := reply.Record.List("exceptions")
	if len(items) == 0 {
		// single-exception replies put the fields at the top level
		items = []any{map[string]any(reply.Record)}
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := llm.Record(m)
		kind, ok := constants.CanonicalizeException(entity.Str(rec.String("exception_type")))
		if !ok {
			continue
		}
		i, ok := index[kind]
		if !ok {
			continue
		}
		touched := false
		if a := rec.String("action_required"); a != nil && strings.TrimSpace(*a) != "" {
			records[i].ActionRequired = strings.TrimSpace(*a)
			touched = true
		}
		if steps := rec.Strings("next_steps"); len(steps) > 0 {
			records[i].NextSteps = steps
			touched = true
		}
		if touched {
			records[i].Source = NarrativeModel
		}
	}
}
