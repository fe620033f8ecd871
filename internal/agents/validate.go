package agents

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

// calcTolerance is the allowed rounding gap per arithmetic comparison.
const calcTolerance = 0.01

// SimilarQuery describes the window a duplicate must fall into.
type SimilarQuery struct {
	Vendor          string
	Amount          float64
	Date            time.Time
	AmountTolerance float64 // fraction of Amount, e.g. 0.10
	WindowDays      int
}

// HistoryMatch is a previously processed invoice.
type HistoryMatch struct {
	Vendor        string
	InvoiceNumber string
	Amount        float64
	InvoiceDate   string
	ContentHash   string
}

// HistoryLookup answers questions about previously processed invoices.
type HistoryLookup interface {
	FindSimilar(ctx context.Context, q SimilarQuery) ([]HistoryMatch, error)
	VendorSeen(ctx context.Context, vendor string) (bool, error)
	HashSeen(ctx context.Context, contentHash string) (bool, error)
}

// review-level flags force REVIEW when no critical check failed.
var reviewFlags = map[string]bool{
	constants.FlagDuplicate:     true,
	constants.FlagNewVendor:     true,
	constants.FlagUnusualTerms:  true,
	constants.FlagEmailMismatch: true,
}

// Flags the model is allowed to add.
var advisoryFlags = map[string]bool{
	constants.FlagUnusualTerms:  true,
	constants.FlagEmailMismatch: true,
}

// Validate runs the local checks and, when enabled, asks the model for advisory flags.
type Validate struct {
	gateway llm.Gateway
	prompts *llm.PromptLibrary
	history HistoryLookup
	policy  Policy
	logger  *slog.Logger
}

func NewValidate(gw llm.Gateway, prompts *llm.PromptLibrary, history HistoryLookup, policy Policy, logger *slog.Logger) *Validate {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = llm.NewPromptLibrary()
	}
	return &Validate{gateway: gw, prompts: prompts, history: history, policy: policy, logger: logger}
}

// Validate checks fields against local rules and history. contentHash may be empty.
func (v *Validate) Validate(ctx context.Context, fields *entity.ExtractedFields, contentHash string) entity.ValidationOutcome {
	f := orEmpty(fields)
	out := entity.ValidationOutcome{
		Checks:      map[string]entity.CheckResult{},
		Flags:       []entity.Flag{},
		StageStatus: constants.StatusSuccess,
	}

	out.Checks[constants.CheckCompleteness] = checkCompleteness(f)
	out.Checks[constants.CheckFormat] = checkFormat(f)
	out.Checks[constants.CheckCalculations] = checkCalculations(f)

	dup, dupFlags := v.checkDuplicates(ctx, f, contentHash)
	out.Checks[constants.CheckDuplicates] = dup
	out.Flags = append(out.Flags, dupFlags...)

	fraud, fraudFlags := v.checkFraudSignals(ctx, f)
	out.Checks[constants.CheckFraudSignals] = fraud
	out.Flags = append(out.Flags, fraudFlags...)

	if v.policy.Narratives && v.gateway != nil {
		v.consultModel(ctx, f, &out)
	}

	out.Status = aggregate(out)
	if out.Recommendation == "" {
		out.Recommendation = defaultRecommendation(out.Status)
	}

	v.logger.Info("agents.validate.done",
		"status", out.Status,
		"flags", len(out.Flags),
		"stage_status", out.StageStatus,
	)
	return out
}

func aggregate(out entity.ValidationOutcome) constants.ValidationStatus {
	for _, c := range out.Checks {
		if c.Critical && !c.Passed {
			return constants.ValidationFail
		}
	}
	for _, fl := range out.Flags {
		if reviewFlags[fl.Type] {
			return constants.ValidationReview
		}
	}
	return constants.ValidationPass
}

func defaultRecommendation(s constants.ValidationStatus) string {
	switch s {
	case constants.ValidationFail:
		return "Reject or correct the invoice before approval."
	case constants.ValidationReview:
		return "Review the raised flags before approval."
	}
	return "Proceed with approval routing."
}

func checkCompleteness(f *entity.ExtractedFields) entity.CheckResult {
	var total *float64
	if entity.Provided(f.TotalAmount) {
		total = f.TotalAmount
	}
	val := common.NewValidator().
		Field("invoice_number", f.InvoiceNumber, common.Required).
		Field("vendor_name", f.VendorName, common.Required).
		Field("invoice_date", f.InvoiceDate, common.Required).
		Field("total_amount", total, common.Required)
	if val.HasErrors() {
		return entity.CheckResult{
			Critical: true,
			Detail:   "missing required fields: " + strings.Join(val.Fields(), ", "),
			Fields:   val.Fields(),
		}
	}
	return entity.CheckResult{Passed: true, Critical: true}
}

func checkFormat(f *entity.ExtractedFields) entity.CheckResult {
	val := common.NewValidator().
		Field("invoice_date", f.InvoiceDate, common.ISODate).
		Field("due_date", f.DueDate, common.ISODate).
		Field("total_amount", f.TotalAmount, common.NonNegative).
		Field("subtotal", f.Subtotal, common.NonNegative).
		Field("tax_amount", f.TaxAmount, common.NonNegative).
		Field("currency", f.Currency, common.CurrencyCode)
	if val.HasErrors() {
		return entity.CheckResult{Critical: true, Detail: val.ErrorMessage(), Fields: val.Fields()}
	}
	return entity.CheckResult{Passed: true, Critical: true}
}

func checkCalculations(f *entity.ExtractedFields) entity.CheckResult {
	var problems, fields []string

	if f.Subtotal != nil && len(f.LineItems) > 0 {
		sum, counted := 0.0, 0
		for _, li := range f.LineItems {
			if li.Amount != nil {
				sum += *li.Amount
				counted++
			}
		}
		if counted > 0 && !within(sum, *f.Subtotal) {
			problems = append(problems, fmt.Sprintf("line items sum to %.2f, subtotal is %.2f", sum, *f.Subtotal))
			fields = append(fields, "line_items", "subtotal")
		}
	}
	if f.Subtotal != nil && f.TaxAmount != nil && f.TotalAmount != nil {
		if want := *f.Subtotal + *f.TaxAmount; !within(want, *f.TotalAmount) {
			problems = append(problems, fmt.Sprintf("subtotal + tax is %.2f, total is %.2f", want, *f.TotalAmount))
			fields = append(fields, "total_amount")
		}
	}

	if len(problems) > 0 {
		return entity.CheckResult{Critical: true, Detail: strings.Join(problems, "; "), Fields: fields}
	}
	return entity.CheckResult{Passed: true, Critical: true}
}

func within(a, b float64) bool {
	return math.Abs(a-b) <= calcTolerance+1e-9
}

func (v *Validate) checkDuplicates(ctx context.Context, f *entity.ExtractedFields, contentHash string) (entity.CheckResult, []entity.Flag) {
	if v.history == nil {
		return entity.CheckResult{Passed: true, Detail: "no invoice history configured"}, nil
	}

	var reasons []string
	if contentHash != "" {
		seen, err := v.history.HashSeen(ctx, contentHash)
		if err != nil {
			v.logger.Warn("agents.validate.history_error", "lookup", "hash", "error", err)
		} else if seen {
			reasons = append(reasons, "identical document processed before")
		}
	}

	date, hasDate := parseDate(f.InvoiceDate)
	vendor := strings.TrimSpace(entity.Str(f.VendorName))
	if vendor != "" && entity.Provided(f.TotalAmount) && hasDate {
		matches, err := v.history.FindSimilar(ctx, SimilarQuery{
			Vendor:          vendor,
			Amount:          *f.TotalAmount,
			Date:            date,
			AmountTolerance: v.policy.DuplicateAmountTolerance,
			WindowDays:      v.policy.DuplicateWindowDays,
		})
		if err != nil {
			v.logger.Warn("agents.validate.history_error", "lookup", "similar", "error", err)
		}
		for _, m := range matches {
			reasons = append(reasons, fmt.Sprintf("similar invoice %s for %.2f on %s", m.InvoiceNumber, m.Amount, m.InvoiceDate))
		}
	}

	if len(reasons) == 0 {
		return entity.CheckResult{Passed: true}, nil
	}
	detail := strings.Join(reasons, "; ")
	return entity.CheckResult{Detail: detail}, []entity.Flag{{
		Type:        constants.FlagDuplicate,
		Severity:    constants.SeverityHigh,
		Description: detail,
	}}
}

func (v *Validate) checkFraudSignals(ctx context.Context, f *entity.ExtractedFields) (entity.CheckResult, []entity.Flag) {
	var flags []entity.Flag

	if f.TotalAmount != nil && *f.TotalAmount >= v.policy.HighAmount {
		flags = append(flags, entity.Flag{
			Type:        constants.FlagHighAmount,
			Severity:    constants.SeverityMedium,
			Description: fmt.Sprintf("total %.2f is at or above %.2f", *f.TotalAmount, v.policy.HighAmount),
		})
	}

	if vendor := strings.TrimSpace(entity.Str(f.VendorName)); vendor != "" && v.history != nil {
		seen, err := v.history.VendorSeen(ctx, vendor)
		if err != nil {
			v.logger.Warn("agents.validate.history_error", "lookup", "vendor", "error", err)
		} else if !seen {
			flags = append(flags, entity.Flag{
				Type:        constants.FlagNewVendor,
				Severity:    constants.SeverityLow,
				Description: "no previous invoices from " + vendor,
			})
		}
	}

	if len(flags) == 0 {
		return entity.CheckResult{Passed: true}, nil
	}
	types := make([]string, len(flags))
	for i, fl := range flags {
		types[i] = fl.Type
	}
	return entity.CheckResult{Detail: strings.Join(types, ", ")}, flags
}

// consultModel merges advisory flags and a recommendation. Local checks are never changed.
func (v *Validate) consultModel(ctx context.Context, f *entity.ExtractedFields, out *entity.ValidationOutcome) {
	p := v.prompts.Get(llm.StageValidate)
	reply, err := consult(ctx, v.gateway, p, map[string]any{
		"invoice": f,
		"checks":  out.Checks,
		"flags":   out.Flags,
	}, v.logger)
	if err != nil {
		out.StageStatus = constants.StatusError
		out.Error = err.Error()
		return
	}
	if reply.Degraded {
		return
	}

	for _, item := range reply.Record.List("flags") {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := llm.Record(m)
		typ := strings.ToUpper(strings.TrimSpace(entity.Str(rec.String("type"))))
		if !advisoryFlags[typ] || out.HasFlag(typ) {
			continue
		}
		sev := strings.ToUpper(entity.Str(rec.String("severity")))
		if sev == "" {
			sev = constants.SeverityMedium
		}
		out.Flags = append(out.Flags, entity.Flag{
			Type:        typ,
			Severity:    sev,
			Description: entity.Str(rec.String("description")),
		})
	}
	if r := reply.Record.String("recommendation"); r != nil {
		out.Recommendation = *r
	}
}
