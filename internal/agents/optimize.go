package agents

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

var (
	// "2/10 Net 30", "2% 10 Net 30", "2%/10 Net 30", "2/10, n/30", "1.5/15 N45".
	// The discount and its days need a "%" or "/" between them.
	reDiscountTerms = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:%\s*/?|/)\s*(\d+)\s*,?\s*(?:net|n)\s*/?\s*(\d+)`)
	// "Net 30", "N30", "net/45"
	reNetTerms = regexp.MustCompile(`(?i)^\s*(?:net|n)\s*/?\s*(\d+)\s*(?:days?)?\s*$`)
)

// Terms is a parsed early-payment discount.
type Terms struct {
	DiscountPercent float64
	DiscountDays    int
	NetDays         int
}

// ParseTerms recognizes discount terms. ok is false for anything else, including "Net 30".
func ParseTerms(s string) (Terms, bool) {
	m := reDiscountTerms.FindStringSubmatch(s)
	if m == nil {
		return Terms{}, false
	}
	d, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Terms{}, false
	}
	n, err1 := strconv.Atoi(m[2])
	t, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil {
		return Terms{}, false
	}
	if d <= 0 || d >= 100 || n <= 0 || n >= t {
		return Terms{}, false
	}
	return Terms{DiscountPercent: d, DiscountDays: n, NetDays: t}, true
}

// ParseNetTerms recognizes plain net terms such as "Net 30".
func ParseNetTerms(s string) (int, bool) {
	m := reNetTerms.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	t, err := strconv.Atoi(m[1])
	if err != nil || t <= 0 {
		return 0, false
	}
	return t, true
}

// AnnualizedROI is the yearly return of taking the discount, in percent.
func (t Terms) AnnualizedROI() float64 {
	return t.DiscountPercent / float64(t.NetDays-t.DiscountDays) * 365
}

// Optimize decides whether paying early is worth the discount.
type Optimize struct {
	gateway llm.Gateway
	prompts *llm.PromptLibrary
	policy  Policy
	logger  *slog.Logger
}

func NewOptimize(gw llm.Gateway, prompts *llm.PromptLibrary, policy Policy, logger *slog.Logger) *Optimize {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = llm.NewPromptLibrary()
	}
	return &Optimize{gateway: gw, prompts: prompts, policy: policy, logger: logger}
}

func (o *Optimize) Optimize(ctx context.Context, fields *entity.ExtractedFields) entity.OptimizationResult {
	f := orEmpty(fields)
	terms := strings.TrimSpace(entity.Str(f.PaymentTerms))
	res := entity.OptimizationResult{Source: entity.OptimizationNone, StageStatus: constants.StatusSuccess}

	switch {
	case terms == "":
		if due, ok := parseDate(f.DueDate); ok {
			res.FullPaymentDate = due.Format(time.DateOnly)
			res.RecommendedPaymentDate = res.FullPaymentDate
		}
		res.Recommendation = "No payment terms; pay on the due date."

	default:
		if t, ok := ParseTerms(terms); ok {
			res = o.local(f, t)
			break
		}
		if net, ok := ParseNetTerms(terms); ok {
			res.TermsParsed = true
			res.Source = entity.OptimizationLocal
			res.NetDays = net
			if due, ok := dueDate(f, net); ok {
				res.FullPaymentDate = due.Format(time.DateOnly)
				res.RecommendedPaymentDate = res.FullPaymentDate
			}
			res.Recommendation = fmt.Sprintf("No early-payment discount; pay net %d on the due date.", net)
			break
		}
		res = o.fromModel(ctx, f)
	}

	o.logger.Info("agents.optimize.done",
		"terms", terms,
		"source", res.Source,
		"pay_early", res.PayEarly,
		"roi", res.AnnualizedROI,
		"stage_status", res.StageStatus,
	)
	return res
}

func (o *Optimize) local(f *entity.ExtractedFields, t Terms) entity.OptimizationResult {
	res := entity.OptimizationResult{
		TermsParsed:       true,
		Source:            entity.OptimizationLocal,
		DiscountAvailable: true,
		DiscountPercent:   t.DiscountPercent,
		DiscountDays:      t.DiscountDays,
		NetDays:           t.NetDays,
		AnnualizedROI:     t.AnnualizedROI(),
		StageStatus:       constants.StatusSuccess,
	}
	if f.TotalAmount != nil {
		res.DiscountAmount = round2(*f.TotalAmount * t.DiscountPercent / 100)
	}
	res.PayEarly = res.AnnualizedROI > o.policy.ROIThreshold

	due, hasDue := dueDate(f, t.NetDays)
	if hasDue {
		early := due.AddDate(0, 0, -(t.NetDays - t.DiscountDays))
		res.FullPaymentDate = due.Format(time.DateOnly)
		res.EarlyPaymentDate = early.Format(time.DateOnly)
		res.RecommendedPaymentDate = res.FullPaymentDate
		if res.PayEarly {
			res.RecommendedPaymentDate = res.EarlyPaymentDate
		}
	}

	if res.PayEarly {
		res.SavingsOpportunity = res.DiscountAmount
		res.Recommendation = fmt.Sprintf("Pay early to save %.2f (%.1f%% annualized return).", res.DiscountAmount, res.AnnualizedROI)
	} else {
		res.Recommendation = fmt.Sprintf("Annualized return of %.1f%% is below the %.1f%% threshold; pay on the due date.",
			res.AnnualizedROI, o.policy.ROIThreshold)
	}
	return res
}

// fromModel asks the model to interpret terms the grammar does not cover. Its numbers are advisory.
func (o *Optimize) fromModel(ctx context.Context, f *entity.ExtractedFields) entity.OptimizationResult {
	res := entity.OptimizationResult{Source: entity.OptimizationNone, StageStatus: constants.StatusSuccess}
	if due, ok := parseDate(f.DueDate); ok {
		res.FullPaymentDate = due.Format(time.DateOnly)
		res.RecommendedPaymentDate = res.FullPaymentDate
	}
	if o.gateway == nil {
		res.Recommendation = "Payment terms not recognized; pay on the due date."
		return res
	}

	reply, err := consult(ctx, o.gateway, o.prompts.Get(llm.StageOptimize), map[string]any{"invoice": f}, o.logger)
	if err != nil {
		res.StageStatus = constants.StatusError
		res.Error = err.Error()
		return res
	}
	if reply.Degraded {
		res.Recommendation = "Payment terms not recognized; pay on the due date."
		return res
	}

	rec := reply.Record
	res.Source = entity.OptimizationModel
	res.TermsParsed = boolOr(rec.Bool("payment_terms_parsed"), true)
	res.DiscountAvailable = boolOr(rec.Bool("discount_available"), false)
	res.DiscountPercent = numOr(rec.Number("discount_percent"))
	res.DiscountDays = int(numOr(rec.Number("discount_days")))
	res.NetDays = int(numOr(rec.Number("net_days")))
	res.DiscountAmount = numOr(rec.Number("discount_amount"))
	res.AnnualizedROI = numOr(rec.Number("annualized_roi_percent"))
	res.SavingsOpportunity = numOr(rec.Number("savings_opportunity"))
	res.PayEarly = res.DiscountAvailable && res.AnnualizedROI > o.policy.ROIThreshold
	if s := rec.String("early_payment_date"); s != nil {
		res.EarlyPaymentDate = *s
	}
	if s := rec.String("full_payment_date"); s != nil {
		res.FullPaymentDate = *s
	}
	if s := rec.String("recommended_payment_date"); s != nil {
		res.RecommendedPaymentDate = *s
	}
	if s := rec.String("recommendation"); s != nil {
		res.Recommendation = *s
	}
	return res
}

// dueDate is the printed due date, else invoice date plus the net days.
func dueDate(f *entity.ExtractedFields, netDays int) (time.Time, bool) {
	if d, ok := parseDate(f.DueDate); ok {
		return d, true
	}
	if d, ok := parseDate(f.InvoiceDate); ok {
		return d.AddDate(0, 0, netDays), true
	}
	return time.Time{}, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func numOr(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
