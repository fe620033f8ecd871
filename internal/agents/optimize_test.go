package agents

import (
	"context"
	"math"
	"testing"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

func TestParseTerms(t *testing.T) {
	tests := []struct {
		in   string
		want Terms
		ok   bool
	}{
		{"2/10 Net 30", Terms{2, 10, 30}, true},
		{"2% 10 Net 30", Terms{2, 10, 30}, true},
		{"2%/10 Net 30", Terms{2, 10, 30}, true},
		{"2/10, n/30", Terms{2, 10, 30}, true},
		{"2/10 N30", Terms{2, 10, 30}, true},
		{"Terms: 1.5/15 net 45 days", Terms{1.5, 15, 45}, true},
		{"2/30 Net 30", Terms{}, false},
		{"0/10 Net 30", Terms{}, false},
		{"Net 30", Terms{}, false},
		{"15 Net 30", Terms{}, false},
		{"45 Net 60", Terms{}, false},
		{"Due on receipt", Terms{}, false},
		{"", Terms{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTerms(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseTerms(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAnnualizedROI(t *testing.T) {
	for _, tc := range []struct {
		terms Terms
		want  float64
	}{
		{Terms{2, 10, 30}, 36.5},
		{Terms{1, 10, 30}, 18.25},
		{Terms{2, 10, 45}, 2.0 / 35 * 365},
		{Terms{0.5, 10, 60}, 3.65},
	} {
		if got := tc.terms.AnnualizedROI(); math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("%+v ROI = %v, want %v", tc.terms, got, tc.want)
		}
	}
}

func TestOptimize_Local(t *testing.T) {
	tests := []struct {
		name       string
		fields     *entity.ExtractedFields
		wantSource string
		wantEarly  bool
		wantSaving float64
		wantDate   string
	}{
		{
			name: "worthwhile discount",
			fields: &entity.ExtractedFields{TotalAmount: fp(100000), PaymentTerms: sp("2/10 Net 30"),
				InvoiceDate: sp("2025-11-17"), DueDate: sp("2025-12-17")},
			wantSource: entity.OptimizationLocal, wantEarly: true, wantSaving: 2000, wantDate: "2025-11-27",
		},
		{
			name: "due date derived from invoice date",
			fields: &entity.ExtractedFields{TotalAmount: fp(1000), PaymentTerms: sp("2/10 Net 30"),
				InvoiceDate: sp("2025-01-01")},
			wantSource: entity.OptimizationLocal, wantEarly: true, wantSaving: 20, wantDate: "2025-01-11",
		},
		{
			name: "return below threshold",
			fields: &entity.ExtractedFields{TotalAmount: fp(1000), PaymentTerms: sp("0.5/10 Net 60"),
				DueDate: sp("2025-03-01")},
			wantSource: entity.OptimizationLocal, wantDate: "2025-03-01",
		},
		{
			name:       "plain net terms",
			fields:     &entity.ExtractedFields{TotalAmount: fp(1000), PaymentTerms: sp("Net 30"), InvoiceDate: sp("2025-01-01")},
			wantSource: entity.OptimizationLocal, wantDate: "2025-01-31",
		},
		{
			name:       "no terms",
			fields:     &entity.ExtractedFields{TotalAmount: fp(1000), DueDate: sp("2025-02-01")},
			wantSource: entity.OptimizationNone, wantDate: "2025-02-01",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway(nil)
			res := NewOptimize(gw, lib, DefaultPolicy(), quietLogger()).Optimize(context.Background(), tt.fields)

			if gw.total() != 0 {
				t.Errorf("model should not be called, calls = %v", gw.calls)
			}
			if res.Source != tt.wantSource || res.PayEarly != tt.wantEarly {
				t.Errorf("result = %+v", res)
			}
			if res.SavingsOpportunity != tt.wantSaving {
				t.Errorf("SavingsOpportunity = %v, want %v", res.SavingsOpportunity, tt.wantSaving)
			}
			if res.RecommendedPaymentDate != tt.wantDate {
				t.Errorf("RecommendedPaymentDate = %s, want %s", res.RecommendedPaymentDate, tt.wantDate)
			}
		})
	}
}

func TestOptimize_DiscountDetail(t *testing.T) {
	res := NewOptimize(nil, lib, DefaultPolicy(), quietLogger()).Optimize(context.Background(), &entity.ExtractedFields{
		TotalAmount: fp(100000), PaymentTerms: sp("2/10 Net 30"), DueDate: sp("2025-12-17"),
	})
	if !res.TermsParsed || !res.DiscountAvailable || res.DiscountAmount != 2000 {
		t.Errorf("result = %+v", res)
	}
	if math.Abs(res.AnnualizedROI-36.5) > 1e-6 {
		t.Errorf("ROI = %v", res.AnnualizedROI)
	}
	if res.EarlyPaymentDate != "2025-11-27" || res.FullPaymentDate != "2025-12-17" {
		t.Errorf("dates = %s / %s", res.EarlyPaymentDate, res.FullPaymentDate)
	}
}

func TestOptimize_ModelFallback(t *testing.T) {
	fields := &entity.ExtractedFields{TotalAmount: fp(5000), PaymentTerms: sp("3% if paid within a fortnight, else 60 days"),
		DueDate: sp("2025-03-01")}

	gw := newFakeGateway(map[llm.Stage]string{llm.StageOptimize: `{"payment_optimization":{"payment_terms_parsed":true,
		"discount_available":true,"discount_percent":3,"discount_days":14,"net_days":60,"discount_amount":150,
		"annualized_roi_percent":"23.8","recommended_payment_date":"2025-01-14","recommendation":"Take the discount."}}`})
	res := NewOptimize(gw, lib, DefaultPolicy(), quietLogger()).Optimize(context.Background(), fields)

	if gw.calls[llm.StageOptimize] != 1 {
		t.Fatalf("calls = %v", gw.calls)
	}
	if res.Source != entity.OptimizationModel || !res.PayEarly || res.DiscountAmount != 150 || res.NetDays != 60 {
		t.Errorf("result = %+v", res)
	}
	if res.RecommendedPaymentDate != "2025-01-14" {
		t.Errorf("RecommendedPaymentDate = %s", res.RecommendedPaymentDate)
	}

	gw.err = llm.NewGatewayError(llm.KindServer, "down")
	res = NewOptimize(gw, lib, DefaultPolicy(), quietLogger()).Optimize(context.Background(), fields)
	if res.StageStatus != constants.StatusError || res.Source != entity.OptimizationNone || res.RecommendedPaymentDate != "2025-03-01" {
		t.Errorf("result after failure = %+v", res)
	}
}
