package agents

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

var lib = llm.NewPromptLibrary()

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGateway answers per stage by matching the instruction, the last part of every request.
type fakeGateway struct {
	replies map[llm.Stage]string
	err     error
	calls   map[llm.Stage]int
	invoke  func(parts []llm.Part) (string, error)
}

func newFakeGateway(replies map[llm.Stage]string) *fakeGateway {
	return &fakeGateway{replies: replies, calls: map[llm.Stage]int{}}
}

func (g *fakeGateway) Model() string { return "fake-model" }

func (g *fakeGateway) Invoke(_ context.Context, parts []llm.Part) (string, error) {
	if g.invoke != nil {
		return g.invoke(parts)
	}
	instruction := parts[len(parts)-1].Text
	for _, stage := range []llm.Stage{llm.StageCaptureHandwritten, llm.StageCaptureDigital, llm.StageValidate,
		llm.StageRoute, llm.StageOptimize, llm.StageException} {
		if lib.Get(stage).Instruction == instruction {
			g.calls[stage]++
			if g.err != nil {
				return "", g.err
			}
			return g.replies[stage], nil
		}
	}
	return "", llm.NewGatewayError(llm.KindInvalidRequest, "unknown instruction")
}

func (g *fakeGateway) total() int {
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

// fakeHistory is an in-memory HistoryLookup.
type fakeHistory struct {
	rows []HistoryMatch
	err  error
}

func (h *fakeHistory) FindSimilar(_ context.Context, q SimilarQuery) ([]HistoryMatch, error) {
	if h.err != nil {
		return nil, h.err
	}
	var out []HistoryMatch
	for _, r := range h.rows {
		d, err := time.Parse(time.DateOnly, r.InvoiceDate)
		if err != nil || !strings.EqualFold(r.Vendor, q.Vendor) {
			continue
		}
		lo, hi := q.Amount*(1-q.AmountTolerance), q.Amount*(1+q.AmountTolerance)
		window := time.Duration(q.WindowDays) * 24 * time.Hour
		if r.Amount >= lo && r.Amount <= hi && d.Sub(q.Date) <= window && q.Date.Sub(d) <= window {
			out = append(out, r)
		}
	}
	return out, nil
}

func (h *fakeHistory) VendorSeen(_ context.Context, vendor string) (bool, error) {
	if h.err != nil {
		return false, h.err
	}
	for _, r := range h.rows {
		if strings.EqualFold(r.Vendor, vendor) {
			return true, nil
		}
	}
	return false, nil
}

func (h *fakeHistory) HashSeen(_ context.Context, hash string) (bool, error) {
	if h.err != nil {
		return false, h.err
	}
	for _, r := range h.rows {
		if r.ContentHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func sp(s string) *string    { return &s }
func fp(f float64) *float64 { return &f }

// completeInvoice passes every local check.
func completeInvoice() *entity.ExtractedFields {
	return &entity.ExtractedFields{
		InvoiceNumber: sp("INV-1001"),
		VendorName:    sp("Acme Supplies"),
		InvoiceDate:   sp("2025-11-17"),
		DueDate:       sp("2025-12-17"),
		TotalAmount:   fp(1080),
		Subtotal:      fp(1000),
		TaxAmount:     fp(80),
		Currency:      sp("USD"),
		PaymentTerms:  sp("Net 30"),
		LineItems: []entity.LineItem{
			{Description: sp("Paper"), Amount: fp(600)},
			{Description: sp("Toner"), Amount: fp(400)},
		},
	}
}

func knownVendorHistory() *fakeHistory {
	return &fakeHistory{rows: []HistoryMatch{
		{Vendor: "Acme Supplies", InvoiceNumber: "INV-0001", Amount: 12, InvoiceDate: "2024-01-01", ContentHash: "old"},
	}}
}
