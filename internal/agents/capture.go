package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

// Capture reads invoice fields out of a document with the model.
type Capture struct {
	gateway llm.Gateway
	prompts *llm.PromptLibrary
	logger  *slog.Logger
}

func NewCapture(gw llm.Gateway, prompts *llm.PromptLibrary, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = llm.NewPromptLibrary()
	}
	return &Capture{gateway: gw, prompts: prompts, logger: logger}
}

// Capture picks the handwritten or digital prompt from the document class. A gateway failure
// yields an error outcome; an unreadable reply yields a degraded success.
func (c *Capture) Capture(ctx context.Context, doc *entity.InvoiceDocument) entity.ExtractionOutcome {
	start := time.Now()
	class := doc.Class
	if class == "" {
		class = constants.Digital
	}
	stage := llm.StageCaptureDigital
	if class == constants.Handwritten {
		stage = llm.StageCaptureHandwritten
	}
	p := c.prompts.Get(stage)

	c.logger.Info("agents.capture.start", "path", doc.Path, "class", class,
		"media_type", doc.MediaType, "bytes", len(doc.Data), "prompt_version", p.Version)

	raw, err := c.gateway.Invoke(ctx, []llm.Part{
		llm.Inline(doc.MediaType, doc.Data),
		llm.Text(p.Instruction),
	})
	if err != nil {
		c.logger.Error("agents.capture.gateway_error", "path", doc.Path, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return entity.ExtractionOutcome{
			Status: constants.StatusError,
			Error:  err.Error(),
			Class:  class,
		}
	}

	out := llm.Normalize(raw, p.Fields)
	if out.SchemaErr != nil {
		c.logger.Warn("agents.capture.schema_mismatch", "path", doc.Path, "error", out.SchemaErr)
	}
	fields := FieldsFromRecord(out.Record)
	if out.Degraded {
		fields.Confidence = entity.Ptr("low")
	}

	c.logger.Info("agents.capture.ok",
		"path", doc.Path,
		"strategy", out.Strategy,
		"shape", llm.ShapeName(out.Shape),
		"degraded", out.Degraded,
		"vendor", entity.Str(fields.VendorName),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.ExtractionOutcome{
		Status:   constants.StatusSuccess,
		Fields:   fields,
		Class:    class,
		Strategy: string(out.Strategy),
		Degraded: out.Degraded,
	}
}

// FieldsFromRecord maps a normalized capture record onto ExtractedFields.
func FieldsFromRecord(rec llm.Record) *entity.ExtractedFields {
	f := &entity.ExtractedFields{
		InvoiceNumber: rec.String("invoice_number"),
		VendorName:    rec.String("vendor_name"),
		InvoiceDate:   rec.String("invoice_date"),
		DueDate:       rec.String("due_date"),
		TotalAmount:   rec.Number("total_amount"),
		Subtotal:      rec.Number("subtotal"),
		TaxAmount:     rec.Number("tax_amount"),
		Currency:      rec.String("currency"),
		PaymentTerms:  rec.String("payment_terms"),
		PONumber:      rec.String("po_number"),
		Confidence:    rec.String("confidence"),
		DocumentType:  rec.String("document_type"),
		Notes:         rec.String("notes"),
	}
	for _, item := range rec.List("line_items") {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		li := llm.Record(m)
		f.LineItems = append(f.LineItems, entity.LineItem{
			Description: li.String("description"),
			Quantity:    li.Number("quantity"),
			UnitPrice:   li.Number("unit_price"),
			Amount:      li.Number("amount"),
		})
	}
	return f
}
