package entity

import (
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// ResultFields is the external field projection of a processed invoice.
type ResultFields struct {
	InvoiceNumber        *string  `json:"invoice_number"`
	VendorName           *string  `json:"vendor_name"`
	InvoiceDate          *string  `json:"invoice_date"`
	DueDate              *string  `json:"due_date"`
	TotalAmount          *float64 `json:"total_amount"`
	TaxAmount            *float64 `json:"tax_amount"`
	Currency             *string  `json:"currency"`
	PaymentTerms         *string  `json:"payment_terms"`
	ExtractionConfidence *string  `json:"extraction_confidence"`
}

// NewResultFields projects the captured fields onto the external shape.
func NewResultFields(f *ExtractedFields) ResultFields {
	if f == nil {
		return ResultFields{}
	}
	return ResultFields{
		InvoiceNumber:        f.InvoiceNumber,
		VendorName:           f.VendorName,
		InvoiceDate:          f.InvoiceDate,
		DueDate:              f.DueDate,
		TotalAmount:          f.TotalAmount,
		TaxAmount:            f.TaxAmount,
		Currency:             f.Currency,
		PaymentTerms:         f.PaymentTerms,
		ExtractionConfidence: f.Confidence,
	}
}

// PipelineResult is the per-invoice unit returned to callers and appended to the spreadsheet.
type PipelineResult struct {
	ID            string                  `json:"id"`
	Status        constants.ResultStatus  `json:"status"`
	InvoicePath   string                  `json:"invoice_path"`
	Vendor        string                  `json:"vendor"`
	Fields        ResultFields            `json:"fields"`
	ModelUsed     string                  `json:"model_used"`
	Error         string                  `json:"error,omitempty"`
	ProcessedAt   time.Time               `json:"processed_at"`
	DocumentClass constants.DocumentClass `json:"document_class,omitempty"`
	Capture       *ExtractionOutcome      `json:"capture,omitempty"`
	Validation    *ValidationOutcome      `json:"validation,omitempty"`
	Routing       *RoutingDecision        `json:"routing,omitempty"`
	Optimization  *OptimizationResult     `json:"optimization,omitempty"`
	Exceptions    []ExceptionRecord       `json:"exceptions,omitempty"`
	PersistError  string                  `json:"persist_error,omitempty"`
}

// Failed reports whether the invoice could not be processed.
func (r PipelineResult) Failed() bool {
	return r.Status == constants.StatusError
}
