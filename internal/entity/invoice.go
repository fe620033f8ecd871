package entity

import (
	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// InvoiceDocument is a source file read into memory. It is immutable once loaded.
type InvoiceDocument struct {
	Path        string
	Data        []byte
	MediaType   string
	Media       constants.MediaKind
	Class       constants.DocumentClass
	ContentHash string
	Pages       int // PDF page count, 0 when unknown or not a PDF
}

// LineItem is one invoice line as read by the model.
type LineItem struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Amount      *float64 `json:"amount"`
}

// ExtractedFields is the capture stage output. Every field is optional.
type ExtractedFields struct {
	InvoiceNumber *string    `json:"invoice_number"`
	VendorName    *string    `json:"vendor_name"`
	InvoiceDate   *string    `json:"invoice_date"` // YYYY-MM-DD
	DueDate       *string    `json:"due_date"`     // YYYY-MM-DD
	TotalAmount   *float64   `json:"total_amount"`
	Subtotal      *float64   `json:"subtotal"`
	TaxAmount     *float64   `json:"tax_amount"`
	Currency      *string    `json:"currency"` // ISO 4217
	PaymentTerms  *string    `json:"payment_terms"`
	PONumber      *string    `json:"po_number"`
	LineItems     []LineItem `json:"line_items"`
	Confidence    *string    `json:"confidence"` // high | medium | low
	DocumentType  *string    `json:"document_type"`
	Notes         *string    `json:"notes"`
}

// ExtractionOutcome is what the capture stage returns for one document.
type ExtractionOutcome struct {
	Status   constants.ResultStatus  `json:"status"`
	Fields   *ExtractedFields        `json:"fields,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Class    constants.DocumentClass `json:"document_class"`
	Strategy string                  `json:"strategy,omitempty"`
	Degraded bool                    `json:"degraded,omitempty"`
}

// Provided reports whether a numeric field carries a usable value. Zero counts as not provided.
func Provided(v *float64) bool {
	return v != nil && *v != 0
}

// Str dereferences an optional string, returning "" for nil.
func Str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
