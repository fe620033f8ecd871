package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyInvoiceID contextKey = "invoice_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithInvoiceID tags the context with the pipeline result id being produced.
func WithInvoiceID(ctx context.Context, invoiceID string) context.Context {
	return context.WithValue(ctx, ContextKeyInvoiceID, invoiceID)
}

// InvoiceIDFromContext extracts the invoice ID from context
func InvoiceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyInvoiceID).(string); ok {
		return id
	}
	return ""
}
