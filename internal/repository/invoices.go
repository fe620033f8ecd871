package repository

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/internal/agents"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// HistoryEntry is one processed invoice remembered for duplicate and vendor checks.
type HistoryEntry struct {
	Vendor        string
	InvoiceNumber string
	Amount        *float64
	InvoiceDate   string
	ContentHash   string
	ProcessedAt   time.Time
}

// InvoiceHistoryRepository records processed invoices and answers history lookups.
type InvoiceHistoryRepository interface {
	agents.HistoryLookup
	Record(ctx context.Context, e HistoryEntry) error
}

type invoiceHistoryRepo struct {
	store  *Store
	logger *slog.Logger
}

func NewInvoiceHistoryRepository(store *Store, logger *slog.Logger) InvoiceHistoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceHistoryRepo{store: store, logger: logger}
}

func vendorKey(vendor string) string {
	return strings.ToLower(strings.Join(strings.Fields(vendor), " "))
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *invoiceHistoryRepo) Record(ctx context.Context, e HistoryEntry) error {
	if strings.TrimSpace(e.Vendor) == "" && e.ContentHash == "" {
		return nil
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}
	var amount any
	if e.Amount != nil {
		amount = *e.Amount
	}
	_, err := r.store.DB.ExecContext(ctx, r.store.rebind(`
		INSERT INTO invoice_history (id, vendor, vendor_key, invoice_number, amount, invoice_date, content_hash, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		uuid.NewString(),
		strings.TrimSpace(e.Vendor),
		vendorKey(e.Vendor),
		nullIfEmpty(e.InvoiceNumber),
		amount,
		nullIfEmpty(e.InvoiceDate),
		nullIfEmpty(e.ContentHash),
		e.ProcessedAt,
	)
	if err != nil {
		r.logger.Error("failed to record invoice history", "vendor", e.Vendor, "invoice_number", e.InvoiceNumber, "error", err)
		return common.NewAppError(common.CodeDatabase, "record invoice history", err)
	}
	return nil
}

func (r *invoiceHistoryRepo) FindSimilar(ctx context.Context, q agents.SimilarQuery) ([]agents.HistoryMatch, error) {
	lo, hi := q.Amount*(1-q.AmountTolerance), q.Amount*(1+q.AmountTolerance)
	lo, hi = math.Min(lo, hi), math.Max(lo, hi)
	window := q.WindowDays
	from := q.Date.AddDate(0, 0, -window).Format(time.DateOnly)
	to := q.Date.AddDate(0, 0, window).Format(time.DateOnly)

	rows, err := r.store.DB.QueryContext(ctx, r.store.rebind(`
		SELECT vendor, COALESCE(invoice_number, ''), amount, invoice_date, COALESCE(content_hash, '')
		FROM invoice_history
		WHERE vendor_key = ? AND amount BETWEEN ? AND ? AND invoice_date BETWEEN ? AND ?
		ORDER BY invoice_date`),
		vendorKey(q.Vendor), lo, hi, from, to,
	)
	if err != nil {
		r.logger.Error("failed to query similar invoices", "vendor", q.Vendor, "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "find similar invoices", err)
	}
	defer rows.Close()

	var out []agents.HistoryMatch
	for rows.Next() {
		var m agents.HistoryMatch
		if err := rows.Scan(&m.Vendor, &m.InvoiceNumber, &m.Amount, &m.InvoiceDate, &m.ContentHash); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "scan similar invoice", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "iterate similar invoices", err)
	}
	return out, nil
}

func (r *invoiceHistoryRepo) VendorSeen(ctx context.Context, vendor string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM invoice_history WHERE vendor_key = ?)`, vendorKey(vendor))
}

func (r *invoiceHistoryRepo) HashSeen(ctx context.Context, contentHash string) (bool, error) {
	if contentHash == "" {
		return false, nil
	}
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM invoice_history WHERE content_hash = ?)`, contentHash)
}

func (r *invoiceHistoryRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	var found bool
	if err := r.store.DB.QueryRowContext(ctx, r.store.rebind(query), arg).Scan(&found); err != nil {
		r.logger.Error("history lookup failed", "error", err)
		return false, common.NewAppError(common.CodeDatabase, "history lookup", err)
	}
	return found, nil
}
