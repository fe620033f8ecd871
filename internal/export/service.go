package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

const (
	DefaultSheet = "Processed Invoices"
	ReportSheet  = "Invoice Report"
)

var appendHeaders = []string{
	"Processed Date",
	"Status",
	"Source Path",
	"Vendor Name",
	"Invoice Number",
	"Invoice Date",
	"Due Date",
	"Amount",
	"Currency",
	"Tax Amount",
	"Payment Terms",
	"Model Used",
}

var reportHeaders = []string{
	"Date Processed",
	"Status",
	"Vendor",
	"Invoice #",
	"Amount",
	"Currency",
	"Due Date",
}

// PersistenceError means the spreadsheet could not be read or written. The pipeline result
// it concerns is still valid.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const (
	defaultLockTimeout = 30 * time.Second
	staleLockAge       = 2 * time.Minute
	lockPollInterval   = 50 * time.Millisecond
)

// Exporter appends results to a workbook, one row per invoice. Appends to the same path are
// serialized within the process by a mutex and across processes by a lock file next to the
// workbook, so the daemon and the batch CLI can share an output file.
type Exporter struct {
	sheet       string
	lockTimeout time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithLockTimeout bounds how long Append waits for another writer's lock file.
func WithLockTimeout(d time.Duration) ExporterOption {
	return func(e *Exporter) {
		if d > 0 {
			e.lockTimeout = d
		}
	}
}

func NewExporter(sheet string, logger *slog.Logger, opts ...ExporterOption) *Exporter {
	if sheet == "" {
		sheet = DefaultSheet
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Exporter{sheet: sheet, lockTimeout: defaultLockTimeout, logger: logger, locks: map[string]*sync.Mutex{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) lockFor(path string) *sync.Mutex {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// Append adds one row per result to path, creating the workbook when it does not exist.
// An existing file that cannot be opened is left untouched and reported as a PersistenceError.
func (e *Exporter) Append(ctx context.Context, path string, results ...entity.PipelineResult) error {
	if len(results) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}

	l := e.lockFor(path)
	l.Lock()
	defer l.Unlock()

	unlock, err := e.acquireFileLock(ctx, path)
	if err != nil {
		e.logger.Error("export.xlsx.lock_failed", "path", path, "error", err)
		return &PersistenceError{Path: path, Err: err}
	}
	defer unlock()

	start := time.Now()
	f, created, err := e.openOrCreate(path)
	if err != nil {
		e.logger.Error("export.xlsx.open_failed", "path", path, "error", err)
		return &PersistenceError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(e.sheet)
	if err != nil {
		return &PersistenceError{Path: path, Err: fmt.Errorf("read rows: %w", err)}
	}
	next := len(rows) + 1
	if next == 1 {
		if err := writeRow(f, e.sheet, 1, stringsToAny(appendHeaders)); err != nil {
			return &PersistenceError{Path: path, Err: err}
		}
		next = 2
	}

	for _, r := range results {
		if err := writeRow(f, e.sheet, next, appendRow(r)); err != nil {
			return &PersistenceError{Path: path, Err: err}
		}
		next++
	}
	if err := autoWidth(f, e.sheet, len(appendHeaders), 50); err != nil {
		e.logger.Warn("export.xlsx.col_width_failed", "path", path, "error", err)
	}

	if created {
		err = f.SaveAs(path)
	} else {
		err = f.Save()
	}
	if err != nil {
		e.logger.Error("export.xlsx.save_failed", "path", path, "error", err)
		return &PersistenceError{Path: path, Err: err}
	}

	e.logger.Info("export.xlsx.append_ok",
		"path", path,
		"rows", len(results),
		"created", created,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// acquireFileLock creates path+".lock" exclusively, polling until ctx is done or the lock
// timeout passes. A lock file older than staleLockAge is treated as left by a crashed writer.
func (e *Exporter) acquireFileLock(ctx context.Context, path string) (func(), error) {
	lockPath := path + ".lock"
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return func() {
				if err := os.Remove(lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
					e.logger.Warn("export.xlsx.unlock_failed", "path", lockPath, "error", err)
				}
			}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		if st, serr := os.Stat(lockPath); serr == nil && time.Since(st.ModTime()) > staleLockAge {
			if rerr := os.Remove(lockPath); rerr == nil {
				e.logger.Warn("export.xlsx.stale_lock_removed", "path", lockPath, "modified", st.ModTime())
				continue
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("workbook is locked by another writer (%s): %w", lockPath, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (e *Exporter) openOrCreate(path string) (*excelize.File, bool, error) {
	_, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, false, err
			}
		}
		f := excelize.NewFile()
		if err := ensureSheet(f, e.sheet); err != nil {
			_ = f.Close()
			return nil, false, err
		}
		return f, true, nil
	case err != nil:
		return nil, false, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("open existing workbook: %w", err)
	}
	if err := ensureSheet(f, e.sheet); err != nil {
		_ = f.Close()
		return nil, false, err
	}
	return f, false, nil
}

// ensureSheet makes sheet exist and active. A fresh workbook's default sheet is renamed.
func ensureSheet(f *excelize.File, sheet string) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx == -1 {
		if list := f.GetSheetList(); len(list) == 1 && list[0] == "Sheet1" {
			rows, _ := f.GetRows("Sheet1")
			if len(rows) == 0 {
				if err := f.SetSheetName("Sheet1", sheet); err != nil {
					return err
				}
				idx, _ = f.GetSheetIndex(sheet)
			}
		}
	}
	if idx == -1 {
		if idx, err = f.NewSheet(sheet); err != nil {
			return err
		}
	}
	f.SetActiveSheet(idx)
	return nil
}

// WriteReport writes a fresh summary workbook of all results, replacing path.
func WriteReport(path string, results []entity.PipelineResult, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := ensureSheet(f, ReportSheet); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	if err := writeRow(f, ReportSheet, 1, stringsToAny(reportHeaders)); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	for i, r := range results {
		if err := writeRow(f, ReportSheet, i+2, reportRow(r)); err != nil {
			return &PersistenceError{Path: path, Err: err}
		}
	}
	if err := autoWidth(f, ReportSheet, len(reportHeaders), 30); err != nil {
		logger.Warn("export.xlsx.col_width_failed", "path", path, "error", err)
	}
	if err := f.SaveAs(path); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	logger.Info("export.xlsx.report_ok", "path", path, "rows", len(results))
	return nil
}

func appendRow(r entity.PipelineResult) []any {
	fl := r.Fields
	return []any{
		r.ProcessedAt.Local().Format(time.DateTime),
		string(r.Status),
		r.InvoicePath,
		r.Vendor,
		entity.Str(fl.InvoiceNumber),
		entity.Str(fl.InvoiceDate),
		entity.Str(fl.DueDate),
		amountCell(fl.TotalAmount),
		entity.Str(fl.Currency),
		amountCell(fl.TaxAmount),
		entity.Str(fl.PaymentTerms),
		r.ModelUsed,
	}
}

func reportRow(r entity.PipelineResult) []any {
	fl := r.Fields
	return []any{
		r.ProcessedAt.Local().Format(time.DateOnly),
		string(r.Status),
		r.Vendor,
		entity.Str(fl.InvoiceNumber),
		amountCell(fl.TotalAmount),
		entity.Str(fl.Currency),
		entity.Str(fl.DueDate),
	}
}

// amountCell renders missing and zero amounts as blank cells.
func amountCell(v *float64) any {
	if !entity.Provided(v) {
		return ""
	}
	return *v
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// autoWidth sizes each column to its longest value plus padding, capped at limit.
func autoWidth(f *excelize.File, sheet string, cols, limit int) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	for c := 0; c < cols; c++ {
		width := 0
		for _, row := range rows {
			if c < len(row) && len([]rune(row[c])) > width {
				width = len([]rune(row[c]))
			}
		}
		width += 2
		if width > limit {
			width = limit
		}
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, float64(width)); err != nil {
			return err
		}
	}
	return nil
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
