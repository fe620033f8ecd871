// Package pipeline runs the stage agents over invoices, one at a time or as a batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/agents"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/document"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/repository"
)

// Appender persists results to a spreadsheet.
type Appender interface {
	Append(ctx context.Context, path string, results ...entity.PipelineResult) error
}

// Request is one invoice to process. ID is generated when empty.
type Request struct {
	ID         string
	Path       string
	VendorHint string
}

// Options wires optional collaborators. Nil stores are skipped.
type Options struct {
	History        repository.InvoiceHistoryRepository
	Results        repository.ResultRepository
	Exporter       Appender
	ExportPath     string
	Workers        int
	InvoiceTimeout time.Duration
	Now            func() time.Time
}

// Orchestrator runs Capture, Validate, Route, Optimize and ExceptionHandle in that order.
type Orchestrator struct {
	logger  *slog.Logger
	gateway llm.Gateway
	opts    Options

	capture    *agents.Capture
	validate   *agents.Validate
	route      *agents.Route
	optimize   *agents.Optimize
	exceptions *agents.ExceptionHandle
}

func NewOrchestrator(gw llm.Gateway, policy agents.Policy, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.InvoiceTimeout <= 0 {
		opts.InvoiceTimeout = 3 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	prompts := llm.NewPromptLibrary()

	var history agents.HistoryLookup
	if opts.History != nil {
		history = opts.History
	}
	route := agents.NewRoute(gw, prompts, policy, logger)
	route.Now = opts.Now

	return &Orchestrator{
		logger:     logger,
		gateway:    gw,
		opts:       opts,
		capture:    agents.NewCapture(gw, prompts, logger),
		validate:   agents.NewValidate(gw, prompts, history, policy, logger),
		route:      route,
		optimize:   agents.NewOptimize(gw, prompts, policy, logger),
		exceptions: agents.NewExceptionHandle(gw, prompts, policy, logger),
	}
}

// Model is the model id reported on results.
func (o *Orchestrator) Model() string {
	return o.gateway.Model()
}

// Process runs one invoice end to end. It never returns an error: failures are reported on
// the result, and a panic in any stage becomes an error result.
func (o *Orchestrator) Process(ctx context.Context, req Request) (res entity.PipelineResult) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx = common.WithInvoiceID(ctx, req.ID)
	start := time.Now()
	res = entity.PipelineResult{
		ID:          req.ID,
		Status:      constants.StatusError,
		InvoicePath: req.Path,
		Vendor:      req.VendorHint,
		ModelUsed:   o.gateway.Model(),
		ProcessedAt: o.opts.Now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline.panic", "id", req.ID, "path", req.Path, "panic", r, "stack", string(debug.Stack()))
			res.Status = constants.StatusError
			res.Error = fmt.Sprintf("internal error: %v", r)
		}
		o.persist(ctx, &res)
		o.logger.Info("pipeline.done",
			"id", res.ID,
			"path", res.InvoicePath,
			"status", res.Status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}()

	doc, err := document.Load(req.Path, o.logger)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.DocumentClass = doc.Class

	capture := o.capture.Capture(ctx, doc)
	res.Capture = &capture
	if capture.Status == constants.StatusError {
		res.Error = "capture failed: " + capture.Error
		return res
	}
	o.logger.Info("pipeline.capture.ok", "id", req.ID, "strategy", capture.Strategy, "degraded", capture.Degraded)

	fields := capture.Fields
	res.Fields = entity.NewResultFields(fields)
	if v := entity.Str(fields.VendorName); v != "" {
		res.Vendor = v
	}

	validation := o.validate.Validate(ctx, fields, doc.ContentHash)
	res.Validation = &validation

	routing := o.route.Route(ctx, fields, validation)
	res.Routing = &routing

	optimization := o.optimize.Optimize(ctx, fields)
	res.Optimization = &optimization

	res.Exceptions = o.exceptions.Handle(ctx, fields, agents.CollectIssues(validation, routing))
	res.Status = constants.StatusSuccess

	if o.opts.History != nil {
		err := o.opts.History.Record(ctx, repository.HistoryEntry{
			Vendor:        entity.Str(fields.VendorName),
			InvoiceNumber: entity.Str(fields.InvoiceNumber),
			Amount:        fields.TotalAmount,
			InvoiceDate:   entity.Str(fields.InvoiceDate),
			ContentHash:   doc.ContentHash,
			ProcessedAt:   res.ProcessedAt,
		})
		if err != nil {
			o.logger.Warn("pipeline.history.record_failed", "id", req.ID, "error", err)
		}
	}
	return res
}

// persist stores the result and appends it to the spreadsheet. Failures never change the
// result status.
func (o *Orchestrator) persist(ctx context.Context, res *entity.PipelineResult) {
	if o.opts.Exporter != nil && o.opts.ExportPath != "" {
		if err := o.opts.Exporter.Append(context.WithoutCancel(ctx), o.opts.ExportPath, *res); err != nil {
			o.logger.Error("pipeline.export.failed", "id", res.ID, "error", err)
			res.PersistError = err.Error()
		}
	}
	if o.opts.Results != nil {
		if err := o.opts.Results.Save(context.WithoutCancel(ctx), *res); err != nil {
			o.logger.Error("pipeline.results.save_failed", "id", res.ID, "error", err)
			if res.PersistError == "" {
				res.PersistError = err.Error()
			}
		}
	}
}
