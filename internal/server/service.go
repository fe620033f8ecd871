package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/async"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/invoice-pipeline/internal/repository"
)

// Version is reported by the banner and health endpoints.
var Version = "1.0.0"

// Pipeline is what the transports need from *pipeline.Orchestrator.
type Pipeline interface {
	Process(ctx context.Context, req pipeline.Request) entity.PipelineResult
	ProcessBatch(ctx context.Context, reqs []pipeline.Request) []entity.PipelineResult
	Model() string
}

// Pinger is satisfied by *repository.Store.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Health is the payload of the health endpoints.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Model    string `json:"model"`
	Database string `json:"database"`
}

// InvoiceService holds the transport-independent operations behind HTTP and gRPC.
type InvoiceService struct {
	pipeline  Pipeline
	queue     async.Queue
	results   repository.ResultRepository
	db        Pinger
	uploadDir string
	logger    *slog.Logger
}

// NewInvoiceService wires the service. queue, results and db may be nil; the matching
// operations then report not found or skip the check.
func NewInvoiceService(p Pipeline, queue async.Queue, results repository.ResultRepository, db Pinger, uploadDir string, logger *slog.Logger) *InvoiceService {
	if logger == nil {
		logger = slog.Default()
	}
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &InvoiceService{
		pipeline:  p,
		queue:     queue,
		results:   results,
		db:        db,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// SaveUpload stores an uploaded document under the upload directory and returns its path.
// Unsupported extensions are rejected before anything is written.
func (s *InvoiceService) SaveUpload(name string, body io.Reader) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", common.NewAppError(common.CodeInvalidInput, "file name is required", common.ErrInvalidInput)
	}
	if !constants.IsAllowedExt(filepath.Ext(base)) {
		return "", common.NewAppError(common.CodeUnsupportedMedia,
			fmt.Sprintf("unsupported file type %q", filepath.Ext(base)), common.ErrUnsupportedMedia)
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", common.WrapError(err, "create upload dir")
	}

	dst := filepath.Join(s.uploadDir, uuid.NewString()+"_"+base)
	f, err := os.Create(dst)
	if err != nil {
		return "", common.WrapError(err, "create upload file")
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", common.WrapError(err, "write upload file")
	}
	s.logger.Info("server.upload.saved", "path", dst, "bytes", n)
	return dst, nil
}

// Process runs one invoice synchronously.
func (s *InvoiceService) Process(ctx context.Context, path, vendor string) entity.PipelineResult {
	return s.pipeline.Process(ctx, pipeline.Request{Path: path, VendorHint: vendor})
}

// ProcessBatch runs invoices concurrently; results line up with paths.
func (s *InvoiceService) ProcessBatch(ctx context.Context, paths []string, vendor string) []entity.PipelineResult {
	reqs := make([]pipeline.Request, len(paths))
	for i, p := range paths {
		reqs[i] = pipeline.Request{Path: p, VendorHint: vendor}
	}
	return s.pipeline.ProcessBatch(ctx, reqs)
}

// Submit queues an invoice for background processing and returns the job id.
func (s *InvoiceService) Submit(ctx context.Context, path, vendor string) (string, error) {
	if s.queue == nil {
		return "", common.NewAppError(common.CodeConfig, "async processing is not enabled", common.ErrInternal)
	}
	return s.queue.Enqueue(ctx, async.Job{Path: path, VendorHint: vendor})
}

// Status looks up a job: live queue state first, then the stored result.
func (s *InvoiceService) Status(ctx context.Context, id string) (async.JobState, error) {
	if s.queue != nil {
		if st, ok := s.queue.Status(id); ok {
			return st, nil
		}
	}
	if s.results != nil {
		res, err := s.results.Get(ctx, id)
		if err == nil {
			status := constants.JobStatusCompleted
			if res.Failed() {
				status = constants.JobStatusFailed
			}
			return async.JobState{ID: res.ID, Status: status, Path: res.InvoicePath, Result: res}, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return async.JobState{}, err
		}
	}
	return async.JobState{}, fmt.Errorf("invoice %s: %w", id, common.ErrNotFound)
}

// Health reports the model in use and whether the database answers a ping.
func (s *InvoiceService) Health(ctx context.Context) Health {
	h := Health{Status: "healthy", Version: Version, Model: s.pipeline.Model(), Database: "disabled"}
	if s.db != nil {
		if err := s.db.HealthCheck(ctx, 2*time.Second); err != nil {
			s.logger.Error("server.health.db_failed", "error", err)
			h.Status = "unhealthy"
			h.Database = err.Error()
		} else {
			h.Database = "ok"
		}
	}
	return h
}
