package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/async"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/pipeline"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePipeline fails any document whose base name contains "broken".
type fakePipeline struct {
	mu    sync.Mutex
	paths []string
}

func (p *fakePipeline) Model() string { return "fake-model" }

func (p *fakePipeline) Process(_ context.Context, req pipeline.Request) entity.PipelineResult {
	p.mu.Lock()
	p.paths = append(p.paths, req.Path)
	p.mu.Unlock()
	res := entity.PipelineResult{
		ID:          "res-" + filepath.Base(req.Path),
		Status:      constants.StatusSuccess,
		InvoicePath: req.Path,
		Vendor:      req.VendorHint,
		ModelUsed:   p.Model(),
		ProcessedAt: time.Date(2025, 11, 17, 0, 0, 0, 0, time.UTC),
	}
	if strings.Contains(filepath.Base(req.Path), "broken") {
		res.Status = constants.StatusError
		res.Error = "capture failed: model unavailable"
	}
	return res
}

func (p *fakePipeline) ProcessBatch(ctx context.Context, reqs []pipeline.Request) []entity.PipelineResult {
	out := make([]entity.PipelineResult, len(reqs))
	for i, r := range reqs {
		out[i] = p.Process(ctx, r)
	}
	return out
}

type fakeQueue struct {
	jobs   map[string]async.JobState
	closed bool
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) (string, error) {
	if q.closed {
		return "", common.ErrQueueClosed
	}
	id := fmt.Sprintf("job-%d", len(q.jobs)+1)
	q.jobs[id] = async.JobState{ID: id, Status: constants.JobStatusQueued, Path: job.Path}
	return id, nil
}

func (q *fakeQueue) Status(id string) (async.JobState, bool) {
	s, ok := q.jobs[id]
	return s, ok
}

func (q *fakeQueue) Shutdown(context.Context) {}

type fakeResults struct {
	stored map[string]entity.PipelineResult
}

func (r *fakeResults) Save(_ context.Context, res entity.PipelineResult) error {
	r.stored[res.ID] = res
	return nil
}

func (r *fakeResults) Get(_ context.Context, id string) (*entity.PipelineResult, error) {
	res, ok := r.stored[id]
	if !ok {
		return nil, fmt.Errorf("result %s: %w", id, common.ErrNotFound)
	}
	return &res, nil
}

type fakePinger struct{ err error }

func (p fakePinger) HealthCheck(context.Context, time.Duration) error { return p.err }

type fixture struct {
	svc      *InvoiceService
	pipeline *fakePipeline
	queue    *fakeQueue
	results  *fakeResults
}

func newFixture(uploadDir string, dbErr error) *fixture {
	f := &fixture{
		pipeline: &fakePipeline{},
		queue:    &fakeQueue{jobs: map[string]async.JobState{}},
		results: &fakeResults{stored: map[string]entity.PipelineResult{
			"done-1": {ID: "done-1", Status: constants.StatusSuccess, InvoicePath: "a.pdf"},
			"bad-1":  {ID: "bad-1", Status: constants.StatusError, InvoicePath: "b.pdf", Error: "read document b.pdf"},
		}},
	}
	f.svc = NewInvoiceService(f.pipeline, f.queue, f.results, fakePinger{err: dbErr}, uploadDir, quietLogger())
	return f
}

var errDBDown = errors.New("connection refused")
