package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// ProcessBatch processes invoices concurrently, at most Workers at a time. The result at index i
// belongs to reqs[i] and every request yields exactly one result.
func (o *Orchestrator) ProcessBatch(ctx context.Context, reqs []Request) []entity.PipelineResult {
	results := make([]entity.PipelineResult, len(reqs))
	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(o.opts.Workers)
	for i, req := range reqs {
		g.Go(func() error {
			ictx, cancel := context.WithTimeout(ctx, o.opts.InvoiceTimeout)
			defer cancel()
			results[i] = o.Process(ictx, req)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	o.logger.Info("pipeline.batch.done",
		"total", len(results),
		"failed", failed,
		"workers", o.opts.Workers,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results
}
