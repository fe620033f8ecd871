package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/pipeline"
)

// Processor runs one invoice. *pipeline.Orchestrator satisfies it.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) entity.PipelineResult
}

// ProcessorQueue feeds jobs to a fixed set of workers over a bounded channel.
type ProcessorQueue struct {
	proc      Processor
	logger    *slog.Logger
	workers   int
	timeout   time.Duration
	retention int

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	stateMu  sync.RWMutex
	states   map[string]*JobState
	finished []string
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithRetention bounds how many finished jobs stay visible to Status.
func WithRetention(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.retention = n
		}
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:      proc,
		logger:    logger,
		workers:   4,
		timeout:   3 * time.Minute,
		retention: 1024,
		ch:        make(chan Job, 256),
		states:    map[string]*JobState{},
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	q.transition(job.ID, func(s *JobState) {
		now := time.Now().UTC()
		s.Status = constants.JobStatusRunning
		s.StartedAt = &now
	})

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	res := q.proc.Process(ctx, pipeline.Request{ID: job.ID, Path: job.Path, VendorHint: job.VendorHint})
	cancel()

	status := constants.JobStatusCompleted
	if res.Failed() {
		status = constants.JobStatusFailed
		q.logger.Error("processing failed", "worker_id", workerID, "job_id", job.ID, "path", job.Path, "error", res.Error)
	} else {
		q.logger.Info("processed invoice successfully", "worker_id", workerID, "job_id", job.ID, "path", job.Path)
	}

	q.transition(job.ID, func(s *JobState) {
		now := time.Now().UTC()
		s.Status = status
		s.FinishedAt = &now
		s.Result = &res
	})
	q.retire(job.ID)
}

func (q *ProcessorQueue) transition(id string, fn func(*JobState)) {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	if s, ok := q.states[id]; ok {
		fn(s)
	}
}

// retire forgets the oldest finished jobs beyond the retention limit.
func (q *ProcessorQueue) retire(id string) {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	q.finished = append(q.finished, id)
	for len(q.finished) > q.retention {
		delete(q.states, q.finished[0])
		q.finished = q.finished[1:]
	}
}

// Enqueue registers the job as QUEUED and hands it to the workers, blocking while the
// queue is full. It returns the job id, generating one when the job has none.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.ID)
		return "", common.ErrQueueClosed
	}

	q.stateMu.Lock()
	q.states[job.ID] = &JobState{
		ID:          job.ID,
		Status:      constants.JobStatusQueued,
		Path:        job.Path,
		SubmittedAt: job.SubmittedAt,
	}
	q.stateMu.Unlock()

	select {
	case q.ch <- job:
		q.logger.Info("queued invoice for processing", "job_id", job.ID, "path", job.Path)
		return job.ID, nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "job_id", job.ID)
	select {
	case q.ch <- job:
		return job.ID, nil
	case <-ctx.Done():
		q.stateMu.Lock()
		delete(q.states, job.ID)
		q.stateMu.Unlock()
		return "", ctx.Err()
	}
}

// Status returns a copy of the job's state.
func (q *ProcessorQueue) Status(id string) (JobState, bool) {
	q.stateMu.RLock()
	defer q.stateMu.RUnlock()
	s, ok := q.states[id]
	if !ok {
		return JobState{}, false
	}
	return *s, true
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
