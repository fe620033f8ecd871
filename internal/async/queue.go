package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// Job is one invoice submitted for background processing.
type Job struct {
	ID          string
	Path        string
	VendorHint  string
	SubmittedAt time.Time
}

// JobState is what a status lookup sees. Result is set once the job has finished.
type JobState struct {
	ID          string                 `json:"id"`
	Status      string                 `json:"status"`
	Path        string                 `json:"invoice_path"`
	SubmittedAt time.Time              `json:"submitted_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	FinishedAt  *time.Time             `json:"finished_at,omitempty"`
	Result      *entity.PipelineResult `json:"result,omitempty"`
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) (string, error)
	Status(id string) (JobState, bool)
	Shutdown(ctx context.Context)
}
