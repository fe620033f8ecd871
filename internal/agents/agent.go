// Package agents holds the stage agents run for every invoice: capture, validate, route,
// optimize and exception handling. Decisions are local; the model only reads documents and
// writes narrative text.
package agents

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

// Policy holds the thresholds the agents decide with.
type Policy struct {
	ROIThreshold             float64
	HighAmount               float64
	PORequiredAbove          float64
	DuplicateAmountTolerance float64
	DuplicateWindowDays      int
	Narratives               bool // ask the model for notes and advisory flags
}

// DefaultPolicy matches the configuration defaults.
func DefaultPolicy() Policy {
	return PolicyFrom(common.Defaults().Pipeline)
}

// PolicyFrom maps pipeline configuration onto agent policy.
func PolicyFrom(cfg common.PipelineConfig) Policy {
	return Policy{
		ROIThreshold:             cfg.ROIThreshold,
		HighAmount:               cfg.HighAmount,
		PORequiredAbove:          cfg.PORequiredAbove,
		DuplicateAmountTolerance: cfg.DuplicateAmountTolerance,
		DuplicateWindowDays:      cfg.DuplicateWindowDays,
		Narratives:               cfg.Narratives,
	}
}

// consult sends a JSON context block followed by the stage instruction and normalizes the reply.
func consult(ctx context.Context, gw llm.Gateway, p llm.Prompt, payload any, logger *slog.Logger) (llm.Outcome, error) {
	start := time.Now()
	raw, err := gw.Invoke(ctx, []llm.Part{llm.Text(toJSON(payload)), llm.Text(p.Instruction)})
	if err != nil {
		logger.Warn("agents.consult.gateway_error", "stage", p.Stage, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Outcome{}, err
	}
	out := llm.Normalize(raw, p.Fields)
	if out.SchemaErr != nil {
		logger.Warn("agents.consult.schema_mismatch", "stage", p.Stage, "error", out.SchemaErr)
	}
	logger.Debug("agents.consult.ok", "stage", p.Stage, "strategy", out.Strategy,
		"degraded", out.Degraded, "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func parseDate(s *string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func orEmpty(f *entity.ExtractedFields) *entity.ExtractedFields {
	if f == nil {
		return &entity.ExtractedFields{}
	}
	return f
}
