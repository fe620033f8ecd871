package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// ResultRepository stores finished pipeline results for status lookups.
type ResultRepository interface {
	Save(ctx context.Context, res entity.PipelineResult) error
	Get(ctx context.Context, id string) (*entity.PipelineResult, error)
}

type resultRepo struct {
	store  *Store
	logger *slog.Logger
}

func NewResultRepository(store *Store, logger *slog.Logger) ResultRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultRepo{store: store, logger: logger}
}

func (r *resultRepo) Save(ctx context.Context, res entity.PipelineResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return common.WrapError(err, "encode result")
	}
	now := time.Now().UTC()
	_, err = r.store.DB.ExecContext(ctx, r.store.rebind(`
		INSERT INTO invoice_results (id, status, invoice_path, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			invoice_path = excluded.invoice_path,
			payload = excluded.payload,
			updated_at = excluded.updated_at`),
		res.ID, string(res.Status), res.InvoicePath, string(payload), now, now,
	)
	if err != nil {
		r.logger.Error("failed to save result", "id", res.ID, "error", err)
		return common.NewAppError(common.CodeDatabase, "save result", err)
	}
	return nil
}

func (r *resultRepo) Get(ctx context.Context, id string) (*entity.PipelineResult, error) {
	var payload string
	err := r.store.DB.QueryRowContext(ctx, r.store.rebind(`SELECT payload FROM invoice_results WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to load result", "id", id, "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "load result", err)
	}
	var res entity.PipelineResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, common.WrapError(err, "decode stored result")
	}
	return &res, nil
}
