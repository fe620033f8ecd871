package repository

import (
	"context"
	"embed"

	"github.com/pressly/goose/v3"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded SQL migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationFiles)
	dialect := "sqlite3"
	if s.Dialect == DialectPostgres {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return common.NewAppError(common.CodeDatabase, "set migration dialect", err)
	}
	if err := goose.UpContext(ctx, s.DB, "migrations"); err != nil {
		s.logger.Error("migrations failed", "error", err)
		return common.NewAppError(common.CodeDatabase, "apply migrations", err)
	}
	s.logger.Info("migrations applied", "dialect", dialect)
	return nil
}
