package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// Dialect selects placeholder style and migration dialect.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectFor picks Postgres for postgres:// URLs and SQLite for everything else.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Store is a database handle shared by the repositories.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// NewStore wraps an already open database, e.g. a sqlmock handle in tests.
func NewStore(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{DB: db, Dialect: dialect, logger: logger}
}

// Open connects to Postgres through a pgx pool or opens a SQLite file in WAL mode.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialect := DialectFor(cfg.DSN)
	logger.Info("connecting to database", "dialect", dialect)

	if dialect == DialectSQLite {
		db, err := sql.Open("sqlite", sqliteDSN(cfg.DSN))
		if err != nil {
			logger.Error("failed to open sqlite database", "error", err)
			return nil, common.NewAppError(common.CodeDatabase, "open sqlite", err)
		}
		// one writer; busy_timeout covers readers in other processes
		db.SetMaxOpenConns(1)
		s := NewStore(db, dialect, logger)
		if err := s.HealthCheck(ctx, cfg.DialTimeout); err != nil {
			_ = db.Close()
			return nil, common.NewAppError(common.CodeDatabase, "ping sqlite", err)
		}
		logger.Info("successfully connected to database", "path", cfg.DSN)
		return s, nil
	}

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database url", "error", err)
		return nil, common.NewAppError(common.CodeConfig, "parse DB_URL", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "invoice-pipeline"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "connect postgres", err)
	}

	s := NewStore(stdlib.OpenDBFromPool(pool), dialect, logger)
	s.pool = pool
	if err := s.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		s.Close()
		return nil, common.NewAppError(common.CodeDatabase, "ping postgres", err)
	}
	logger.Info("successfully connected to database")
	return s, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
}

// Close closes the database connections gracefully
func (s *Store) Close() {
	s.logger.Info("closing database connections")
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			s.logger.Error("failed to close database", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.logger.Info("database connections closed")
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.DB.PingContext(ctx); err != nil {
		s.logger.Error("database ping failed", "error", err)
		return err
	}
	s.logger.Debug("database ping successful")
	return nil
}

// rebind rewrites ? placeholders as $1..$n for Postgres.
func (s *Store) rebind(query string) string {
	if s.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
