package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/messaging-cli/internal/db"
	"github.com/sells-group/messaging-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const selectProspect = `SELECT company_name, company_website, linkedin_url, linkedin_data, website_data, prospect_brief, custom_messaging, message_service, message_problem, message_signals, status, error_message, updated_at FROM prospect_cache WHERE company_website = $1`

const selectRun = `SELECT id, input_file, total_prospects, completed, failed, status, started_at, completed_at FROM pipeline_runs WHERE id = $1`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_prospect": selectProspect,
	"insert_run":   `INSERT INTO pipeline_runs (id, input_file, total_prospects, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_run": `UPDATE pipeline_runs SET completed = $1, failed = $2, status = $3, completed_at = $4 WHERE id = $5`,
	"get_run":      selectRun,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS prospect_cache (
	company_website TEXT PRIMARY KEY,
	company_name    TEXT,
	linkedin_url    TEXT,
	linkedin_data   JSONB,
	website_data    JSONB,
	prospect_brief  JSONB,
	custom_messaging TEXT,
	message_service TEXT,
	message_problem TEXT,
	message_signals TEXT,
	status          TEXT NOT NULL DEFAULT '',
	error_message   TEXT,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_prospect_cache_status ON prospect_cache(status);
CREATE INDEX IF NOT EXISTS idx_prospect_cache_updated_at ON prospect_cache(updated_at);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	input_file      TEXT NOT NULL,
	total_prospects INTEGER NOT NULL DEFAULT 0,
	completed       INTEGER NOT NULL DEFAULT 0,
	failed          INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'running',
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs(started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetProspect(ctx context.Context, companyWebsite string) (*model.CacheRecord, error) {
	var row prospectRow
	err := s.pool.QueryRow(ctx, selectProspect, companyWebsite).Scan(
		&row.companyName, &row.companyWebsite, &row.linkedInURL,
		&row.linkedInData, &row.websiteData, &row.brief,
		&row.messaging, &row.messageService, &row.messageProblem, &row.messageSignals,
		&row.status, &row.errorMessage, &row.updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get prospect %s", companyWebsite)
	}
	return row.toRecord()
}

func (s *PostgresStore) UpsertProspect(ctx context.Context, update model.CacheUpdate) error {
	if update.CompanyWebsite == "" {
		return eris.New("postgres: upsert prospect: company website required")
	}

	cols, args, err := updateColumns(update)
	if err != nil {
		return err
	}
	cols = append(cols, "updated_at")
	args = append(args, time.Now().UTC())

	sql, err := db.UpsertSQL("prospect_cache", "company_website", cols)
	if err != nil {
		return err
	}

	allArgs := append([]any{update.CompanyWebsite}, args...)
	_, err = s.pool.Exec(ctx, sql, allArgs...)
	return eris.Wrapf(err, "postgres: upsert prospect %s", update.CompanyWebsite)
}

func (s *PostgresStore) CreateRun(ctx context.Context, inputFile string, totalProspects int) (*model.PipelineRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, input_file, total_prospects, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, inputFile, totalProspects, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.PipelineRun{
		ID:             id,
		InputFile:      inputFile,
		TotalProspects: totalProspects,
		Status:         model.RunStatusRunning,
		StartedAt:      now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, completed, failed int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET completed = $1, failed = $2, status = $3, completed_at = $4 WHERE id = $5`,
		completed, failed, string(model.RunStatusCompleted), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	var r model.PipelineRun
	err := s.pool.QueryRow(ctx, selectRun, runID).Scan(
		&r.ID, &r.InputFile, &r.TotalProspects, &r.Completed, &r.Failed,
		&r.Status, &r.StartedAt, &r.CompletedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, input_file, total_prospects, completed, failed, status, started_at, completed_at FROM pipeline_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		if err := rows.Scan(&r.ID, &r.InputFile, &r.TotalProspects, &r.Completed,
			&r.Failed, &r.Status, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
