package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/messaging-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prospect_cache (
	company_website TEXT PRIMARY KEY,
	company_name    TEXT,
	linkedin_url    TEXT,
	linkedin_data   TEXT,
	website_data    TEXT,
	prospect_brief  TEXT,
	custom_messaging TEXT,
	message_service TEXT,
	message_problem TEXT,
	message_signals TEXT,
	status          TEXT NOT NULL DEFAULT '',
	error_message   TEXT,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_prospect_cache_status ON prospect_cache(status);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id              TEXT PRIMARY KEY,
	input_file      TEXT NOT NULL,
	total_prospects INTEGER NOT NULL DEFAULT 0,
	completed       INTEGER NOT NULL DEFAULT 0,
	failed          INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'running',
	started_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetProspect(ctx context.Context, companyWebsite string) (*model.CacheRecord, error) {
	var row prospectRow
	err := s.db.QueryRowContext(ctx,
		`SELECT company_name, company_website, linkedin_url, linkedin_data, website_data, prospect_brief,
		        custom_messaging, message_service, message_problem, message_signals, status, error_message, updated_at
		 FROM prospect_cache WHERE company_website = ?`,
		companyWebsite,
	).Scan(
		&row.companyName, &row.companyWebsite, &row.linkedInURL,
		&row.linkedInData, &row.websiteData, &row.brief,
		&row.messaging, &row.messageService, &row.messageProblem, &row.messageSignals,
		&row.status, &row.errorMessage, &row.updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get prospect %s", companyWebsite)
	}
	return row.toRecord()
}

func (s *SQLiteStore) UpsertProspect(ctx context.Context, update model.CacheUpdate) error {
	if update.CompanyWebsite == "" {
		return eris.New("sqlite: upsert prospect: company website required")
	}

	cols, args, err := updateColumns(update)
	if err != nil {
		return err
	}
	cols = append(cols, "updated_at")
	args = append(args, time.Now().UTC())

	all := append([]string{"company_website"}, cols...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(all)), ", ")
	var setClauses []string
	for _, col := range cols {
		setClauses = append(setClauses, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	query := fmt.Sprintf(
		`INSERT INTO prospect_cache (%s) VALUES (%s) ON CONFLICT(company_website) DO UPDATE SET %s`,
		strings.Join(all, ", "), placeholders, strings.Join(setClauses, ", "),
	)

	allArgs := append([]any{update.CompanyWebsite}, args...)
	_, err = s.db.ExecContext(ctx, query, allArgs...)
	return eris.Wrapf(err, "sqlite: upsert prospect %s", update.CompanyWebsite)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, inputFile string, totalProspects int) (*model.PipelineRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, input_file, total_prospects, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, inputFile, totalProspects, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.PipelineRun{
		ID:             id,
		InputFile:      inputFile,
		TotalProspects: totalProspects,
		Status:         model.RunStatusRunning,
		StartedAt:      now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, completed, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET completed = ?, failed = ?, status = ?, completed_at = ? WHERE id = ?`,
		completed, failed, string(model.RunStatusCompleted), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	var r model.PipelineRun
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input_file, total_prospects, completed, failed, status, started_at, completed_at
		 FROM pipeline_runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.InputFile, &r.TotalProspects, &r.Completed, &r.Failed, &r.Status, &r.StartedAt, &completedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, input_file, total_prospects, completed, failed, status, started_at, completed_at FROM pipeline_runs WHERE true`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.InputFile, &r.TotalProspects, &r.Completed,
			&r.Failed, &r.Status, &r.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if completedAt.Valid {
			r.CompletedAt = &completedAt.Time
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
