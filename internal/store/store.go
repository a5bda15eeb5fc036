// Package store persists the prospect cache and pipeline run records.
// Two backends are provided: postgres for shared deployments and sqlite
// for single-machine runs.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/messaging-cli/internal/model"
)

// RunFilter specifies criteria for listing pipeline runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the messaging pipeline.
type Store interface {
	// Prospect cache, keyed by normalized company website. GetProspect
	// returns (nil, nil) on a cache miss. UpsertProspect merges: only the
	// fields set on the update are written, existing fields survive.
	GetProspect(ctx context.Context, companyWebsite string) (*model.CacheRecord, error)
	UpsertProspect(ctx context.Context, update model.CacheUpdate) error

	// Runs
	CreateRun(ctx context.Context, inputFile string, totalProspects int) (*model.PipelineRun, error)
	CompleteRun(ctx context.Context, runID string, completed, failed int) error
	GetRun(ctx context.Context, runID string) (*model.PipelineRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	case "sqlite":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
