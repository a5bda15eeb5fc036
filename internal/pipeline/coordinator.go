package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/messaging-cli/internal/model"
	"github.com/sells-group/messaging-cli/internal/store"
	"github.com/sells-group/messaging-cli/pkg/brightdata"
)

// RunOptions configures one coordinator invocation.
type RunOptions struct {
	InputPath  string
	OutputPath string

	// Reprocess regenerates briefs and messaging for already-completed
	// prospects, reusing their cached gathered data. The LinkedIn prefetch
	// is skipped entirely.
	Reprocess bool

	// Limit truncates the prospect list after parsing. Zero means no limit.
	Limit int
}

// RunSummary is the outcome of one coordinator invocation.
type RunSummary struct {
	RunID     string
	Total     int
	Completed int
	Failed    int
	FromCache int
	Results   []model.ProspectResult
}

// Coordinator drives a whole run: input parsing, the LinkedIn prefetch,
// the bounded per-prospect fan-out, and output writing.
type Coordinator struct {
	store    store.Store
	pipeline *Pipeline
	linkedin LinkedInFetcher
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(st store.Store, pl *Pipeline, linkedin LinkedInFetcher) *Coordinator {
	return &Coordinator{store: st, pipeline: pl, linkedin: linkedin}
}

// Run processes every prospect in the input file.
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	prospects, err := ReadProspects(opts.InputPath)
	if err != nil {
		return nil, err
	}
	if len(prospects) == 0 {
		return nil, eris.New("pipeline: input file has no prospects")
	}
	if opts.Limit > 0 && len(prospects) > opts.Limit {
		prospects = prospects[:opts.Limit]
	}

	run, err := c.store.CreateRun(ctx, filepath.Base(opts.InputPath), len(prospects))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("run started",
		zap.Int("prospects", len(prospects)),
		zap.Bool("reprocess", opts.Reprocess),
	)

	// Phase 1: bulk LinkedIn collection. A prefetch failure degrades the
	// run (prospects proceed without LinkedIn data) instead of aborting it.
	profiles := map[string]brightdata.Profile{}
	if !opts.Reprocess {
		if urls := linkedInURLs(prospects); len(urls) > 0 {
			profiles, err = c.linkedin.Fetch(ctx, urls)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				log.Warn("linkedin prefetch failed, continuing without profiles", zap.Error(err))
				profiles = map[string]brightdata.Profile{}
			}
		}
	}

	// Phase 2: per-prospect fan-out. Concurrency is bounded by the
	// pipeline's prospect permit pool; ProcessProspect never returns an
	// error, so the group only stops on context cancellation.
	results := make([]model.ProspectResult, len(prospects))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range prospects {
		g.Go(func() error {
			results[i] = *c.pipeline.ProcessProspect(gctx, p, profiles, opts.Reprocess)
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "pipeline: run cancelled")
	}

	// Phase 3: bookkeeping and output.
	summary := &RunSummary{
		RunID:   run.ID,
		Total:   len(prospects),
		Results: results,
	}
	for i := range results {
		switch {
		case results[i].Failed():
			summary.Failed++
		case results[i].FromCache:
			summary.FromCache++
			summary.Completed++
		default:
			summary.Completed++
		}
	}

	if err := c.store.CompleteRun(ctx, run.ID, summary.Completed, summary.Failed); err != nil {
		log.Warn("failed to finalize run record", zap.Error(err))
	}

	if opts.OutputPath != "" {
		if err := WriteResults(opts.OutputPath, results); err != nil {
			return nil, err
		}
		if summary.Failed > 0 {
			if err := WriteErrors(ErrorsPath(opts.OutputPath), results); err != nil {
				return nil, err
			}
		}
	}

	log.Info("run finished",
		zap.Int("total", summary.Total),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("from_cache", summary.FromCache),
	)
	return summary, nil
}
