package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/messaging-cli/internal/permit"
	"github.com/sells-group/messaging-cli/internal/pipeline"
	"github.com/sells-group/messaging-cli/internal/scrape"
	"github.com/sells-group/messaging-cli/internal/store"
	anthropicpkg "github.com/sells-group/messaging-cli/pkg/anthropic"
	"github.com/sells-group/messaging-cli/pkg/brightdata"
	"github.com/sells-group/messaging-cli/pkg/perplexity"
)

// pipelineEnv holds the initialized store, clients, and coordinator shared
// by the run and serve commands.
type pipelineEnv struct {
	Store       store.Store
	Coordinator *pipeline.Coordinator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline sets up the store, API clients, permit pools, and the
// coordinator. Callers should defer env.Close().
func initPipeline(ctx context.Context, opts pipeline.Options) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("MESSAGING_ANTHROPIC_KEY is required")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	perplexityClient := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
	)

	var bdOpts []brightdata.Option
	if cfg.BrightData.BaseURL != "" {
		bdOpts = append(bdOpts, brightdata.WithBaseURL(cfg.BrightData.BaseURL))
	}
	brightdataClient := brightdata.NewClient(cfg.BrightData.Key, cfg.BrightData.DatasetID, bdOpts...)

	httpPermits := permit.NewPool(cfg.Pipeline.MaxConcurrentHTTP)
	llmPermits := permit.NewPool(cfg.Pipeline.MaxConcurrentLLM)
	prospectPermits := permit.NewPool(cfg.Pipeline.MaxConcurrentProspects)

	fetcher := scrape.NewFetcher(time.Duration(cfg.Scrape.HTTPTimeoutSecs)*time.Second, httpPermits)
	classifier := scrape.NewClassifier(anthropicClient, cfg.Anthropic.SitemapModel, llmPermits)
	scraper := scrape.NewScraper(fetcher, classifier, scrape.PageCaps{
		Services:    cfg.Scrape.MaxServicesPages,
		Markets:     cfg.Scrape.MaxMarketsPages,
		CaseStudies: cfg.Scrape.MaxCaseStudyPages,
	})

	linkedin := pipeline.NewBrightDataFetcher(brightdataClient, brightdata.Config{
		BatchSize:       cfg.BrightData.BatchSize,
		MaxRunningJobs:  cfg.BrightData.MaxRunningJobs,
		Cooldown:        time.Duration(cfg.BrightData.CooldownSecs) * time.Second,
		TriggerRetries:  cfg.BrightData.TriggerRetries,
		TriggerBackoff:  time.Duration(cfg.BrightData.TriggerBackoffSecs) * time.Second,
		InterBatchDelay: time.Duration(cfg.BrightData.InterBatchDelayMs) * time.Millisecond,
		PollInterval:    cfg.BrightData.PollInterval(),
		PollTimeout:     cfg.BrightData.PollTimeout(),
	}, httpPermits)

	pl := pipeline.New(st, anthropicClient, perplexityClient, scraper, prospectPermits, llmPermits, opts)

	return &pipelineEnv{
		Store:       st,
		Coordinator: pipeline.NewCoordinator(st, pl, linkedin),
	}, nil
}
