// Package pipeline orchestrates prospect enrichment: data gathering, brief
// generation, pain-point research, and messaging generation, with a
// persistent per-prospect cache so interrupted runs resume where they left
// off.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/messaging-cli/internal/model"
	"github.com/sells-group/messaging-cli/internal/permit"
	"github.com/sells-group/messaging-cli/internal/store"
	"github.com/sells-group/messaging-cli/pkg/anthropic"
	"github.com/sells-group/messaging-cli/pkg/brightdata"
	"github.com/sells-group/messaging-cli/pkg/perplexity"
)

// Options holds the per-run knobs for the prospect state machine.
type Options struct {
	BriefModel           string
	MessagingModel       string
	MaxTokens            int64
	RetryAttempts        int
	MaxResearchOfferings int
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.MaxResearchOfferings <= 0 {
		o.MaxResearchOfferings = 5
	}
	return o
}

// WebsiteScraper gathers website content for one prospect. Implemented by
// scrape.Scraper.
type WebsiteScraper interface {
	Scrape(ctx context.Context, companyName, siteURL string) (*model.WebsiteData, error)
}

// Pipeline runs the per-prospect state machine. Safe for concurrent use;
// the prospect permit pool bounds how many prospects are in flight.
type Pipeline struct {
	store      store.Store
	llm        anthropic.Client
	research   perplexity.Client
	scraper    WebsiteScraper
	prospects  *permit.Pool
	llmPermits *permit.Pool
	opts       Options
}

// New creates a Pipeline. prospects and llmPermits may be nil for
// unbounded use in tests.
func New(
	st store.Store,
	llm anthropic.Client,
	research perplexity.Client,
	scraper WebsiteScraper,
	prospects *permit.Pool,
	llmPermits *permit.Pool,
	opts Options,
) *Pipeline {
	return &Pipeline{
		store:      st,
		llm:        llm,
		research:   research,
		scraper:    scraper,
		prospects:  prospects,
		llmPermits: llmPermits,
		opts:       opts.withDefaults(),
	}
}

// ProcessProspect runs one prospect through the state machine and returns
// its outcome. Errors are recorded on the result and in the cache, never
// returned: one bad prospect must not take down the batch.
func (pl *Pipeline) ProcessProspect(ctx context.Context, p model.Prospect, profiles map[string]brightdata.Profile, reprocess bool) *model.ProspectResult {
	result := &model.ProspectResult{
		CompanyName:    p.CompanyName,
		CompanyWebsite: p.CompanyWebsite,
	}

	run := func(ctx context.Context) error {
		return pl.process(ctx, p, profiles, reprocess, result)
	}

	var err error
	if pl.prospects != nil {
		err = pl.prospects.With(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		result.Error = err.Error()
		pl.markFailed(ctx, p, err)
	}
	return result
}

func (pl *Pipeline) process(ctx context.Context, p model.Prospect, profiles map[string]brightdata.Profile, reprocess bool, result *model.ProspectResult) error {
	key := model.NormalizeWebsite(p.CompanyWebsite)
	if key == "" {
		return eris.New("pipeline: prospect has no company website")
	}
	log := zap.L().With(
		zap.String("company", p.CompanyName),
		zap.String("website", key),
	)

	// The cache is best-effort: a read failure is treated as a miss and a
	// write failure costs resumability, never the prospect.
	cached, err := pl.store.GetProspect(ctx, key)
	if err != nil {
		log.Warn("pipeline: cache read failed, treating as miss", zap.Error(err))
		cached = nil
	}

	// A completed prospect is served from cache unless the caller asked for
	// reprocessing. Failed prospects always get another attempt.
	if cached != nil && cached.Status == model.StatusCompleted && !reprocess {
		log.Info("pipeline: cache hit")
		result.FromCache = true
		result.Brief = cached.Brief
		result.Messaging = cached.Messaging
		result.MessageService = cached.MessageService
		result.MessageProblem = cached.MessageProblem
		result.MessageSignals = cached.MessageSignals
		return nil
	}

	// Stage 1: gather. Reprocessing reuses previously gathered artifacts so
	// only the LLM stages rerun.
	linkedinData := pl.linkedInData(p, profiles, cached)
	website, err := pl.websiteData(ctx, p, cached, reprocess)
	if err != nil {
		return err
	}

	update := model.CacheUpdate{
		CompanyWebsite: key,
		CompanyName:    model.Str(p.CompanyName),
		LinkedInData:   linkedinData,
		WebsiteData:    website,
		Status:         model.StatusDataGathered,
	}
	if p.HasLinkedInURL() {
		update.LinkedInURL = model.Str(p.LinkedInURL)
	}
	pl.persist(ctx, log, update)
	log.Info("pipeline: data gathered",
		zap.Bool("linkedin", len(linkedinData) > 0),
		zap.Int("sitemap_urls", website.SitemapURLCount),
	)

	// Stage 2: brief. Generation falls back to an empty brief after retries,
	// so this stage cannot fail the prospect.
	brief := pl.generateBrief(ctx, p.CompanyName, linkedinData, website)
	pl.persist(ctx, log, model.CacheUpdate{
		CompanyWebsite: key,
		Brief:          brief,
		Status:         model.StatusBriefGenerated,
	})

	// Stage 3: research fallback, only when the website named offerings but
	// no pain points.
	if brief.NeedsPainPointResearch() {
		pl.researchPainPoints(ctx, log, brief)
	}

	// Stage 4: messaging.
	messaging, err := pl.generateMessaging(ctx, brief)
	if err != nil {
		return err
	}

	pl.persist(ctx, log, model.CacheUpdate{
		CompanyWebsite: key,
		Brief:          brief,
		Messaging:      model.Str(messaging.Raw),
		MessageService: model.Str(messaging.SelectedService),
		MessageProblem: model.Str(messaging.ProblemSolved),
		MessageSignals: model.Str(messaging.IntentSignals),
		Status:         model.StatusCompleted,
	})

	result.Brief = brief
	result.Messaging = messaging.Raw
	result.MessageService = messaging.SelectedService
	result.MessageProblem = messaging.ProblemSolved
	result.MessageSignals = messaging.IntentSignals
	log.Info("pipeline: prospect completed")
	return nil
}

// linkedInData picks the LinkedIn profile for a prospect: the prefetched
// batch result when present, otherwise whatever an earlier run cached.
func (pl *Pipeline) linkedInData(p model.Prospect, profiles map[string]brightdata.Profile, cached *model.CacheRecord) json.RawMessage {
	if p.HasLinkedInURL() {
		if profile, ok := profiles[brightdata.NormalizeLinkedInURL(p.LinkedInURL)]; ok {
			return profile.Raw
		}
	}
	if cached != nil {
		return cached.LinkedInData
	}
	return nil
}

// websiteData scrapes the company website, or reuses the cached scrape when
// reprocessing.
func (pl *Pipeline) websiteData(ctx context.Context, p model.Prospect, cached *model.CacheRecord, reprocess bool) (*model.WebsiteData, error) {
	if reprocess && cached != nil && !cached.WebsiteData.Empty() {
		return cached.WebsiteData, nil
	}

	website, err := pl.scraper.Scrape(ctx, p.CompanyName, p.CompanyWebsite)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: scrape website")
	}
	return website, nil
}

// persist writes a stage's artifacts to the cache. A failed write loses
// resumability for that stage, nothing more.
func (pl *Pipeline) persist(ctx context.Context, log *zap.Logger, update model.CacheUpdate) {
	if err := pl.store.UpsertProspect(ctx, update); err != nil {
		log.Warn("pipeline: cache write failed",
			zap.String("status", string(update.Status)),
			zap.Error(err),
		)
	}
}

// markFailed records the failure in the cache. The write uses a detached
// context so a cancelled run still leaves a failure row behind.
func (pl *Pipeline) markFailed(ctx context.Context, p model.Prospect, cause error) {
	key := model.NormalizeWebsite(p.CompanyWebsite)
	if key == "" {
		return
	}

	update := model.CacheUpdate{
		CompanyWebsite: key,
		CompanyName:    model.Str(p.CompanyName),
		Status:         model.StatusFailed,
		ErrorMessage:   model.Str(cause.Error()),
	}
	if err := pl.store.UpsertProspect(context.WithoutCancel(ctx), update); err != nil {
		zap.L().Warn("pipeline: failed to record prospect failure",
			zap.String("website", key),
			zap.Error(err),
		)
	}
}
