package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/messaging-cli/internal/model"
	"github.com/sells-group/messaging-cli/internal/permit"
	"github.com/sells-group/messaging-cli/pkg/brightdata"
)

// LinkedInFetcher bulk-collects LinkedIn company profiles ahead of the
// per-prospect fan-out. Results are keyed by normalized LinkedIn URL.
type LinkedInFetcher interface {
	Fetch(ctx context.Context, urls []string) (map[string]brightdata.Profile, error)
}

// BrightDataFetcher implements LinkedInFetcher on the BrightData Datasets
// API: submit fixed-size batches, poll every snapshot, download the ready
// ones.
type BrightDataFetcher struct {
	submitter *brightdata.Submitter
	poller    *brightdata.Poller
	collector *brightdata.Collector
}

// NewBrightDataFetcher wires the three batch phases against one client.
// permits bounds concurrent polling requests and may be nil.
func NewBrightDataFetcher(client brightdata.Client, cfg brightdata.Config, permits *permit.Pool) *BrightDataFetcher {
	return &BrightDataFetcher{
		submitter: brightdata.NewSubmitter(client, cfg),
		poller:    brightdata.NewPoller(client, cfg, permits),
		collector: brightdata.NewCollector(client),
	}
}

// Fetch runs submit, poll, and collect for the given profile URLs.
func (f *BrightDataFetcher) Fetch(ctx context.Context, urls []string) (map[string]brightdata.Profile, error) {
	if len(urls) == 0 {
		return map[string]brightdata.Profile{}, nil
	}

	snapshots, err := f.submitter.SubmitAll(ctx, urls)
	if err != nil {
		return nil, err
	}

	results, err := f.poller.WaitAll(ctx, snapshots)
	if err != nil {
		return nil, err
	}

	profiles, stats, err := f.collector.Collect(ctx, results)
	if err != nil {
		return nil, err
	}

	zap.L().Info("linkedin collection finished",
		zap.Int("requested", len(urls)),
		zap.Int("snapshots", len(snapshots)),
		zap.Int("ready", stats.Ready),
		zap.Int("failed", stats.Failed),
		zap.Int("timed_out", stats.TimedOut),
		zap.Int("profiles", len(profiles)),
		zap.Int("errored", stats.Errored),
		zap.Int("unmapped", stats.Unmapped),
	)
	return profiles, nil
}

// linkedInURLs collects the distinct LinkedIn URLs from a prospect list,
// deduplicated on the normalized form but submitted as given.
func linkedInURLs(prospects []model.Prospect) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, p := range prospects {
		if !p.HasLinkedInURL() {
			continue
		}
		key := brightdata.NormalizeLinkedInURL(p.LinkedInURL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		urls = append(urls, p.LinkedInURL)
	}
	return urls
}
