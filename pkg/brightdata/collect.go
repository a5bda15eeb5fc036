package brightdata

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// CollectStats summarizes one collection pass.
type CollectStats struct {
	Ready    int // jobs that reached ready and were downloaded
	Failed   int // jobs that ended failed
	TimedOut int // jobs that exhausted their polling budget
	Profiles int // profiles mapped to a LinkedIn URL
	Errored  int // per-profile error records returned by the API
	Unmapped int // records with no usable join key
}

// Collector downloads ready snapshots and joins the profiles back to the
// LinkedIn URLs they were requested under.
type Collector struct {
	client Client
}

// NewCollector creates a Collector.
func NewCollector(client Client) *Collector {
	return &Collector{client: client}
}

// Collect downloads every ready job and returns profiles keyed by normalized
// LinkedIn URL. Failed and timed-out jobs are counted, not raised: a partial
// harvest is still useful to the pipeline. Download errors on individual
// snapshots are likewise logged and skipped.
func (c *Collector) Collect(ctx context.Context, results []JobResult) (map[string]Profile, CollectStats, error) {
	profiles := make(map[string]Profile)
	var stats CollectStats

	for _, r := range results {
		switch r.Status {
		case JobFailed:
			stats.Failed++
			continue
		case JobTimeout:
			stats.TimedOut++
			continue
		case JobReady:
			stats.Ready++
		default:
			continue
		}

		records, err := c.client.Download(ctx, r.SnapshotID)
		if err != nil {
			if ctx.Err() != nil {
				return profiles, stats, err
			}
			zap.L().Warn("snapshot download failed, skipping",
				zap.String("snapshot_id", r.SnapshotID),
				zap.Error(err))
			continue
		}

		for _, p := range records {
			if p.Error != "" {
				stats.Errored++
				continue
			}
			key := NormalizeLinkedInURL(p.Key())
			if key == "" {
				stats.Unmapped++
				continue
			}
			profiles[key] = p
		}
	}

	stats.Profiles = len(profiles)
	zap.L().Info("brightdata collection finished",
		zap.Int("ready", stats.Ready),
		zap.Int("failed", stats.Failed),
		zap.Int("timed_out", stats.TimedOut),
		zap.Int("profiles", stats.Profiles),
		zap.Int("errored", stats.Errored),
		zap.Int("unmapped", stats.Unmapped))

	return profiles, stats, nil
}

// NormalizeLinkedInURL canonicalizes a LinkedIn URL for use as a join key:
// lowercase, no scheme, no trailing slash. Both the submitted URLs and the
// returned profile URLs pass through here so minor formatting differences
// still join.
func NormalizeLinkedInURL(u string) string {
	u = strings.TrimSpace(strings.ToLower(u))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	u = strings.TrimSuffix(u, "/")
	return u
}
