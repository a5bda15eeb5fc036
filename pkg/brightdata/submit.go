package brightdata

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/messaging-cli/internal/resilience"
)

// Config tunes batch submission and polling. Zero values fall back to the
// API's practical limits.
type Config struct {
	BatchSize       int
	MaxRunningJobs  int
	Cooldown        time.Duration
	TriggerRetries  int
	TriggerBackoff  time.Duration
	InterBatchDelay time.Duration
	PollInterval    time.Duration
	PollTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxRunningJobs <= 0 {
		c.MaxRunningJobs = 99
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 2 * time.Minute
	}
	if c.TriggerRetries <= 0 {
		c.TriggerRetries = 3
	}
	if c.TriggerBackoff <= 0 {
		c.TriggerBackoff = 2 * time.Second
	}
	if c.InterBatchDelay <= 0 {
		c.InterBatchDelay = 500 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 10 * time.Minute
	}
	return c
}

// Submitter splits LinkedIn URLs into fixed-size batches and triggers one
// snapshot job per batch, pacing submissions and respecting the account's
// running-job ceiling.
type Submitter struct {
	client  Client
	cfg     Config
	limiter *rate.Limiter
}

// NewSubmitter creates a Submitter.
func NewSubmitter(client Client, cfg Config) *Submitter {
	cfg = cfg.withDefaults()
	return &Submitter{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.InterBatchDelay), 1),
	}
}

// SubmitAll triggers one snapshot job per batch of URLs and returns the
// snapshot IDs of the jobs that started. A batch whose trigger fails after
// all retries is logged and skipped; it does not abort the remaining batches.
func (s *Submitter) SubmitAll(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	batches := chunk(urls, s.cfg.BatchSize)
	zap.L().Info("submitting brightdata batches",
		zap.Int("urls", len(urls)),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", s.cfg.BatchSize))

	snapshotIDs := make([]string, 0, len(batches))
	for i, batch := range batches {
		if err := s.waitForCapacity(ctx); err != nil {
			return snapshotIDs, err
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return snapshotIDs, eris.Wrap(err, "brightdata: inter-batch wait")
		}

		id, err := s.trigger(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return snapshotIDs, eris.Wrap(ctx.Err(), "brightdata: submit aborted")
			}
			zap.L().Warn("batch trigger failed, skipping",
				zap.Int("batch", i+1),
				zap.Int("urls", len(batch)),
				zap.Error(err))
			continue
		}

		zap.L().Debug("batch triggered",
			zap.Int("batch", i+1),
			zap.String("snapshot_id", id))
		snapshotIDs = append(snapshotIDs, id)
	}

	return snapshotIDs, nil
}

// waitForCapacity checks the account's running-job count and sleeps out one
// cooldown when it is at the ceiling. The check is point-in-time: a job that
// finishes or starts elsewhere between check and trigger is tolerated, the
// ceiling has headroom for that.
func (s *Submitter) waitForCapacity(ctx context.Context) error {
	running, err := s.client.RunningCount(ctx)
	if err != nil {
		// Capacity probing is advisory; trigger still fails loudly if the
		// account is actually saturated.
		zap.L().Warn("running-count check failed", zap.Error(err))
		return nil
	}
	if running < s.cfg.MaxRunningJobs {
		return nil
	}

	zap.L().Info("running-job ceiling reached, cooling down",
		zap.Int("running", running),
		zap.Int("ceiling", s.cfg.MaxRunningJobs),
		zap.Duration("cooldown", s.cfg.Cooldown))

	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "brightdata: cooldown interrupted")
	case <-time.After(s.cfg.Cooldown):
		return nil
	}
}

// trigger submits one batch with exponential-backoff retries.
func (s *Submitter) trigger(ctx context.Context, batch []string) (string, error) {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:    s.cfg.TriggerRetries,
		InitialBackoff: s.cfg.TriggerBackoff,
		OnRetry:        resilience.RetryLogger("brightdata", "trigger"),
	}

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*TriggerResponse, error) {
		return s.client.Trigger(ctx, batch)
	})
	if err != nil {
		return "", err
	}
	return resp.SnapshotID, nil
}

// chunk splits urls into consecutive slices of at most size elements.
func chunk(urls []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(urls); start += size {
		end := start + size
		if end > len(urls) {
			end = len(urls)
		}
		batches = append(batches, urls[start:end])
	}
	return batches
}
