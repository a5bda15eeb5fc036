package brightdata

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/messaging-cli/internal/permit"
)

// JobResult is the terminal outcome of polling one snapshot job.
type JobResult struct {
	SnapshotID string
	Status     JobStatus
	Err        error
}

// Poller watches snapshot jobs until every one reaches a terminal state.
type Poller struct {
	client   Client
	interval time.Duration
	timeout  time.Duration
	permits  *permit.Pool
}

// NewPoller creates a Poller. permits may be nil; when set, each progress
// request holds one permit so polling shares the pipeline's HTTP budget.
func NewPoller(client Client, cfg Config, permits *permit.Pool) *Poller {
	cfg = cfg.withDefaults()
	return &Poller{
		client:   client,
		interval: cfg.PollInterval,
		timeout:  cfg.PollTimeout,
		permits:  permits,
	}
}

// WaitAll polls every snapshot concurrently and returns one JobResult per
// snapshot ID, in input order. A job that is not terminal when its wall-clock
// budget runs out is reported as timed out; individual failures never abort
// the other jobs. The only error returned is context cancellation.
func (p *Poller) WaitAll(ctx context.Context, snapshotIDs []string) ([]JobResult, error) {
	results := make([]JobResult, len(snapshotIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range snapshotIDs {
		g.Go(func() error {
			results[i] = p.wait(gctx, id)
			return nil // don't abort the batch on individual job failure
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// wait polls one snapshot until it is terminal or its budget expires.
func (p *Poller) wait(ctx context.Context, snapshotID string) JobResult {
	deadline := time.Now().Add(p.timeout)

	var lastErr error
	for {
		status, err := p.progress(ctx, snapshotID)
		if err != nil {
			if ctx.Err() != nil {
				return JobResult{SnapshotID: snapshotID, Status: JobFailed, Err: err}
			}
			// Transient progress failures just mean we ask again next tick.
			lastErr = err
			zap.L().Debug("progress check failed",
				zap.String("snapshot_id", snapshotID),
				zap.Error(err))
		} else {
			lastErr = nil
			if status.Terminal() {
				return JobResult{SnapshotID: snapshotID, Status: status}
			}
		}

		if time.Now().After(deadline) {
			zap.L().Warn("snapshot polling budget exhausted",
				zap.String("snapshot_id", snapshotID),
				zap.Duration("timeout", p.timeout))
			return JobResult{SnapshotID: snapshotID, Status: JobTimeout, Err: lastErr}
		}

		select {
		case <-ctx.Done():
			return JobResult{SnapshotID: snapshotID, Status: JobFailed, Err: ctx.Err()}
		case <-time.After(p.interval):
		}
	}
}

func (p *Poller) progress(ctx context.Context, snapshotID string) (JobStatus, error) {
	var status JobStatus
	call := func(ctx context.Context) error {
		resp, err := p.client.Progress(ctx, snapshotID)
		if err != nil {
			return err
		}
		status = resp.Status
		return nil
	}

	if p.permits != nil {
		if err := p.permits.With(ctx, call); err != nil {
			return "", err
		}
		return status, nil
	}
	if err := call(ctx); err != nil {
		return "", err
	}
	return status, nil
}
