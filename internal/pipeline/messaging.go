package pipeline

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/messaging-cli/internal/model"
	"github.com/sells-group/messaging-cli/internal/prompts"
	"github.com/sells-group/messaging-cli/internal/resilience"
	"github.com/sells-group/messaging-cli/pkg/anthropic"
)

// generateMessaging produces the outbound messaging for a finished brief.
// Unlike the brief stage there is no fallback: messaging is the product, so
// exhausted retries fail the prospect.
func (pl *Pipeline) generateMessaging(ctx context.Context, brief *model.ProspectBrief) (*model.Messaging, error) {
	briefJSON, err := json.MarshalIndent(brief, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: marshal brief")
	}

	req := anthropic.MessageRequest{
		Model:     pl.opts.MessagingModel,
		MaxTokens: pl.opts.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(prompts.Messaging),
		Messages: []anthropic.Message{
			{Role: "user", Content: string(briefJSON)},
		},
	}

	resp, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    pl.opts.RetryAttempts,
		InitialBackoff: 2 * time.Second,
		OnRetry:        resilience.RetryLogger("anthropic", "messaging"),
	}, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return pl.createMessage(ctx, req, "messaging")
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: generate messaging")
	}

	return ParseMessaging(resp.Text()), nil
}

var (
	selectedServiceRe = regexp.MustCompile(`(?im)^\s*-?\s*\*\*Selected Service\*\*:\s*(.+)$`)
	problemSolvedRe   = regexp.MustCompile(`(?im)^\s*-?\s*\*\*Problem Solved\*\*:\s*(.+)$`)
	intentSignalsRe   = regexp.MustCompile(`(?is)\*\*Intent Signals\*\*:\s*(.+)$`)
)

// ParseMessaging extracts the three labelled fields from the messaging
// output. Fields the model omitted stay empty; the raw text is always kept
// so nothing is lost to a formatting drift.
func ParseMessaging(raw string) *model.Messaging {
	m := &model.Messaging{Raw: strings.TrimSpace(raw)}

	if match := selectedServiceRe.FindStringSubmatch(raw); match != nil {
		m.SelectedService = strings.TrimSpace(match[1])
	}
	if match := problemSolvedRe.FindStringSubmatch(raw); match != nil {
		m.ProblemSolved = strings.TrimSpace(match[1])
	}
	if match := intentSignalsRe.FindStringSubmatch(raw); match != nil {
		m.IntentSignals = strings.TrimSpace(match[1])
	}
	return m
}
