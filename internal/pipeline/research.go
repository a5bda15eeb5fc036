package pipeline

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/messaging-cli/internal/model"
	"github.com/sells-group/messaging-cli/internal/prompts"
	"github.com/sells-group/messaging-cli/pkg/perplexity"
)

// researchPainPoints fills in ProblemsPainPoints for briefs whose source
// material named offerings but no customer problems. One research query per
// offering, capped and run concurrently under the LLM permit pool.
// Individual query failures are logged and dropped.
func (pl *Pipeline) researchPainPoints(ctx context.Context, log *zap.Logger, brief *model.ProspectBrief) {
	offerings := brief.ServicesProducts
	if len(offerings) > pl.opts.MaxResearchOfferings {
		offerings = offerings[:pl.opts.MaxResearchOfferings]
	}

	var mu sync.Mutex
	found := make([][]string, len(offerings))

	g, gctx := errgroup.WithContext(ctx)
	for i, offering := range offerings {
		g.Go(func() error {
			resp, err := pl.researchOffering(gctx, offering)
			if err != nil {
				log.Warn("pipeline: pain point research failed",
					zap.String("offering", offering),
					zap.Error(err),
				)
				return nil // don't abort research on individual query failure
			}
			if len(resp.Choices) == 0 {
				return nil
			}

			mu.Lock()
			found[i] = parsePainPoints(offering, resp.Choices[0].Message.Content)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	before := len(brief.ProblemsPainPoints)
	for _, lines := range found {
		brief.ProblemsPainPoints = append(brief.ProblemsPainPoints, lines...)
	}
	log.Info("pipeline: pain point research finished",
		zap.Int("offerings", len(offerings)),
		zap.Int("pain_points", len(brief.ProblemsPainPoints)-before),
	)
}

// researchOffering performs one research query under the shared LLM permit
// pool.
func (pl *Pipeline) researchOffering(ctx context.Context, offering string) (*perplexity.ChatCompletionResponse, error) {
	var resp *perplexity.ChatCompletionResponse
	call := func(ctx context.Context) error {
		var err error
		resp, err = pl.research.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Messages: []perplexity.Message{
				{Role: "system", Content: prompts.Research},
				{Role: "user", Content: offering},
			},
		})
		return err
	}

	if pl.llmPermits != nil {
		if err := pl.llmPermits.With(ctx, call); err != nil {
			return nil, err
		}
		return resp, nil
	}
	if err := call(ctx); err != nil {
		return nil, err
	}
	return resp, nil
}

// parsePainPoints turns a research answer into pain-point entries, one per
// non-empty line, each tagged with the offering it came from. Bullet markers
// are stripped; a plain-paragraph answer still contributes its lines.
func parsePainPoints(offering, answer string) []string {
	var out []string
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•*")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, "["+offering+"] "+line)
		}
	}
	return out
}
