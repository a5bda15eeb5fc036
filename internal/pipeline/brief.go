package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/messaging-cli/internal/model"
	"github.com/sells-group/messaging-cli/internal/prompts"
	"github.com/sells-group/messaging-cli/internal/resilience"
	"github.com/sells-group/messaging-cli/internal/scrape"
	"github.com/sells-group/messaging-cli/pkg/anthropic"
)

// generateBrief produces the structured prospect brief from the gathered
// data. Malformed model output is retried; after the retry budget the
// prospect continues with an empty brief rather than failing.
func (pl *Pipeline) generateBrief(ctx context.Context, companyName string, linkedin json.RawMessage, website *model.WebsiteData) *model.ProspectBrief {
	req := anthropic.MessageRequest{
		Model:     pl.opts.BriefModel,
		MaxTokens: pl.opts.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(prompts.Brief),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildBriefInput(companyName, linkedin, website)},
		},
	}

	brief, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    pl.opts.RetryAttempts,
		InitialBackoff: 2 * time.Second,
		OnRetry:        resilience.RetryLogger("anthropic", "brief"),
	}, func(ctx context.Context) (*model.ProspectBrief, error) {
		resp, err := pl.createMessage(ctx, req, "brief")
		if err != nil {
			return nil, err
		}

		var b model.ProspectBrief
		if err := json.Unmarshal([]byte(scrape.StripFences(resp.Text())), &b); err != nil {
			return nil, eris.Wrap(err, "pipeline: parse brief")
		}
		return &b, nil
	})
	if err != nil {
		zap.L().Warn("pipeline: brief generation exhausted retries, using empty brief",
			zap.String("company", companyName),
			zap.Error(err),
		)
		return model.EmptyBrief(companyName)
	}

	if brief.CompanyName == "" {
		brief.CompanyName = companyName
	}
	return brief
}

// createMessage performs one LLM call under the shared LLM permit pool and
// logs its token cost.
func (pl *Pipeline) createMessage(ctx context.Context, req anthropic.MessageRequest, stage string) (*anthropic.MessageResponse, error) {
	var resp *anthropic.MessageResponse
	call := func(ctx context.Context) error {
		var err error
		resp, err = pl.llm.CreateMessage(ctx, req)
		return err
	}

	var err error
	if pl.llmPermits != nil {
		err = pl.llmPermits.With(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(req.Model, stage)
	return resp, nil
}

// buildBriefInput assembles the gathered artifacts into one prompt document.
func buildBriefInput(companyName string, linkedin json.RawMessage, website *model.WebsiteData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Company: %s\n\n", companyName)

	if len(linkedin) > 0 {
		b.WriteString("## LinkedIn Profile\n\n")
		b.Write(linkedin)
		b.WriteString("\n\n")
	}

	if website != nil {
		if website.Homepage != "" {
			b.WriteString("## Website: Homepage\n\n")
			b.WriteString(website.Homepage)
			b.WriteString("\n\n")
		}
		writePages(&b, "Services and Products", website.ServicesPages)
		writePages(&b, "Markets and Industries", website.MarketsPages)
		writePages(&b, "Case Studies", website.CaseStudyPages)
	}

	return b.String()
}

func writePages(b *strings.Builder, heading string, pages map[string]string) {
	if len(pages) == 0 {
		return
	}
	fmt.Fprintf(b, "## Website: %s\n\n", heading)
	for url, text := range pages {
		fmt.Fprintf(b, "### %s\n\n%s\n\n", url, text)
	}
}
