package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/messaging-cli/internal/permit"
	"github.com/sells-group/messaging-cli/internal/prompts"
	"github.com/sells-group/messaging-cli/pkg/anthropic"
)

// maxClassifyURLs bounds how many sitemap URLs are offered to the model.
const maxClassifyURLs = 300

// Classification buckets sitemap URLs into the three page categories the
// brief stage reads.
type Classification struct {
	ServicesProducts  []string `json:"services_products_urls"`
	MarketsIndustries []string `json:"markets_industries_urls"`
	CaseStudies       []string `json:"case_studies_urls"`
}

// Classifier asks the model which sitemap URLs are worth scraping.
type Classifier struct {
	llm     anthropic.Client
	model   string
	permits *permit.Pool
	matcher *PathMatcher
}

// NewClassifier creates a Classifier. permits may be nil.
func NewClassifier(llm anthropic.Client, model string, permits *permit.Pool) *Classifier {
	return &Classifier{
		llm:     llm,
		model:   model,
		permits: permits,
		matcher: NewPathMatcher(nil),
	}
}

// Classify buckets sitemap URLs by category. Noise paths are filtered before
// the model sees them and the candidate list is capped.
func (c *Classifier) Classify(ctx context.Context, companyName string, urls []string) (*Classification, error) {
	urls = c.matcher.Filter(urls)
	if len(urls) == 0 {
		return &Classification{}, nil
	}
	if len(urls) > maxClassifyURLs {
		urls = urls[:maxClassifyURLs]
	}

	user := fmt.Sprintf("Company: %s\n\nSitemap URLs:\n%s", companyName, strings.Join(urls, "\n"))
	req := anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 2048,
		System:    []anthropic.SystemBlock{{Text: prompts.Sitemap}},
		Messages:  []anthropic.Message{{Role: "user", Content: user}},
	}

	var resp *anthropic.MessageResponse
	call := func(ctx context.Context) error {
		var err error
		resp, err = c.llm.CreateMessage(ctx, req)
		return err
	}

	var err error
	if c.permits != nil {
		err = c.permits.With(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, eris.Wrap(err, "scrape: classify sitemap")
	}
	resp.Usage.LogCost(c.model, "sitemap_classification")

	var result Classification
	if err := json.Unmarshal([]byte(StripFences(resp.Text())), &result); err != nil {
		zap.L().Warn("sitemap classification returned malformed JSON",
			zap.String("company", companyName),
			zap.Error(err))
		return &Classification{}, nil
	}
	return &result, nil
}

// StripFences removes a surrounding markdown code fence from model output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
