package scrape

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/messaging-cli/internal/model"
	"github.com/sells-group/messaging-cli/internal/webtext"
)

// PageCaps bounds how many pages per category get scraped. The caps keep
// the brief prompt within budget.
type PageCaps struct {
	Services    int
	Markets     int
	CaseStudies int
}

func (c PageCaps) withDefaults() PageCaps {
	if c.Services <= 0 {
		c.Services = 3
	}
	if c.Markets <= 0 {
		c.Markets = 3
	}
	if c.CaseStudies <= 0 {
		c.CaseStudies = 5
	}
	return c
}

// Scraper gathers a company's website content: homepage first, then the
// classified sitemap pages, fetched concurrently under the HTTP permit pool.
type Scraper struct {
	fetcher    *Fetcher
	classifier *Classifier
	caps       PageCaps
}

// NewScraper creates a Scraper. Zero-value caps fall back to defaults.
func NewScraper(fetcher *Fetcher, classifier *Classifier, caps PageCaps) *Scraper {
	return &Scraper{fetcher: fetcher, classifier: classifier, caps: caps.withDefaults()}
}

// Scrape collects website content for one prospect. The homepage is
// mandatory; everything past it degrades gracefully — a site without a
// sitemap, or a failed classification, still yields homepage-only data.
func (s *Scraper) Scrape(ctx context.Context, companyName, siteURL string) (*model.WebsiteData, error) {
	siteURL = webtext.NormalizeURL(siteURL)

	homepage, err := s.fetcher.FetchText(ctx, siteURL)
	if err != nil {
		return nil, err
	}

	data := &model.WebsiteData{Homepage: homepage}

	sitemapURLs := FetchSitemapURLs(ctx, s.fetcher, siteURL)
	data.SitemapURLCount = len(sitemapURLs)
	if len(sitemapURLs) == 0 {
		return data, nil
	}

	cls, err := s.classifier.Classify(ctx, companyName, sitemapURLs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		zap.L().Warn("sitemap classification failed, continuing with homepage only",
			zap.String("company", companyName),
			zap.Error(err))
		return data, nil
	}

	data.ServicesPages = s.fetchPages(ctx, firstN(cls.ServicesProducts, s.caps.Services))
	data.MarketsPages = s.fetchPages(ctx, firstN(cls.MarketsIndustries, s.caps.Markets))
	data.CaseStudyPages = s.fetchPages(ctx, firstN(cls.CaseStudies, s.caps.CaseStudies))
	return data, ctx.Err()
}

// fetchPages fetches a category's pages concurrently. Individual page
// failures are logged and dropped; the map holds whatever succeeded.
func (s *Scraper) fetchPages(ctx context.Context, urls []string) map[string]string {
	if len(urls) == 0 {
		return nil
	}

	var mu sync.Mutex
	pages := make(map[string]string)

	g, ctx := errgroup.WithContext(ctx)
	for _, u := range urls {
		g.Go(func() error {
			text, err := s.fetcher.FetchText(ctx, u)
			if err != nil {
				zap.L().Debug("page fetch failed", zap.String("url", u), zap.Error(err))
				return nil // don't abort the category on individual page failure
			}
			mu.Lock()
			pages[u] = text
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(pages) == 0 {
		return nil
	}
	return pages
}

func firstN(urls []string, n int) []string {
	if len(urls) > n {
		return urls[:n]
	}
	return urls
}
