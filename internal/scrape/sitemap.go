package scrape

import (
	"context"
	"encoding/xml"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// sitemapPaths are the candidate locations tried in order. The first one
// that yields URLs wins.
var sitemapPaths = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap-index.xml"}

// maxChildSitemaps bounds how many nested sitemaps from an index file get
// expanded.
const maxChildSitemaps = 5

// FetchSitemapURLs discovers the page URLs of a site from its sitemap.
// Sitemap index files are expanded one level deep. A site with no reachable
// sitemap returns an empty slice, not an error — the pipeline still has the
// homepage.
func FetchSitemapURLs(ctx context.Context, fetcher *Fetcher, siteURL string) []string {
	base := strings.TrimSuffix(siteURL, "/")

	for _, path := range sitemapPaths {
		body, err := fetcher.FetchRaw(ctx, base+path)
		if err != nil {
			continue
		}

		locs := parseLocs(body)
		if len(locs) == 0 {
			continue
		}

		// An index file lists other sitemaps instead of pages.
		if isSitemapIndex(locs) {
			locs = expandIndex(ctx, fetcher, locs)
		}
		if len(locs) > 0 {
			zap.L().Debug("sitemap discovered",
				zap.String("site", siteURL),
				zap.String("path", path),
				zap.Int("urls", len(locs)))
			return locs
		}
	}
	return nil
}

func isSitemapIndex(locs []string) bool {
	for _, loc := range locs {
		if !strings.HasSuffix(strings.ToLower(loc), ".xml") {
			return false
		}
	}
	return len(locs) > 0
}

func expandIndex(ctx context.Context, fetcher *Fetcher, sitemaps []string) []string {
	if len(sitemaps) > maxChildSitemaps {
		sitemaps = sitemaps[:maxChildSitemaps]
	}

	var urls []string
	for _, sm := range sitemaps {
		body, err := fetcher.FetchRaw(ctx, sm)
		if err != nil {
			continue
		}
		urls = append(urls, parseLocs(body)...)
	}
	return urls
}

// urlset covers both <urlset> and <sitemapindex> documents; we only need
// the <loc> values either way.
type urlset struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

var locRe = regexp.MustCompile(`(?is)<loc[^>]*>(.*?)</loc>`)

// parseLocs extracts <loc> entries, falling back to a regex scan when the
// document is not well-formed XML (real-world sitemaps often are not).
func parseLocs(body []byte) []string {
	var doc urlset
	if err := xml.Unmarshal(body, &doc); err == nil {
		var locs []string
		for _, u := range doc.URLs {
			if v := strings.TrimSpace(u.Loc); v != "" {
				locs = append(locs, v)
			}
		}
		for _, s := range doc.Sitemaps {
			if v := strings.TrimSpace(s.Loc); v != "" {
				locs = append(locs, v)
			}
		}
		if len(locs) > 0 {
			return locs
		}
	}

	var locs []string
	for _, m := range locRe.FindAllSubmatch(body, -1) {
		if v := strings.TrimSpace(string(m[1])); v != "" {
			locs = append(locs, v)
		}
	}
	return locs
}
