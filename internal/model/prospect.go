package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ProcessingStatus tracks how far a prospect has progressed through the
// pipeline. Transitions are monotonic along data_gathered → brief_generated
// → completed; failed is terminal and reachable from any stage.
type ProcessingStatus string

const (
	StatusNone           ProcessingStatus = ""
	StatusDataGathered   ProcessingStatus = "data_gathered"
	StatusBriefGenerated ProcessingStatus = "brief_generated"
	StatusCompleted      ProcessingStatus = "completed"
	StatusFailed         ProcessingStatus = "failed"
)

// Prospect is a single row from the input file.
type Prospect struct {
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website"`
	LinkedInURL    string `json:"company_linkedin_url"`
}

// HasLinkedInURL reports whether the prospect carries a usable LinkedIn URL.
// Spreadsheet exports routinely contain "nan" or "none" placeholder cells.
func (p Prospect) HasLinkedInURL() bool {
	v := strings.ToLower(strings.TrimSpace(p.LinkedInURL))
	return v != "" && v != "nan" && v != "none"
}

// WebsiteData holds the scraped content for one company website, organised
// by page category.
type WebsiteData struct {
	Homepage        string            `json:"homepage"`
	ServicesPages   map[string]string `json:"services_products_pages,omitempty"`
	MarketsPages    map[string]string `json:"markets_industries_pages,omitempty"`
	CaseStudyPages  map[string]string `json:"case_studies_pages,omitempty"`
	SitemapURLCount int               `json:"sitemap_urls_found"`
}

// Empty reports whether no content was scraped at all.
func (w *WebsiteData) Empty() bool {
	return w == nil || (w.Homepage == "" &&
		len(w.ServicesPages) == 0 &&
		len(w.MarketsPages) == 0 &&
		len(w.CaseStudyPages) == 0)
}

// CacheRecord is the persisted state for one prospect, keyed by normalized
// company website. Fields are populated incrementally as stages complete;
// a stage only ever adds fields, never clears earlier ones.
type CacheRecord struct {
	CompanyName    string           `json:"company_name"`
	CompanyWebsite string           `json:"company_website"`
	LinkedInURL    string           `json:"company_linkedin_url,omitempty"`
	LinkedInData   json.RawMessage  `json:"linkedin_data,omitempty"`
	WebsiteData    *WebsiteData     `json:"website_data,omitempty"`
	Brief          *ProspectBrief   `json:"prospect_brief,omitempty"`
	Messaging      string           `json:"custom_messaging,omitempty"`
	MessageService string           `json:"custom_message_output_1,omitempty"`
	MessageProblem string           `json:"custom_message_output_2,omitempty"`
	MessageSignals string           `json:"custom_message_output_3,omitempty"`
	Status         ProcessingStatus `json:"processing_status"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CacheUpdate is a partial upsert against a CacheRecord. Nil pointer fields
// and empty non-pointer fields are left untouched by the store; only the
// fields a stage produced are written, plus the new status.
type CacheUpdate struct {
	CompanyWebsite string // upsert key, required

	CompanyName    *string
	LinkedInURL    *string
	LinkedInData   json.RawMessage
	WebsiteData    *WebsiteData
	Brief          *ProspectBrief
	Messaging      *string
	MessageService *string
	MessageProblem *string
	MessageSignals *string
	Status         ProcessingStatus
	ErrorMessage   *string
}

// ProspectResult is the per-prospect pipeline outcome. Exactly one of
// short-circuit, completed, or failed is produced per prospect.
type ProspectResult struct {
	CompanyName    string         `json:"company_name"`
	CompanyWebsite string         `json:"company_website"`
	Brief          *ProspectBrief `json:"brief,omitempty"`
	Messaging      string         `json:"messaging,omitempty"`
	MessageService string         `json:"custom_message_output_1"`
	MessageProblem string         `json:"custom_message_output_2"`
	MessageSignals string         `json:"custom_message_output_3"`
	FromCache      bool           `json:"from_cache,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Failed reports whether the prospect ended in the failed state.
func (r *ProspectResult) Failed() bool {
	return r.Error != ""
}

// Str returns a pointer to s, for building CacheUpdate literals.
func Str(s string) *string {
	return &s
}

// NormalizeWebsite canonicalizes a company website for use as the cache key:
// lowercase, scheme and www. stripped, no trailing slash. "Acme.com" and
// "https://www.acme.com/" refer to the same cache row.
func NormalizeWebsite(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, "/")
}
