// Package brightdata wraps the BrightData Datasets v3 API for bulk LinkedIn
// company profile collection: trigger snapshot jobs in batches, poll their
// progress, and download the results.
package brightdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the BrightData Datasets v3 API.
const defaultBaseURL = "https://api.brightdata.com/datasets/v3"

// Client defines the BrightData Datasets API operations.
type Client interface {
	// Trigger starts a collection job for a batch of LinkedIn URLs and
	// returns its snapshot ID.
	Trigger(ctx context.Context, urls []string) (*TriggerResponse, error)
	// Progress returns the current status of a snapshot job.
	Progress(ctx context.Context, snapshotID string) (*ProgressResponse, error)
	// RunningCount returns the number of snapshot jobs currently running
	// on the account.
	RunningCount(ctx context.Context) (int, error)
	// Download retrieves the collected profiles of a ready snapshot.
	Download(ctx context.Context, snapshotID string) ([]Profile, error)
}

// TriggerResponse is the response from POST /trigger.
type TriggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// ProgressResponse is the response from GET /progress/{snapshot_id}.
type ProgressResponse struct {
	SnapshotID string    `json:"snapshot_id"`
	Status     JobStatus `json:"status"`
}

// snapshotInfo is one entry in the GET /snapshots listing.
type snapshotInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Profile is one collected LinkedIn company profile. Raw preserves the full
// API record for the cache; the typed fields cover what the pipeline reads.
type Profile struct {
	InputURL    string `json:"input_url"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	Website     string `json:"website"`
	About       string `json:"about"`
	Industries  string `json:"industries"`
	CompanySize string `json:"company_size"`
	Error       string `json:"error"`

	Raw json.RawMessage `json:"-"`
}

// Key returns the LinkedIn URL this profile joins back to: the URL it was
// requested under when the API echoes it, the canonical profile URL otherwise.
func (p Profile) Key() string {
	if p.InputURL != "" {
		return p.InputURL
	}
	return p.URL
}

// APIError is returned when BrightData responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brightdata: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey    string
	datasetID string
	baseURL   string
	http      *http.Client
}

// NewClient creates a new BrightData client for the given dataset.
func NewClient(apiKey, datasetID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		datasetID: datasetID,
		baseURL:   defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Trigger(ctx context.Context, urls []string) (*TriggerResponse, error) {
	body := make([]map[string]string, len(urls))
	for i, u := range urls {
		body[i] = map[string]string{"url": u}
	}

	path := fmt.Sprintf("/trigger?dataset_id=%s&include_errors=true", url.QueryEscape(c.datasetID))
	var resp TriggerResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, eris.Wrap(err, "brightdata: trigger")
	}
	if resp.SnapshotID == "" {
		return nil, eris.New("brightdata: trigger: empty snapshot id")
	}
	return &resp, nil
}

func (c *httpClient) Progress(ctx context.Context, snapshotID string) (*ProgressResponse, error) {
	var resp ProgressResponse
	if err := c.get(ctx, fmt.Sprintf("/progress/%s", snapshotID), &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("brightdata: progress %s", snapshotID))
	}
	return &resp, nil
}

func (c *httpClient) RunningCount(ctx context.Context) (int, error) {
	var snapshots []snapshotInfo
	path := fmt.Sprintf("/snapshots?dataset_id=%s&status=running", url.QueryEscape(c.datasetID))
	if err := c.get(ctx, path, &snapshots); err != nil {
		return 0, eris.Wrap(err, "brightdata: list running snapshots")
	}
	return len(snapshots), nil
}

func (c *httpClient) Download(ctx context.Context, snapshotID string) ([]Profile, error) {
	var records []json.RawMessage
	if err := c.get(ctx, fmt.Sprintf("/snapshot/%s?format=json", snapshotID), &records); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("brightdata: download %s", snapshotID))
	}

	profiles := make([]Profile, 0, len(records))
	for _, raw := range records {
		var p Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("brightdata: decode profile in %s", snapshotID))
		}
		p.Raw = raw
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
