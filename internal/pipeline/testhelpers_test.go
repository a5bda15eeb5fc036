package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/messaging-cli/internal/model"
	"github.com/sells-group/messaging-cli/internal/prompts"
	"github.com/sells-group/messaging-cli/internal/store"
	"github.com/sells-group/messaging-cli/pkg/anthropic"
	"github.com/sells-group/messaging-cli/pkg/brightdata"
	"github.com/sells-group/messaging-cli/pkg/perplexity"
)

// memStore is an in-memory Store with the same merge-upsert semantics as
// the real backends: only set fields overwrite. getErr and upsertErr
// simulate a store outage.
type memStore struct {
	mu        sync.Mutex
	prospects map[string]*model.CacheRecord
	runs      map[string]*model.PipelineRun
	upserts   []model.CacheUpdate
	nextRunID int

	getErr    error
	upsertErr error
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		prospects: make(map[string]*model.CacheRecord),
		runs:      make(map[string]*model.PipelineRun),
	}
}

func (s *memStore) GetProspect(_ context.Context, companyWebsite string) (*model.CacheRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.prospects[companyWebsite]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) UpsertProspect(_ context.Context, update model.CacheUpdate) error {
	if update.CompanyWebsite == "" {
		return eris.New("memstore: upsert requires company website")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}

	s.upserts = append(s.upserts, update)

	rec, ok := s.prospects[update.CompanyWebsite]
	if !ok {
		rec = &model.CacheRecord{CompanyWebsite: update.CompanyWebsite}
		s.prospects[update.CompanyWebsite] = rec
	}
	if update.CompanyName != nil {
		rec.CompanyName = *update.CompanyName
	}
	if update.LinkedInURL != nil {
		rec.LinkedInURL = *update.LinkedInURL
	}
	if update.LinkedInData != nil {
		rec.LinkedInData = update.LinkedInData
	}
	if update.WebsiteData != nil {
		rec.WebsiteData = update.WebsiteData
	}
	if update.Brief != nil {
		rec.Brief = update.Brief
	}
	if update.Messaging != nil {
		rec.Messaging = *update.Messaging
	}
	if update.MessageService != nil {
		rec.MessageService = *update.MessageService
	}
	if update.MessageProblem != nil {
		rec.MessageProblem = *update.MessageProblem
	}
	if update.MessageSignals != nil {
		rec.MessageSignals = *update.MessageSignals
	}
	if update.Status != model.StatusNone {
		rec.Status = update.Status
	}
	if update.ErrorMessage != nil {
		rec.ErrorMessage = *update.ErrorMessage
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) CreateRun(_ context.Context, inputFile string, totalProspects int) (*model.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRunID++
	run := &model.PipelineRun{
		ID:             fmt.Sprintf("run-%d", s.nextRunID),
		InputFile:      inputFile,
		TotalProspects: totalProspects,
		Status:         model.RunStatusRunning,
		StartedAt:      time.Now(),
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *memStore) CompleteRun(_ context.Context, runID string, completed, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return eris.Errorf("memstore: run %s not found", runID)
	}
	now := time.Now()
	run.Completed = completed
	run.Failed = failed
	run.Status = model.RunStatusCompleted
	run.CompletedAt = &now
	return nil
}

func (s *memStore) GetRun(_ context.Context, runID string) (*model.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, eris.Errorf("memstore: run %s not found", runID)
	}
	cp := *run
	return &cp, nil
}

func (s *memStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PipelineRun
	for _, run := range s.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (s *memStore) Migrate(context.Context) error { return nil }
func (s *memStore) Close() error                  { return nil }

func (s *memStore) record(key string) *model.CacheRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prospects[key]
}

func (s *memStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

// mockLLM routes each request by system prompt so one mock serves the
// brief, research, and messaging stages.
type mockLLM struct {
	mu             sync.Mutex
	briefCalls     int
	messagingCalls int

	briefFunc     func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
	messagingFunc func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (m *mockLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	var system string
	if len(req.System) > 0 {
		system = req.System[0].Text
	}

	m.mu.Lock()
	switch system {
	case prompts.Brief:
		m.briefCalls++
	case prompts.Messaging:
		m.messagingCalls++
	}
	m.mu.Unlock()

	switch system {
	case prompts.Brief:
		if m.briefFunc != nil {
			return m.briefFunc(req)
		}
	case prompts.Messaging:
		if m.messagingFunc != nil {
			return m.messagingFunc(req)
		}
	}
	return nil, eris.Errorf("mockLLM: unexpected system prompt %q", firstLine(system))
}

func (m *mockLLM) calls() (brief, messaging int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.briefCalls, m.messagingCalls
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func briefResponse(brief string) func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return textResponse(brief), nil
	}
}

const messagingOutput = `- **Selected Service**: Widget consulting
- **Problem Solved**: Plants lose output to unplanned widget downtime.
- **Intent Signals**:
  - Hiring maintenance engineers
  - New plant announcements`

func messagingResponse() func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return textResponse(messagingOutput), nil
	}
}

// mockResearch implements perplexity.Client with a function field.
type mockResearch struct {
	mu       sync.Mutex
	queries  []string
	chatFunc func(req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error)
}

func (m *mockResearch) ChatCompletion(_ context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	m.mu.Lock()
	if len(req.Messages) > 0 {
		m.queries = append(m.queries, req.Messages[len(req.Messages)-1].Content)
	}
	m.mu.Unlock()

	if m.chatFunc != nil {
		return m.chatFunc(req)
	}
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{
			{Message: perplexity.Message{Role: "assistant", Content: "- downtime cost\n- maintenance backlog"}},
		},
	}, nil
}

func (m *mockResearch) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// mockScraper implements WebsiteScraper with a function field.
type mockScraper struct {
	mu         sync.Mutex
	calls      int
	scrapeFunc func(ctx context.Context, companyName, siteURL string) (*model.WebsiteData, error)
}

func (m *mockScraper) Scrape(ctx context.Context, companyName, siteURL string) (*model.WebsiteData, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.scrapeFunc != nil {
		return m.scrapeFunc(ctx, companyName, siteURL)
	}
	return &model.WebsiteData{
		Homepage:        "Acme homepage text",
		SitemapURLCount: 3,
	}, nil
}

func (m *mockScraper) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockLinkedIn implements LinkedInFetcher with a function field.
type mockLinkedIn struct {
	mu        sync.Mutex
	calls     int
	fetchFunc func(ctx context.Context, urls []string) (map[string]brightdata.Profile, error)
}

func (m *mockLinkedIn) Fetch(ctx context.Context, urls []string) (map[string]brightdata.Profile, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, urls)
	}
	return map[string]brightdata.Profile{}, nil
}

func (m *mockLinkedIn) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

const validBriefJSON = `{
	"company_name": "Acme Corp",
	"services_products": ["Widget consulting"],
	"markets_industries": ["Manufacturing"],
	"problems_pain_points": ["Unplanned downtime"],
	"case_studies": []
}`
