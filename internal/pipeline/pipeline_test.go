package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/messaging-cli/internal/model"
	"github.com/sells-group/messaging-cli/internal/permit"
	"github.com/sells-group/messaging-cli/pkg/anthropic"
	"github.com/sells-group/messaging-cli/pkg/brightdata"
	"github.com/sells-group/messaging-cli/pkg/perplexity"
)

var testProspect = model.Prospect{
	CompanyName:    "Acme Corp",
	CompanyWebsite: "https://www.acme.com",
	LinkedInURL:    "https://linkedin.com/company/acme",
}

const testKey = "acme.com"

func newTestPipeline(st *memStore, llm *mockLLM, research *mockResearch, scraper *mockScraper, opts Options) *Pipeline {
	return New(st, llm, research, scraper, nil, nil, opts)
}

func noProfiles() map[string]brightdata.Profile {
	return map[string]brightdata.Profile{}
}

func TestProcessProspect_FullRun(t *testing.T) {
	st := newMemStore()
	llm := &mockLLM{briefFunc: briefResponse(validBriefJSON), messagingFunc: messagingResponse()}
	research := &mockResearch{}
	scraper := &mockScraper{}

	pl := newTestPipeline(st, llm, research, scraper, Options{})
	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), false)

	require.False(t, result.Failed(), "unexpected error: %s", result.Error)
	assert.False(t, result.FromCache)
	require.NotNil(t, result.Brief)
	assert.Equal(t, []string{"Widget consulting"}, result.Brief.ServicesProducts)
	assert.Equal(t, "Widget consulting", result.MessageService)
	assert.Equal(t, "Plants lose output to unplanned widget downtime.", result.MessageProblem)
	assert.Contains(t, result.MessageSignals, "Hiring maintenance engineers")

	rec := st.record(testKey)
	require.NotNil(t, rec)
	assert.Equal(t, model.StatusCompleted, rec.Status)
	assert.Equal(t, "Acme Corp", rec.CompanyName)
	require.NotNil(t, rec.Brief)

	// Stage persistence order: gathered, brief, completed.
	require.Len(t, st.upserts, 3)
	assert.Equal(t, model.StatusDataGathered, st.upserts[0].Status)
	assert.Equal(t, model.StatusBriefGenerated, st.upserts[1].Status)
	assert.Equal(t, model.StatusCompleted, st.upserts[2].Status)

	briefCalls, messagingCalls := llm.calls()
	assert.Equal(t, 1, briefCalls)
	assert.Equal(t, 1, messagingCalls)
	// The brief already has pain points, so no research.
	assert.Zero(t, research.queryCount())
}

func TestProcessProspect_CacheShortCircuit(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.UpsertProspect(context.Background(), model.CacheUpdate{
		CompanyWebsite: testKey,
		CompanyName:    model.Str("Acme Corp"),
		Brief:          model.EmptyBrief("Acme Corp"),
		Messaging:      model.Str("cached messaging"),
		MessageService: model.Str("cached service"),
		Status:         model.StatusCompleted,
	}))
	seedUpserts := st.upsertCount()

	llm := &mockLLM{}
	scraper := &mockScraper{}
	pl := newTestPipeline(st, llm, &mockResearch{}, scraper, Options{})

	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), false)

	require.False(t, result.Failed())
	assert.True(t, result.FromCache)
	assert.Equal(t, "cached messaging", result.Messaging)
	assert.Equal(t, "cached service", result.MessageService)

	// A cache hit performs no remote work and no writes.
	assert.Zero(t, scraper.callCount())
	briefCalls, messagingCalls := llm.calls()
	assert.Zero(t, briefCalls)
	assert.Zero(t, messagingCalls)
	assert.Equal(t, seedUpserts, st.upsertCount())
}

func TestProcessProspect_FailedStatusRetriesFully(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.UpsertProspect(context.Background(), model.CacheUpdate{
		CompanyWebsite: testKey,
		Status:         model.StatusFailed,
		ErrorMessage:   model.Str("scrape: blocked"),
	}))

	llm := &mockLLM{briefFunc: briefResponse(validBriefJSON), messagingFunc: messagingResponse()}
	scraper := &mockScraper{}
	pl := newTestPipeline(st, llm, &mockResearch{}, scraper, Options{})

	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), false)

	require.False(t, result.Failed())
	assert.False(t, result.FromCache, "failed prospects are reattempted, not served from cache")
	assert.Equal(t, 1, scraper.callCount())
	assert.Equal(t, model.StatusCompleted, st.record(testKey).Status)
}

func TestProcessProspect_ReprocessReusesGatheredData(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.UpsertProspect(context.Background(), model.CacheUpdate{
		CompanyWebsite: testKey,
		CompanyName:    model.Str("Acme Corp"),
		LinkedInData:   json.RawMessage(`{"name":"Acme Corp"}`),
		WebsiteData:    &model.WebsiteData{Homepage: "cached homepage", SitemapURLCount: 7},
		Brief:          model.EmptyBrief("Acme Corp"),
		Messaging:      model.Str("old messaging"),
		Status:         model.StatusCompleted,
	}))

	var briefInput string
	llm := &mockLLM{
		briefFunc: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			briefInput = req.Messages[0].Content
			return textResponse(validBriefJSON), nil
		},
		messagingFunc: messagingResponse(),
	}
	scraper := &mockScraper{}
	pl := newTestPipeline(st, llm, &mockResearch{}, scraper, Options{})

	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), true)

	require.False(t, result.Failed())
	assert.False(t, result.FromCache)
	assert.Zero(t, scraper.callCount(), "reprocess reuses the cached scrape")
	assert.Contains(t, briefInput, "cached homepage")
	assert.Contains(t, briefInput, `{"name":"Acme Corp"}`)

	rec := st.record(testKey)
	assert.Equal(t, model.StatusCompleted, rec.Status)
	assert.Contains(t, rec.MessageService, "Widget consulting")
}

func TestProcessProspect_ResearchFallback(t *testing.T) {
	// Seven offerings, no pain points: research runs, capped at five.
	brief := model.ProspectBrief{
		CompanyName: "Acme Corp",
		ServicesProducts: []string{
			"Consulting", "Integration", "Training", "Support",
			"Auditing", "Hosting", "Migration",
		},
		ProblemsPainPoints: []string{},
	}
	briefJSON, err := json.Marshal(brief)
	require.NoError(t, err)

	st := newMemStore()
	llm := &mockLLM{briefFunc: briefResponse(string(briefJSON)), messagingFunc: messagingResponse()}
	research := &mockResearch{}
	pl := newTestPipeline(st, llm, research, &mockScraper{}, Options{MaxResearchOfferings: 5})

	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), false)

	require.False(t, result.Failed())
	assert.Equal(t, 5, research.queryCount())

	// Two bullets per offering from the default mock answer, each tagged
	// with the offering it was researched for.
	rec := st.record(testKey)
	require.NotNil(t, rec.Brief)
	assert.Len(t, rec.Brief.ProblemsPainPoints, 10)
	assert.Contains(t, rec.Brief.ProblemsPainPoints, "[Consulting] downtime cost")
}

func TestProcessProspect_ResearchFailuresIsolated(t *testing.T) {
	brief := model.ProspectBrief{
		CompanyName:        "Acme Corp",
		ServicesProducts:   []string{"Consulting"},
		ProblemsPainPoints: []string{},
	}
	briefJSON, err := json.Marshal(brief)
	require.NoError(t, err)

	st := newMemStore()
	llm := &mockLLM{briefFunc: briefResponse(string(briefJSON)), messagingFunc: messagingResponse()}
	research := &mockResearch{
		chatFunc: func(perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
			return nil, eris.New("perplexity: unexpected status 500")
		},
	}
	pl := newTestPipeline(st, llm, research, &mockScraper{}, Options{})

	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), false)

	require.False(t, result.Failed(), "research failures must not fail the prospect")
	assert.Equal(t, model.StatusCompleted, st.record(testKey).Status)
	assert.Empty(t, st.record(testKey).Brief.ProblemsPainPoints)
}

func TestProcessProspect_StoreOutageIsBestEffort(t *testing.T) {
	st := newMemStore()
	st.getErr = eris.New("store: connection refused")
	st.upsertErr = eris.New("store: connection refused")

	llm := &mockLLM{briefFunc: briefResponse(validBriefJSON), messagingFunc: messagingResponse()}
	scraper := &mockScraper{}
	pl := newTestPipeline(st, llm, &mockResearch{}, scraper, Options{})

	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), false)

	// A store outage costs resumability, not the prospect: every stage
	// still runs and the result carries the generated artifacts.
	require.False(t, result.Failed(), "unexpected error: %s", result.Error)
	assert.Equal(t, 1, scraper.callCount())
	briefCalls, messagingCalls := llm.calls()
	assert.Equal(t, 1, briefCalls)
	assert.Equal(t, 1, messagingCalls)
	assert.Equal(t, "Widget consulting", result.MessageService)
}

func TestProcessProspect_ResearchHoldsLLMPermit(t *testing.T) {
	brief := model.ProspectBrief{
		CompanyName:        "Acme Corp",
		ServicesProducts:   []string{"Consulting", "Integration", "Training", "Support", "Auditing"},
		ProblemsPainPoints: []string{},
	}
	briefJSON, err := json.Marshal(brief)
	require.NoError(t, err)

	var inFlight, peak atomic.Int32
	research := &mockResearch{
		chatFunc: func(perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return &perplexity.ChatCompletionResponse{
				Choices: []perplexity.Choice{
					{Message: perplexity.Message{Role: "assistant", Content: "- slow cycle times"}},
				},
			}, nil
		},
	}

	st := newMemStore()
	llm := &mockLLM{briefFunc: briefResponse(string(briefJSON)), messagingFunc: messagingResponse()}
	pl := New(st, llm, research, &mockScraper{}, nil, permit.NewPool(1), Options{})

	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), false)

	require.False(t, result.Failed())
	assert.Equal(t, 5, research.queryCount())
	assert.Equal(t, int32(1), peak.Load(), "research calls must hold an LLM permit")
}

func TestProcessProspect_BriefFallsBackToEmpty(t *testing.T) {
	st := newMemStore()
	llm := &mockLLM{
		briefFunc:     briefResponse("this is not json"),
		messagingFunc: messagingResponse(),
	}
	pl := newTestPipeline(st, llm, &mockResearch{}, &mockScraper{}, Options{RetryAttempts: 1})

	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), false)

	require.False(t, result.Failed())
	require.NotNil(t, result.Brief)
	assert.Equal(t, "Acme Corp", result.Brief.CompanyName)
	assert.Empty(t, result.Brief.ServicesProducts)

	// The empty brief still flows through messaging.
	_, messagingCalls := llm.calls()
	assert.Equal(t, 1, messagingCalls)
}

func TestProcessProspect_ScrapeFailure(t *testing.T) {
	st := newMemStore()
	scraper := &mockScraper{
		scrapeFunc: func(context.Context, string, string) (*model.WebsiteData, error) {
			return nil, eris.New("scrape: blocked (cloudflare) at https://acme.com")
		},
	}
	pl := newTestPipeline(st, &mockLLM{}, &mockResearch{}, scraper, Options{})

	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), false)

	require.True(t, result.Failed())
	assert.Contains(t, result.Error, "blocked (cloudflare)")

	rec := st.record(testKey)
	require.NotNil(t, rec)
	assert.Equal(t, model.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "blocked (cloudflare)")
}

func TestProcessProspect_MessagingFailure(t *testing.T) {
	st := newMemStore()
	llm := &mockLLM{
		briefFunc: briefResponse(validBriefJSON),
		messagingFunc: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return nil, eris.New("anthropic: overloaded")
		},
	}
	pl := newTestPipeline(st, llm, &mockResearch{}, &mockScraper{}, Options{RetryAttempts: 1})

	result := pl.ProcessProspect(context.Background(), testProspect, noProfiles(), false)

	require.True(t, result.Failed())
	assert.Contains(t, result.Error, "generate messaging")

	rec := st.record(testKey)
	assert.Equal(t, model.StatusFailed, rec.Status)
	// Earlier stage artifacts survive the failure write.
	require.NotNil(t, rec.Brief)
	assert.Equal(t, []string{"Widget consulting"}, rec.Brief.ServicesProducts)
}

func TestProcessProspect_UsesPrefetchedProfile(t *testing.T) {
	st := newMemStore()
	var briefInput string
	llm := &mockLLM{
		briefFunc: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			briefInput = req.Messages[0].Content
			return textResponse(validBriefJSON), nil
		},
		messagingFunc: messagingResponse(),
	}

	profiles := map[string]brightdata.Profile{
		"linkedin.com/company/acme": {
			Name: "Acme Corp",
			Raw:  json.RawMessage(`{"name":"Acme Corp","company_size":"51-200"}`),
		},
	}
	pl := newTestPipeline(st, llm, &mockResearch{}, &mockScraper{}, Options{})

	result := pl.ProcessProspect(context.Background(), testProspect, profiles, false)

	require.False(t, result.Failed())
	assert.Contains(t, briefInput, `"company_size":"51-200"`)
	assert.JSONEq(t, `{"name":"Acme Corp","company_size":"51-200"}`, string(st.record(testKey).LinkedInData))
	assert.Equal(t, testProspect.LinkedInURL, st.record(testKey).LinkedInURL)
}

func TestProcessProspect_NoWebsite(t *testing.T) {
	st := newMemStore()
	pl := newTestPipeline(st, &mockLLM{}, &mockResearch{}, &mockScraper{}, Options{})

	result := pl.ProcessProspect(context.Background(), model.Prospect{CompanyName: "No Site Inc"}, noProfiles(), false)

	require.True(t, result.Failed())
	assert.Contains(t, result.Error, "no company website")
	assert.Zero(t, st.upsertCount())
}

func TestParsePainPoints(t *testing.T) {
	t.Parallel()

	bullets := parsePainPoints("Hosting", "- downtime\n* latency\n• churn")
	assert.Equal(t, []string{"[Hosting] downtime", "[Hosting] latency", "[Hosting] churn"}, bullets)

	// A plain-paragraph answer still contributes.
	plain := parsePainPoints("Hosting", "Buyers worry about uptime guarantees.")
	assert.Equal(t, []string{"[Hosting] Buyers worry about uptime guarantees."}, plain)

	assert.Empty(t, parsePainPoints("Hosting", "  \n\t\n"))
}

func TestParseMessaging(t *testing.T) {
	m := ParseMessaging(messagingOutput)

	assert.Equal(t, "Widget consulting", m.SelectedService)
	assert.Equal(t, "Plants lose output to unplanned widget downtime.", m.ProblemSolved)
	assert.True(t, strings.HasPrefix(m.IntentSignals, "- Hiring maintenance engineers"))
	assert.Contains(t, m.IntentSignals, "New plant announcements")
	assert.Equal(t, messagingOutput, m.Raw)
}

func TestParseMessaging_MissingFields(t *testing.T) {
	m := ParseMessaging("free-form answer with no labels")

	assert.Equal(t, "free-form answer with no labels", m.Raw)
	assert.Empty(t, m.SelectedService)
	assert.Empty(t, m.ProblemSolved)
	assert.Empty(t, m.IntentSignals)
}

func TestNormalizeWebsite(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.acme.com/", "acme.com"},
		{"HTTP://ACME.COM", "acme.com"},
		{"acme.com", "acme.com"},
		{" www.acme.com ", "acme.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, model.NormalizeWebsite(tt.in), tt.in)
	}
}
