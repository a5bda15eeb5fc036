package scrape

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/messaging-cli/pkg/anthropic"
)

// mockLLM implements anthropic.Client with a function field so each test
// controls the response inline.
type mockLLM struct {
	createFunc func(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (m *mockLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return m.createFunc(ctx, req)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func TestClassifier_Classify(t *testing.T) {
	var gotReq anthropic.MessageRequest
	llm := &mockLLM{
		createFunc: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			gotReq = req
			return textResponse(`{
				"services_products_urls": ["https://acme.com/services/consulting"],
				"markets_industries_urls": ["https://acme.com/industries/healthcare"],
				"case_studies_urls": ["https://acme.com/case-studies/one", "https://acme.com/case-studies/two"]
			}`), nil
		},
	}

	c := NewClassifier(llm, "claude-haiku-4-5-20251001", nil)
	cls, err := c.Classify(context.Background(), "Acme Corp", []string{
		"https://acme.com/services/consulting",
		"https://acme.com/industries/healthcare",
		"https://acme.com/case-studies/one",
		"https://acme.com/case-studies/two",
		"https://acme.com/blog/some-post",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://acme.com/services/consulting"}, cls.ServicesProducts)
	assert.Equal(t, []string{"https://acme.com/industries/healthcare"}, cls.MarketsIndustries)
	assert.Len(t, cls.CaseStudies, 2)

	assert.Equal(t, "claude-haiku-4-5-20251001", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.Contains(t, gotReq.Messages[0].Content, "Acme Corp")
	// Excluded paths never reach the model.
	assert.NotContains(t, gotReq.Messages[0].Content, "/blog/some-post")
	assert.Contains(t, gotReq.Messages[0].Content, "/case-studies/one")
}

func TestClassifier_Classify_FencedJSON(t *testing.T) {
	llm := &mockLLM{
		createFunc: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("```json\n{\"services_products_urls\": [\"https://acme.com/services\"]}\n```"), nil
		},
	}

	c := NewClassifier(llm, "m", nil)
	cls, err := c.Classify(context.Background(), "Acme", []string{"https://acme.com/services"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://acme.com/services"}, cls.ServicesProducts)
}

func TestClassifier_Classify_MalformedJSON(t *testing.T) {
	llm := &mockLLM{
		createFunc: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("sorry, I can't do that"), nil
		},
	}

	c := NewClassifier(llm, "m", nil)
	cls, err := c.Classify(context.Background(), "Acme", []string{"https://acme.com/services"})
	require.NoError(t, err)
	assert.Empty(t, cls.ServicesProducts)
	assert.Empty(t, cls.MarketsIndustries)
	assert.Empty(t, cls.CaseStudies)
}

func TestClassifier_Classify_APIError(t *testing.T) {
	llm := &mockLLM{
		createFunc: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return nil, eris.New("overloaded")
		},
	}

	c := NewClassifier(llm, "m", nil)
	_, err := c.Classify(context.Background(), "Acme", []string{"https://acme.com/services"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify sitemap")
}

func TestClassifier_Classify_AllFiltered(t *testing.T) {
	called := false
	llm := &mockLLM{
		createFunc: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			called = true
			return textResponse("{}"), nil
		},
	}

	c := NewClassifier(llm, "m", nil)
	cls, err := c.Classify(context.Background(), "Acme", []string{
		"https://acme.com/blog/a",
		"https://acme.com/careers/b",
	})
	require.NoError(t, err)
	assert.False(t, called, "no model call when every URL is filtered")
	assert.Empty(t, cls.ServicesProducts)
}

func TestClassifier_Classify_CapsURLList(t *testing.T) {
	var gotReq anthropic.MessageRequest
	llm := &mockLLM{
		createFunc: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			gotReq = req
			return textResponse("{}"), nil
		},
	}

	urls := make([]string, 0, maxClassifyURLs+50)
	for range maxClassifyURLs + 50 {
		urls = append(urls, "https://acme.com/services/page")
	}

	c := NewClassifier(llm, "m", nil)
	_, err := c.Classify(context.Background(), "Acme", urls)
	require.NoError(t, err)

	lines := strings.Count(gotReq.Messages[0].Content, "https://acme.com/services/page")
	assert.Equal(t, maxClassifyURLs, lines)
}

func TestStripFences(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n{}\n```  ", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}
