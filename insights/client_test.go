package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funnelboard/api/models"
)

func sampleResult() models.AnalyticsResult {
	return models.AggregateResult{
		ResultHeader: models.ResultHeader{
			FunnelID:   "f1",
			FunnelName: "Pin to Save",
			DateRange:  models.DateRange{Start: "2024-01-01", End: "2024-01-31"},
		},
		CohortMetrics: models.CohortMetrics{
			Stages: []models.StageMetrics{
				{StageName: "View Pin", StageOrder: 1, Users: 100, ConversionRate: 100},
				{StageName: "Save Pin", StageOrder: 2, Users: 60, ConversionRate: 60, DropOffRate: 40},
			},
			TotalUsers:            100,
			CompletedUsers:        60,
			OverallConversionRate: 60,
		},
	}
}

func insightsPayload() string {
	return `{
		"summary": "Save stage loses 40% of viewers. Improve save affordance first.",
		"insights": ["Save stage has 40% drop-off, highest in funnel"],
		"recommendations": [{"priority": "High", "title": "Surface save button", "action": "Move save above the fold", "impact": "+5% saves", "effort": "Low"}],
		"guardrails": [{"metric": "pin_view volume", "threshold": "Alert if views drop below 90k/week", "why": "Save gains must not cannibalize views"}]
	}`
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Pin to Save")
		assert.Contains(t, req.Messages[1].Content, "Save Pin: 60 users")

		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: content}})
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestGenerateNotConfigured(t *testing.T) {
	client := NewClient(defaultEndpoint, "", defaultModel)
	_, err := client.Generate(context.Background(), sampleResult(), nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateParsesInsights(t *testing.T) {
	srv := chatServer(t, insightsPayload())
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "gpt-4")
	got, err := client.Generate(context.Background(), sampleResult(), nil)
	require.NoError(t, err)

	assert.Len(t, got.Insights, 1)
	require.Len(t, got.Recommendations, 1)
	assert.Equal(t, "High", got.Recommendations[0].Priority)
	assert.Equal(t, "gpt-4", got.ModelUsed)
	assert.False(t, got.CacheHit)
	assert.False(t, got.GeneratedAt.IsZero())
}

func TestGenerateHandlesMarkdownFences(t *testing.T) {
	srv := chatServer(t, "```json\n"+insightsPayload()+"\n```")
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "gpt-4")
	got, err := client.Generate(context.Background(), sampleResult(), nil)
	require.NoError(t, err)
	assert.Len(t, got.Insights, 1)
}

func TestGenerateCachesBySignature(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Content: insightsPayload()}})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "gpt-4")

	first, err := client.Generate(context.Background(), sampleResult(), map[string][]string{"surface": {"Home"}})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := client.Generate(context.Background(), sampleResult(), map[string][]string{"surface": {"Home"}})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, calls)

	// Different filters miss the cache.
	_, err = client.Generate(context.Background(), sampleResult(), map[string][]string{"surface": {"Search"}})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGenerateCacheDistinguishesResultContent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Content: insightsPayload()}})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "gpt-4")

	segmented := func(includeUnknown bool) models.SegmentedResult {
		r := models.SegmentedResult{
			ResultHeader: models.ResultHeader{
				FunnelID:   "f1",
				FunnelName: "Pin to Save",
				DateRange:  models.DateRange{Start: "2024-01-01", End: "2024-01-31"},
			},
			SegmentBy: "user_intent",
			Segments: map[string]models.CohortMetrics{
				"Planner": {TotalUsers: 100, CompletedUsers: 60, OverallConversionRate: 60},
			},
			Total: models.CohortMetrics{TotalUsers: 100, CompletedUsers: 60, OverallConversionRate: 60},
		}
		if includeUnknown {
			r.Segments["Unknown"] = models.CohortMetrics{TotalUsers: 500, CompletedUsers: 50, OverallConversionRate: 10}
			r.Total = models.CohortMetrics{TotalUsers: 600, CompletedUsers: 110, OverallConversionRate: 18.33}
		}
		return r
	}

	first, err := client.Generate(context.Background(), segmented(false), nil)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// Same funnel, range and segment key, but the Unknown bucket changes the
	// computed result: the cached narrative for the other shape must not be
	// reused.
	second, err := client.Generate(context.Background(), segmented(true), nil)
	require.NoError(t, err)
	assert.False(t, second.CacheHit)
	assert.Equal(t, 2, calls)

	// The exact same result still hits.
	third, err := client.Generate(context.Background(), segmented(true), nil)
	require.NoError(t, err)
	assert.True(t, third.CacheHit)
	assert.Equal(t, 2, calls)
}

func TestGenerateSurfacesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "gpt-4")
	client.maxRetries = 1
	client.retryDelay = 0

	_, err := client.Generate(context.Background(), sampleResult(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
}
