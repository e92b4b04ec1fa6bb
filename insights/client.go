// Package insights turns computed funnel analytics into narrative insights
// and recommendations via an OpenAI-compatible chat-completions API.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"funnelboard/api/models"
)

// ErrNotConfigured is returned when no API key is set; the handler degrades
// to an empty-insights response instead of failing the request.
var ErrNotConfigured = errors.New("insights API key not configured")

const (
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultModel    = "gpt-4"

	systemPrompt = "You generate ultra-concise analytics insights. Rules: max 4 insights, " +
		"max 3 recommendations, every point has a number, no filler words. Return valid JSON only."
)

// Recommendation is one prioritized, actionable suggestion.
type Recommendation struct {
	Priority string `json:"priority"`
	Title    string `json:"title"`
	Action   string `json:"action"`
	Impact   string `json:"impact"`
	Effort   string `json:"effort"`
}

// Guardrail names a metric to protect while acting on a recommendation.
type Guardrail struct {
	Metric    string `json:"metric"`
	Threshold string `json:"threshold"`
	Why       string `json:"why"`
}

// Experiment is a suggested A/B test derived from the funnel data.
type Experiment struct {
	Hypothesis string `json:"hypothesis"`
	Test       string `json:"test"`
	Metric     string `json:"metric"`
}

// Insights is the structured narrative generated for one analytics result.
type Insights struct {
	Summary         string           `json:"summary"`
	Insights        []string         `json:"insights"`
	Recommendations []Recommendation `json:"recommendations"`
	Guardrails      []Guardrail      `json:"guardrails"`
	Experiment      *Experiment      `json:"experiment,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
	ModelUsed       string           `json:"model_used"`
	CacheHit        bool             `json:"cache_hit"`
}

// Client calls the chat-completions endpoint with retry and a circuit
// breaker, and caches generated insights per funnel/range/filters.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      *resultCache

	endpoint   string
	apiKey     string
	model      string
	maxRetries int
	retryDelay time.Duration
}

// NewClientFromEnv builds a client from INSIGHTS_API_KEY, INSIGHTS_API_URL
// and INSIGHTS_MODEL. A missing key is allowed: Generate then returns
// ErrNotConfigured.
func NewClientFromEnv() *Client {
	endpoint := os.Getenv("INSIGHTS_API_URL")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model := os.Getenv("INSIGHTS_MODEL")
	if model == "" {
		model = defaultModel
	}
	return NewClient(endpoint, os.Getenv("INSIGHTS_API_KEY"), model)
}

func NewClient(endpoint, apiKey, model string) *Client {
	settings := gobreaker.Settings{
		Name:        "insights-llm",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		cache:      newResultCache(24 * time.Hour),
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		maxRetries: 3,
		retryDelay: 100 * time.Millisecond,
	}
}

// Generate produces insights for a computed analytics result. Results are
// cached for 24h keyed by the computed result and filters, since the
// underlying analytics are deterministic over a closed window.
func (c *Client) Generate(ctx context.Context, result models.AnalyticsResult, filters map[string][]string) (*Insights, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	key := cacheKey(result, filters)
	if cached, ok := c.cache.get(key); ok {
		hit := *cached
		hit.CacheHit = true
		return &hit, nil
	}

	prompt := buildPrompt(result)
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	insights := &Insights{}
	if err := json.Unmarshal([]byte(stripCodeFences(content)), insights); err != nil {
		return nil, fmt.Errorf("failed to parse insights response: %w", err)
	}
	insights.GeneratedAt = time.Now().UTC()
	insights.ModelUsed = c.model

	c.cache.put(key, insights)
	return insights, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete calls the chat endpoint through the circuit breaker, retrying
// transient failures with exponential backoff.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryDelay
			if backoff > 5*time.Second {
				backoff = 5 * time.Second
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, reqBody)
		})
		if err == nil {
			var resp chatResponse
			if err := json.Unmarshal(body.([]byte), &resp); err != nil {
				return "", fmt.Errorf("failed to decode chat response: %w", err)
			}
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("chat response contained no choices")
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("insights service unavailable: %w", err)
		}
		lastErr = err
		log.Printf("Insights request attempt %d failed: %v", attempt+1, err)
	}
	return "", fmt.Errorf("insights request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, reqBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("insights endpoint returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// stripCodeFences unwraps a JSON payload the model returned inside a
// markdown code block.
func stripCodeFences(content string) string {
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}
	return strings.TrimSpace(content)
}
