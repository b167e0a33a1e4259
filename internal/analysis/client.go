// Package analysis calls the external metrics enrichment service and
// normalizes its loosely-structured output into closed enumerations and
// bounded scores.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wpatrik14/newsaggregator/internal/model"
)

const (
	DefaultRequestTimeout = 20 * time.Second
	DefaultModel          = "gpt-4o-mini"

	maxContentChars = 6000
)

const systemPrompt = `You are an editorial analyst. Given a news article you return a single JSON object with these fields:
clickbaitScore, biasScore, sentimentScore, readabilityScore, engagementScore (integers 0-100),
targetGeneration (Gen Z|Millennial|Gen X|Boomer|All),
politicalLeaning (Left|Center-Left|Center|Center-Right|Right),
sentimentTone (Positive|Negative|Neutral|Mixed),
readingLevel (Elementary|Middle School|High School|College|Graduate),
emotionalTone (Neutral|Angry|Fearful|Hopeful|Sad|Excited),
summary (2-3 sentences), categories (up to 3 of: sport, economy, politics, technology, health, science, entertainment, world, culture, other).
Respond with the JSON object only.`

// Options configures the enrichment client.
type Options struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

// Result is a validated enrichment response.
type Result struct {
	Metrics    model.Metrics
	Summary    string
	Categories []string
}

func New(opts Options, logger zerolog.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("enrichment service base URL is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("enrichment service API key is required")
	}

	modelName := strings.TrimSpace(opts.Model)
	if modelName == "" {
		modelName = DefaultModel
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      modelName,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze requests editorial metrics for one article. The raw completion is
// free-form text; the first well-formed JSON object is extracted and
// validated. An unextractable response is a hard failure, never fabricated
// metrics.
func (c *Client) Analyze(ctx context.Context, title, content string) (*Result, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("analysis client is not initialized")
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("title is required")
	}

	completion, err := c.complete(ctx, title, content)
	if err != nil {
		return nil, err
	}

	object, err := ExtractJSONObject(completion)
	if err != nil {
		return nil, fmt.Errorf("extract metrics JSON: %w", err)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(object), &raw); err != nil {
		return nil, fmt.Errorf("parse metrics JSON: %w", err)
	}

	return raw.toResult(), nil
}

func (c *Client) complete(ctx context.Context, title, content string) (string, error) {
	body := strings.TrimSpace(content)
	if runes := []rune(body); len(runes) > maxContentChars {
		body = string(runes[:maxContentChars])
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Title: %s\n\nContent: %s", strings.TrimSpace(title), body)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call enrichment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("enrichment service status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
