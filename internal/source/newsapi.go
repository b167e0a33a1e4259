package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wpatrik14/newsaggregator/internal/model"
)

const (
	DefaultNewsAPIBaseURL = "https://newsapi.org/v2"
	DefaultNewsAPITimeout = 15 * time.Second

	defaultHeadlineCountry = "us"
	maxProviderPageSize    = 100
)

// NewsAPIOptions configures the headline provider client.
type NewsAPIOptions struct {
	BaseURL    string
	APIKey     string
	PageSize   int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewsAPI fetches headlines from a newsapi.org-compatible endpoint.
type NewsAPI struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

func NewNewsAPI(opts NewsAPIOptions) (*NewsAPI, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("news API key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultNewsAPIBaseURL
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > maxProviderPageSize {
		pageSize = 20
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultNewsAPITimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &NewsAPI{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		pageSize:   pageSize,
		httpClient: httpClient,
	}, nil
}

func (n *NewsAPI) Name() string { return "newsapi" }

// Fetch queries top-headlines for country/category browsing, or the
// everything endpoint when a search term is present.
func (n *NewsAPI) Fetch(ctx context.Context, q Query) ([]model.Article, error) {
	if n == nil || n.httpClient == nil {
		return nil, fmt.Errorf("news provider is not initialized")
	}

	limit := q.Limit
	if limit <= 0 || limit > n.pageSize {
		limit = n.pageSize
	}

	endpoint := "/top-headlines"
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(limit))

	if search := strings.TrimSpace(q.Search); search != "" {
		endpoint = "/everything"
		params.Set("q", search)
		params.Set("sortBy", "publishedAt")
	} else {
		country := strings.TrimSpace(strings.ToLower(q.Country))
		if country == "" {
			country = defaultHeadlineCountry
		}
		params.Set("country", country)
		if category := strings.TrimSpace(strings.ToLower(q.Category)); category != "" {
			params.Set("category", category)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call news provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("news provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if payload.Status != "" && payload.Status != "ok" {
		return nil, fmt.Errorf("news provider error: %s", payload.Message)
	}

	articles := make([]model.Article, 0, len(payload.Articles))
	for _, item := range payload.Articles {
		article, ok := newArticle(item.Title, item.Description, item.Content,
			item.URL, item.URLToImage, item.Source.Name, item.PublishedAt)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Content     string     `json:"content"`
		URL         string     `json:"url"`
		URLToImage  string     `json:"urlToImage"`
		PublishedAt *time.Time `json:"publishedAt"`
	} `json:"articles"`
}
