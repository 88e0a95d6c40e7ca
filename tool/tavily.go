package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// TavilySearch searches the web through the Tavily API.
type TavilySearch struct {
	APIKey      string
	BaseURL     string
	MaxResults  int
	SearchDepth string
	client      *http.Client
}

// TavilyOption configures a TavilySearch.
type TavilyOption func(*TavilySearch)

// WithTavilyBaseURL sets the search endpoint.
func WithTavilyBaseURL(baseURL string) TavilyOption {
	return func(t *TavilySearch) {
		t.BaseURL = baseURL
	}
}

// WithTavilyMaxResults sets the number of results used by Call.
func WithTavilyMaxResults(n int) TavilyOption {
	return func(t *TavilySearch) {
		if n > 0 {
			t.MaxResults = n
		}
	}
}

// WithTavilySearchDepth sets "basic" or "advanced" search.
func WithTavilySearchDepth(depth string) TavilyOption {
	return func(t *TavilySearch) {
		t.SearchDepth = depth
	}
}

// WithTavilyHTTPClient replaces the HTTP client.
func WithTavilyHTTPClient(c *http.Client) TavilyOption {
	return func(t *TavilySearch) {
		t.client = c
	}
}

// NewTavilySearch creates a new TavilySearch.
// If apiKey is empty, it tries to read from TAVILY_API_KEY environment variable.
func NewTavilySearch(apiKey string, opts ...TavilyOption) (*TavilySearch, error) {
	if apiKey == "" {
		apiKey = os.Getenv("TAVILY_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY not set")
	}

	t := &TavilySearch{
		APIKey:      apiKey,
		BaseURL:     "https://api.tavily.com/search",
		MaxResults:  4,
		SearchDepth: "basic",
		client:      defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Name returns the name of the tool.
func (t *TavilySearch) Name() string {
	return "tavily_search_results_json"
}

// Description returns the description of the tool.
func (t *TavilySearch) Description() string {
	return "A search engine optimized for comprehensive, accurate, and trusted results. " +
		"Useful for when you need to answer questions about current events. " +
		"Input should be a search query."
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type tavilyResponse struct {
	Query   string     `json:"query"`
	Answer  string     `json:"answer"`
	Results []Document `json:"results"`
}

// Search returns up to maxResults documents for query.
func (t *TavilySearch) Search(ctx context.Context, query string, maxResults int) ([]Document, error) {
	if maxResults <= 0 {
		maxResults = t.MaxResults
	}
	body, err := json.Marshal(tavilyRequest{
		APIKey:      t.APIKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: t.SearchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily api returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Results) > maxResults {
		result.Results = result.Results[:maxResults]
	}
	return result.Results, nil
}

// Call executes the search and returns the results as JSON.
func (t *TavilySearch) Call(ctx context.Context, input string) (string, error) {
	docs, err := t.Search(ctx, input, t.MaxResults)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
