package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL       = "https://api.tavily.com"
	maxResponseSizeBytes = 2 << 20
)

var ErrEmptyQuery = errors.New("tavily: query is empty")

type Config struct {
	BaseURL     string        `split_words:"true" default:"https://api.tavily.com"`
	APIKey      string        `split_words:"true"`
	MaxResults  int           `split_words:"true" default:"5"`
	SearchDepth string        `split_words:"true" default:"basic"`
	Timeout     time.Duration `split_words:"true" default:"15s"`
}

// Enabled reports whether a key is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type SearchRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results,omitempty"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type searchResponse struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

type errorResponse struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}

type Client struct {
	baseURL     string
	apiKey      string
	maxResults  int
	searchDepth string
	httpClient  *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid tavily url: %w", err)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("tavily api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		maxResults:  maxResults,
		searchDepth: strings.TrimSpace(cfg.SearchDepth),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Search runs a single search call. Domains narrows results when non-empty.
func (c *Client) Search(ctx context.Context, query string, domains []string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	body, err := json.Marshal(SearchRequest{
		Query:          query,
		MaxResults:     c.maxResults,
		SearchDepth:    c.searchDepth,
		IncludeDomains: domains,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute tavily request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read tavily response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var parsed errorResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Detail.Error != "" {
			return nil, &StatusError{Code: resp.StatusCode, Message: parsed.Detail.Error}
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}
	return parsed.Results, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tavily http status=%d: %s", e.Code, e.Message)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}
