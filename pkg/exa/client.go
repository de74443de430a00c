// Package exa provides a client for the Exa web-search API.
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contacts-cli/internal/resilience"
)

const (
	defaultBaseURL    = "https://api.exa.ai"
	defaultNumResults = 10
)

// Client performs searches against the Exa API.
type Client interface {
	Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error)
}

// Result is a single search result snippet.
type Result struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Text       string   `json:"text"`
	Highlights []string `json:"highlights"`
}

// SearchOption configures a search request.
type SearchOption func(*searchRequest)

// WithNumResults sets the number of results to request.
func WithNumResults(n int) SearchOption {
	return func(r *searchRequest) {
		r.NumResults = n
	}
}

// WithIncludeDomains restricts results to the given domains.
func WithIncludeDomains(domains ...string) SearchOption {
	return func(r *searchRequest) {
		r.IncludeDomains = domains
	}
}

// WithType sets the search type ("keyword" or "neural").
func WithType(t string) SearchOption {
	return func(r *searchRequest) {
		r.Type = t
	}
}

type searchRequest struct {
	Query          string   `json:"query"`
	NumResults     int      `json:"numResults"`
	Type           string   `json:"type"`
	IncludeDomains []string `json:"includeDomains,omitempty"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithDefaultNumResults sets the result count used when a search does not
// pass WithNumResults.
func WithDefaultNumResults(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.numResults = n
		}
	}
}

type httpClient struct {
	apiKey     string
	baseURL    string
	numResults int
	http       *http.Client
	retry      resilience.RetryConfig
}

// NewClient creates an Exa API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		numResults: defaultNumResults,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Second,
			OnRetry:        resilience.RetryLogger("exa", "search"),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	sr := searchRequest{
		Query:      query,
		NumResults: c.numResults,
		Type:       "keyword",
	}
	for _, o := range opts {
		o(&sr)
	}

	body, err := json.Marshal(sr)
	if err != nil {
		return nil, eris.Wrap(err, "exa: marshal request")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "exa: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "exa: send request")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "exa: read response")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("exa: unexpected status %d: %s", resp.StatusCode, string(respBody))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var result searchResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, eris.Wrap(err, "exa: unmarshal response")
		}
		return result.Results, nil
	})
}
