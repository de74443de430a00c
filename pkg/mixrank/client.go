// Package mixrank provides a client for the Mixrank person-data API.
package mixrank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/resilience"
)

const defaultBaseURL = "https://api.mixrank.com"

// Client defines the Mixrank operations used by the enrichment pipeline.
type Client interface {
	// PersonMatch looks up a person by name and profile URL and returns the
	// raw attribute bag. An empty bag means the provider had no usable data;
	// that is not an error.
	PersonMatch(ctx context.Context, name, profileURL string) (model.RawProfile, error)
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

// WithMaxAge sets the maxage parameter (seconds) sent on match requests.
func WithMaxAge(secs int) Option {
	return func(c *httpClient) {
		c.maxAgeSecs = secs
	}
}

// WithRateLimit caps outgoing requests per second. Mixrank enforces
// provider-side limits; staying under them here keeps batch runs clean.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

type httpClient struct {
	apiKey     string
	baseURL    string
	maxAgeSecs int
	http       *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a Mixrank API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		maxAgeSecs: 1192000,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			OnRetry:        resilience.RetryLogger("mixrank", "person_match"),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) PersonMatch(ctx context.Context, name, profileURL string) (model.RawProfile, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "mixrank: rate limit wait")
		}
	}

	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	q.Set("social_url", profileURL)
	q.Set("strategy", "strict")
	q.Set("maxage", strconv.Itoa(c.maxAgeSecs))

	reqURL := fmt.Sprintf("%s/v2/json/%s/person/match?%s", c.baseURL, c.apiKey, q.Encode())

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (model.RawProfile, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "mixrank: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "mixrank: send request")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("mixrank: unexpected status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var raw model.RawProfile
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, eris.Wrap(err, "mixrank: decode response")
		}
		return raw, nil
	})
}
