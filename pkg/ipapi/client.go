// Package ipapi resolves network addresses to coarse human-readable locations.
package ipapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "http://ip-api.com"

	// UnknownLocation is returned whenever no usable location exists. The
	// location is only a disambiguation hint, so lookups never fail hard.
	UnknownLocation = "Unknown Location"
)

// Client resolves an IP address to a "City, Region, Country" string.
type Client interface {
	Locate(ctx context.Context, ip string) string
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

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an ip-api.com client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type lookupResponse struct {
	Status     string `json:"status"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
	Country    string `json:"country"`
}

func (c *httpClient) Locate(ctx context.Context, ip string) string {
	// Private, loopback, and unparseable addresses carry no location signal;
	// short-circuit without a network call.
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return UnknownLocation
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/"+addr.String(), nil)
	if err != nil {
		return UnknownLocation
	}

	resp, err := c.http.Do(req)
	if err != nil {
		zap.L().Debug("ipapi: lookup failed", zap.String("ip", addr.String()), zap.Error(err))
		return UnknownLocation
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UnknownLocation
	}

	var data lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil || data.Status != "success" {
		return UnknownLocation
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{data.City, data.RegionName, data.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return UnknownLocation
	}
	return strings.Join(parts, ", ")
}
