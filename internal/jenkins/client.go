// Package jenkins fetches console text for build runs from a Jenkins server.
package jenkins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newhook/pipereport/internal/logging"
	"github.com/newhook/pipereport/internal/report"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default timeout for console requests.
	DefaultTimeout = 30 * time.Second
	// DefaultRequestsPerSecond is the default request rate limit.
	DefaultRequestsPerSecond = 2.0
)

// ErrUnauthorized is returned when the server rejects the credentials.
var ErrUnauthorized = errors.New("jenkins rejected credentials")

var _ report.LogSource = (*Client)(nil)

// Client retrieves console text over the Jenkins HTTP API.
type Client struct {
	baseURL string
	user    string
	token   string
	timeout time.Duration
	rps     float64

	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithCredentials sets the user and API token used for basic auth.
func WithCredentials(user, token string) Option {
	return func(c *Client) {
		c.user = user
		c.token = token
	}
}

// WithTimeout sets the timeout for each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps requests per second. Burst is 1.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.rps = rps
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is
// overridden by WithTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the Jenkins server at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jenkins url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("jenkins url must be http or https: %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimSuffix(u.String(), "/"),
		timeout: DefaultTimeout,
		rps:     DefaultRequestsPerSecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	c.http.Timeout = c.timeout
	c.limiter = rate.NewLimiter(rate.Limit(c.rps), 1)

	return c, nil
}

// ConsoleURL returns the consoleText URL for ref.
func (c *Client) ConsoleURL(ref report.RunRef) string {
	parts := []string{c.baseURL}
	for _, seg := range strings.Split(ref.Key(), "/") {
		if seg != "" {
			parts = append(parts, url.PathEscape(seg))
		}
	}
	parts = append(parts, "consoleText")
	return strings.Join(parts, "/")
}

// ConsoleText fetches the console text for ref. A 404 means the run has no
// console text and is reported with ok false.
func (c *Client) ConsoleText(ctx context.Context, ref report.RunRef) (string, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", false, err
	}

	consoleURL := c.ConsoleURL(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, consoleURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch %s: %w", consoleURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		logging.Debug("console text not found", "run", ref.Key(), "url", consoleURL)
		return "", false, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", false, fmt.Errorf("%w: HTTP %d for %s", ErrUnauthorized, resp.StatusCode, consoleURL)
	default:
		return "", false, fmt.Errorf("HTTP %d for %s", resp.StatusCode, consoleURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read console text: %w", err)
	}

	logging.Info("fetched console text",
		"run", ref.Key(),
		"bytes", len(body),
		"duration", time.Since(start))
	return string(body), true, nil
}
