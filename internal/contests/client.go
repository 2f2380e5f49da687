// Package contests queries the remote contest service for upcoming and
// date-ranged contest listings.
package contests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appLog "contestcal/internal/log"
	"contestcal/internal/model"
)

// ErrUpstream marks failures reported by, or caused by the content of, the
// contest service.
var ErrUpstream = errors.New("contests: upstream error")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("contests: upstream returned %d", e.StatusCode)
	}
	return fmt.Sprintf("contests: upstream returned %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

// dateLayout is the query format for calendar ranges.
const dateLayout = "2006-01-02"

// Client talks to the contest service. Responses are revalidated with
// ETag / Last-Modified against Cache. A failed request is always reported;
// the cache only ever stands in for a 304.
type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithCache sets the conditional-request cache.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithRateLimit throttles outbound requests to rps per second. rps <= 0
// disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a client for the service rooted at baseURL, e.g.
// "http://localhost:5000/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache: NopCache{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upcoming fetches the next limit contests for the given platforms.
func (c *Client) Upcoming(ctx context.Context, limit int, platforms []string) ([]model.Contest, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	setPlatforms(q, platforms)
	return c.get(ctx, "/contests/upcoming", q)
}

// Ranged fetches contests starting within [from, to] (calendar dates) for the
// given platforms.
func (c *Client) Ranged(ctx context.Context, from, to time.Time, platforms []string) ([]model.Contest, error) {
	q := url.Values{}
	q.Set("from", from.Format(dateLayout))
	q.Set("to", to.Format(dateLayout))
	setPlatforms(q, platforms)
	return c.get(ctx, "/contests/calendar", q)
}

func setPlatforms(q url.Values, platforms []string) {
	if len(platforms) == 0 {
		return
	}
	up := make([]string, 0, len(platforms))
	for _, p := range platforms {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			up = append(up, p)
		}
	}
	if len(up) > 0 {
		q.Set("platforms", strings.Join(up, ","))
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]model.Contest, error) {
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}

	body, err := c.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	return DecodeContests(body)
}

// fetch performs a conditional GET and returns the current body.
func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	cached, hasCached, err := c.cache.Get(ctx, u)
	if err != nil {
		appLog.Error("contest cache read failed", err, "url", redactURL(u))
		hasCached = false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	// Conditional headers from cache metadata.
	if hasCached {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	appLog.Debug("contest fetch start", "url", redactURL(u))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contests: request %s: %w", redactURL(u), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if !hasCached || len(cached.Body) == 0 {
			return nil, fmt.Errorf("%w: 304 Not Modified but no cached body available", ErrUpstream)
		}
		appLog.Debug("contest fetch not modified; using cache", "url", redactURL(u))
		return cached.Body, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("contests: read body: %w", err)
		}

		etag, lastMod := resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")
		if etag != "" || lastMod != "" {
			entry := Entry{ETag: etag, LastModified: lastMod, Body: body, UpdatedAt: time.Now().UTC()}
			if err := c.cache.Put(ctx, u, entry); err != nil {
				// Log but still return the freshly fetched body.
				appLog.Error("contest cache save failed", err, "url", redactURL(u))
			}
		}

		appLog.Debug("contest fetch success", "url", redactURL(u), "status", resp.StatusCode, "bytes", len(body))
		return body, nil

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
}

// errorMessage extracts the envelope message from an error body, falling
// back to the trimmed text.
func errorMessage(body []byte) string {
	if env, ok := parseEnvelope(body); ok && env.Message != "" {
		return env.Message
	}
	return strings.TrimSpace(string(body))
}

// redactURL keeps scheme, host and path; query strings may carry tokens.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "contests://...(redacted)"
	}
	out := parsed.Scheme + "://" + parsed.Host + parsed.Path
	if parsed.RawQuery != "" {
		out += "?...(redacted)"
	}
	return out
}
