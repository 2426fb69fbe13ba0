// Package remote implements the HTTP lookup used by remote field validation.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docket/internal/validate"
	"github.com/mesh-intelligence/docket/pkg/types"
)

// DefaultBaseURL prefixes lookup URLs that are not absolute.
const DefaultBaseURL = "http://127.0.0.1:8080"

// maxBody caps the size of a lookup response.
const maxBody = 8 << 20

// Client fetches lookup record sets over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a Client resolving relative URLs against baseURL, or
// DefaultBaseURL when baseURL is empty.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch issues GET raw with the given headers and query parameters and
// decodes the response as a JSON array of objects. Any failure wraps
// types.ErrRemoteLookupFailed.
func (c *Client) Fetch(ctx context.Context, raw string, headers, query map[string]string) ([]map[string]any, error) {
	target, err := c.resolve(raw, query)
	if err != nil {
		return nil, err
	}
	log := c.log.WithField("url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", types.ErrRemoteLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRemoteLookupFailed, err)
	}
	defer resp.Body.Close()
	log.WithFields(logrus.Fields{"status": resp.StatusCode, "elapsed": time.Since(start)}).Debug("remote lookup")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("%w: unexpected status %d", types.ErrRemoteLookupFailed, resp.StatusCode)
	}

	var records []map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", types.ErrRemoteLookupFailed, err)
	}
	return records, nil
}

func (c *Client) resolve(raw string, query map[string]string) (string, error) {
	u, err := url.Parse(SanitizeURL(c.baseURL, raw))
	if err != nil {
		return "", fmt.Errorf("%w: parsing url: %v", types.ErrRemoteLookupFailed, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// SanitizeURL strips surrounding whitespace and one matching pair of quotes
// from raw, and prefixes base when raw is not an http(s) URL.
func SanitizeURL(base, raw string) string {
	s := validate.StripQuotes(strings.TrimSpace(raw))
	if strings.HasPrefix(s, "http") {
		return s
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return strings.TrimRight(base, "/") + s
}
