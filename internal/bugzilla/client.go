package bugzilla

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/webext-qa/intermittents/internal/model"
)

const (
	// DefaultPageSize is the number of bugs requested per search page.
	DefaultPageSize = 500

	// DefaultTimeout bounds a complete FetchBugs call.
	DefaultTimeout = 60 * time.Second

	// maxErrorBody caps how much of a failed response is read.
	maxErrorBody = 64 << 10
)

// Client searches a Bugzilla instance.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
	userAgent  string
	proxyAddr  string
	pageSize   int
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the HTTP client. Its transport is still wrapped
// to add tracker headers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPageSize sets the number of bugs per search page.
// Values below 1 are ignored.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTimeout bounds each FetchBugs call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithProxy routes requests through the SOCKS5 proxy at host:port.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddr = address
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the tracker at baseURL, for example
// "https://bugzilla.mozilla.org".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}

	c := &Client{
		baseURL:   u,
		pageSize:  DefaultPageSize,
		timeout:   DefaultTimeout,
		userAgent: "intermittents",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	var base http.RoundTripper = http.DefaultTransport
	if c.httpClient != nil && c.httpClient.Transport != nil {
		base = c.httpClient.Transport
	}
	if c.proxyAddr != "" {
		t, err := newProxyTransport(c.proxyAddr)
		if err != nil {
			return nil, err
		}
		base = t
	}

	hc := &http.Client{}
	if c.httpClient != nil {
		*hc = *c.httpClient
	}
	hc.Transport = &headerTransport{base: base, apiKey: c.apiKey, userAgent: c.userAgent}
	c.httpClient = hc

	return c, nil
}

// BaseURL returns the tracker base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// searchResponse is the body of GET /rest/bug.
type searchResponse struct {
	Bugs []model.Bug `json:"bugs"`
}

// FetchBugs returns every bug matching f, in tracker order, without
// duplicates. The whole search, including every page, is bounded by the
// client timeout.
func (c *Client) FetchBugs(ctx context.Context, f model.Filter) ([]model.Bug, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var bugs []model.Bug
	seen := make(map[int]bool)
	for offset := 0; ; offset += c.pageSize {
		page, err := c.fetchPage(ctx, f, offset)
		if err != nil {
			return nil, err
		}

		added := 0
		for _, b := range page {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true
			bugs = append(bugs, b)
			added++
		}
		c.logger.Debug("tracker page fetched", "offset", offset, "bugs", len(page), "new", added)

		// A short page is the last one. A page with nothing new means the
		// server ignored the offset.
		if len(page) < c.pageSize || added == 0 {
			break
		}
	}
	return bugs, nil
}

func (c *Client) fetchPage(ctx context.Context, f model.Filter, offset int) ([]model.Bug, error) {
	u := c.baseURL.JoinPath("rest", "bug")
	u.RawQuery = searchQuery(f, c.pageSize, offset).Encode()
	reqURL := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{URL: reqURL, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fe := &FetchError{URL: reqURL, StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Message != "" {
			fe.Code = er.Code
			fe.Message = er.Message
		} else {
			fe.Err = errors.New(http.StatusText(resp.StatusCode))
		}
		return nil, fe
	}

	var sr struct {
		searchResponse
		errorResponse
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &FetchError{URL: reqURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if sr.Error {
		return nil, &FetchError{URL: reqURL, StatusCode: resp.StatusCode, Code: sr.Code, Message: sr.Message}
	}
	return sr.Bugs, nil
}
