// Package client provides a Go client for the ethbinder badge API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is an ethbinder API client
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		client.userAgent = ua
	}
}

// New creates a new ethbinder client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		userAgent: "ethbinder-client",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Request selects the binding to check
type Request struct {
	Handle string
	Repo   string
	Debug  bool
	// Referer is sent as the Referer header, used when Handle is empty
	Referer string
}

// Badge is a shields.io endpoint badge
type Badge struct {
	SchemaVersion int      `json:"schemaVersion"`
	Label         string   `json:"label"`
	Message       string   `json:"message"`
	LabelColor    string   `json:"labelColor,omitempty"`
	Color         string   `json:"color"`
	NamedLogo     string   `json:"namedLogo,omitempty"`
	Style         string   `json:"style,omitempty"`
	CacheSeconds  int      `json:"cacheSeconds"`
	Logs          []string `json:"logs,omitempty"`
}

// BadgeResponse is a badge along with the status it was served with
type BadgeResponse struct {
	Badge
	// HTTPStatus is the status code of the response
	HTTPStatus int
	// OutcomeStatus is the status of the outcome, which differs from
	// HTTPStatus when the server answers every badge with 200
	OutcomeStatus int
}

// Payload is the signed proof found in an issue
type Payload struct {
	GitHubHandle string `json:"githubHandle"`
	EthAddress   string `json:"ethAddress"`
	Signature    string `json:"signature"`
}

// Result is the raw verification result
type Result struct {
	ID               string   `json:"id"`
	Outcome          string   `json:"outcome"`
	Handle           string   `json:"handle,omitempty"`
	Repo             string   `json:"repo"`
	Reason           string   `json:"reason,omitempty"`
	Payload          *Payload `json:"payload,omitempty"`
	IssueNumber      int      `json:"issueNumber,omitempty"`
	RecoveredAddress string   `json:"recoveredAddress,omitempty"`
	Trace            []string `json:"trace,omitempty"`
}

// Verified reports whether the binding was proven
func (r *Result) Verified() bool {
	return r.Outcome == "verified"
}

// APIError is returned when the server answers with something other than
// a badge or a result
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Body)
}

// GetBadge fetches the badge for req. Failed verifications are not errors:
// they come back as badges with a failure message.
func (c *Client) GetBadge(ctx context.Context, req Request) (*BadgeResponse, error) {
	resp, err := c.get(ctx, "/badge", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var b BadgeResponse
	body, err := decode(resp, &b.Badge)
	if err != nil {
		return nil, err
	}
	// a 4xx/5xx that is not a badge, e.g. a request filter rejection
	if resp.StatusCode >= 400 && (b.SchemaVersion == 0 || b.Message == "") {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	b.HTTPStatus = resp.StatusCode
	b.OutcomeStatus = resp.StatusCode
	if s, err := strconv.Atoi(resp.Header.Get("X-Badge-Status")); err == nil {
		b.OutcomeStatus = s
	}
	return &b, nil
}

// Verify fetches the raw verification result for req.
func (c *Client) Verify(ctx context.Context, req Request) (*Result, error) {
	resp, err := c.get(ctx, "/api/v1/verify", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var r Result
	body, err := decode(resp, &r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 && r.Outcome == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &r, nil
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, req Request) (*http.Response, error) {
	query := url.Values{}
	if req.Handle != "" {
		query.Set("handle", req.Handle)
	}
	if req.Repo != "" {
		query.Set("repo", req.Repo)
	}
	if req.Debug {
		query.Set("debug", "true")
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}

	return c.httpClient.Do(httpReq)
}

// decode reads a JSON body and returns it raw. Badge endpoints use 4xx/5xx
// statuses for failed verifications, so callers decide whether a decoded
// error status is a badge or an APIError.
func decode(resp *http.Response, v any) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, v); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return body, nil
}
