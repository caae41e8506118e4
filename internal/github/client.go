// Package github provides the subset of the GitHub REST API used to verify
// identity bindings: user lookup, repository listing and issue listing.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"

	"github.com/pendergraft/ethbinder/internal/observability/metrics"
)

// DefaultBaseURL is the public GitHub REST endpoint
const DefaultBaseURL = "https://api.github.com"

// MaxPerPage is the largest page size GitHub accepts for list endpoints
const MaxPerPage = 100

// Client is a GitHub REST API client
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client

	api    *gh.Client
	urlErr error
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithToken sets the bearer token sent with every request
func WithToken(token string) Option {
	return func(client *Client) {
		client.token = token
	}
}

// WithUserAgent sets the User-Agent header (GitHub rejects requests without one)
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		client.userAgent = ua
	}
}

// WithTimeout bounds each individual API call
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.timeout = d
	}
}

// New creates a new GitHub client
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    baseURL,
		userAgent:  "ethbinder-badge",
		timeout:    5 * time.Second,
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.api, c.urlErr = c.newAPI()
	return c
}

func (c *Client) newAPI() (*gh.Client, error) {
	hc := *c.httpClient
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	hc.Transport = &instrumentedTransport{next: next}

	api := gh.NewClient(&hc)
	if c.token != "" {
		api = api.WithAuthToken(c.token)
	}
	api.UserAgent = c.userAgent

	// go-github resolves paths against BaseURL and requires the trailing slash
	base, err := url.Parse(strings.TrimRight(c.baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid github base url %q: %w", c.baseURL, err)
	}
	api.BaseURL = base
	return api, nil
}

// HasToken reports whether the client was configured with a credential
func (c *Client) HasToken() bool {
	return c.token != ""
}

// User is the subset of a GitHub user record we read
type User struct {
	Login string
	ID    int64
	Type  string
}

// Repository is the subset of a GitHub repository record we read
type Repository struct {
	Name     string
	FullName string
	Fork     bool
}

// Issue is the subset of a GitHub issue record we read
type Issue struct {
	Number      int
	Title       string
	Body        string
	State       string
	User        User
	PullRequest bool
}

// IsPullRequest reports whether the issues endpoint returned a pull request
func (i Issue) IsPullRequest() bool {
	return i.PullRequest
}

// StatusError is returned when GitHub answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github %s: HTTP %d", e.Endpoint, e.StatusCode)
}

// StatusText returns the canonical text for the response status
func (e *StatusError) StatusText() string {
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return strconv.Itoa(e.StatusCode)
}

// GetUser fetches a user by login
func (c *Client) GetUser(ctx context.Context, login string) (*User, error) {
	if c.urlErr != nil {
		return nil, c.urlErr
	}
	// an empty login would fetch the authenticated user instead
	if login == "" {
		return nil, &StatusError{StatusCode: http.StatusNotFound, Endpoint: "users"}
	}

	ctx, cancel := c.callContext(ctx, "users")
	defer cancel()

	user, _, err := c.api.Users.Get(ctx, login)
	if err != nil {
		return nil, wrapError("users", err)
	}
	return toUser(user), nil
}

// ListUserRepos fetches one page of a user's public repositories
func (c *Client) ListUserRepos(ctx context.Context, login string, page, perPage int) ([]Repository, error) {
	if c.urlErr != nil {
		return nil, c.urlErr
	}

	ctx, cancel := c.callContext(ctx, "repos")
	defer cancel()

	opts := &gh.RepositoryListByUserOptions{
		ListOptions: gh.ListOptions{Page: page, PerPage: perPage},
	}
	list, _, err := c.api.Repositories.ListByUser(ctx, login, opts)
	if err != nil {
		return nil, wrapError("repos", err)
	}

	repos := make([]Repository, 0, len(list))
	for _, r := range list {
		repos = append(repos, Repository{
			Name:     r.GetName(),
			FullName: r.GetFullName(),
			Fork:     r.GetFork(),
		})
	}
	return repos, nil
}

// ListIssues fetches the first page (up to MaxPerPage) of issues of a
// repository. state may be "open", "closed", "all" or empty for the GitHub
// default.
func (c *Client) ListIssues(ctx context.Context, owner, repo, state string) ([]Issue, error) {
	if c.urlErr != nil {
		return nil, c.urlErr
	}

	ctx, cancel := c.callContext(ctx, "issues")
	defer cancel()

	opts := &gh.IssueListByRepoOptions{
		State:       state,
		ListOptions: gh.ListOptions{PerPage: MaxPerPage},
	}
	list, _, err := c.api.Issues.ListByRepo(ctx, owner, repo, opts)
	if err != nil {
		return nil, wrapError("issues", err)
	}

	issues := make([]Issue, 0, len(list))
	for _, i := range list {
		issues = append(issues, Issue{
			Number:      i.GetNumber(),
			Title:       i.GetTitle(),
			Body:        i.GetBody(),
			State:       i.GetState(),
			User:        *toUser(i.GetUser()),
			PullRequest: i.IsPullRequest(),
		})
	}
	return issues, nil
}

func toUser(u *gh.User) *User {
	return &User{Login: u.GetLogin(), ID: u.GetID(), Type: u.GetType()}
}

type endpointKey struct{}

func (c *Client) callContext(ctx context.Context, endpoint string) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, endpointKey{}, endpoint)
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// wrapError turns go-github response errors into a StatusError. Transport
// and context errors keep their chain so callers can match them.
func wrapError(endpoint string, err error) error {
	var (
		respErr  *gh.ErrorResponse
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
	)
	switch {
	case errors.As(err, &respErr):
		return newStatusError(endpoint, respErr.Response, respErr.Message)
	case errors.As(err, &rateErr):
		return newStatusError(endpoint, rateErr.Response, rateErr.Message)
	case errors.As(err, &abuseErr):
		return newStatusError(endpoint, abuseErr.Response, abuseErr.Message)
	}
	return fmt.Errorf("github %s: %w", endpoint, err)
}

func newStatusError(endpoint string, resp *http.Response, message string) *StatusError {
	e := &StatusError{Endpoint: endpoint, Message: message}
	if resp != nil {
		e.StatusCode = resp.StatusCode
	}
	return e
}

// instrumentedTransport records every round trip to GitHub, labelled by the
// endpoint stored in the request context.
type instrumentedTransport struct {
	next http.RoundTripper
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	endpoint, _ := req.Context().Value(endpointKey{}).(string)
	if endpoint == "" {
		endpoint = "other"
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		metrics.GitHubRequest(endpoint, "error", time.Since(start))
		return nil, err
	}
	metrics.GitHubRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	return resp, nil
}
