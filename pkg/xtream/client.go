package xtream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/tvfilter/internal/version"
)

// DefaultTimeout bounds a single catalog request.
const DefaultTimeout = 2 * time.Minute

const maxErrorBodyReadSize = 1024

// Client downloads catalog collections from an Xtream panel.
type Client struct {
	Credentials

	// HTTPClient is used for requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// NewClient creates a new Xtream API client.
func NewClient(baseURL, username, password string, opts ...ClientOption) *Client {
	c := &Client{
		Credentials: NewCredentials(baseURL, username, password),
		HTTPClient:  &http.Client{Timeout: DefaultTimeout},
		UserAgent:   version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.UserAgent = ua
	}
}

// APIError is returned when the panel answers with a non-200 status.
type APIError struct {
	Action     string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	action := e.Action
	if action == "" {
		action = "login"
	}
	if e.Body == "" {
		return fmt.Sprintf("xtream %s: status %d", action, e.StatusCode)
	}
	return fmt.Sprintf("xtream %s: status %d: %s", action, e.StatusCode, e.Body)
}

// getJSON requests action with params and decodes the body into a T.
func getJSON[T any](ctx context.Context, c *Client, action string, params ...string) (T, error) {
	var out T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ActionURL(action, params...), nil)
	if err != nil {
		return out, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyReadSize))
		return out, &APIError{Action: action, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decoding %s response: %w", action, err)
	}
	return out, nil
}

// GetAuthInfo performs the login call (player_api.php without an action).
func (c *Client) GetAuthInfo(ctx context.Context) (*AuthInfo, error) {
	info, err := getJSON[AuthInfo](ctx, c, "")
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetCategories lists the categories of a cluster.
func (c *Client) GetCategories(ctx context.Context, cluster Cluster) ([]Category, error) {
	cats, err := getJSON[[]Category](ctx, c, CategoriesAction(cluster))
	if err != nil {
		return nil, fmt.Errorf("%s categories: %w", cluster, err)
	}
	return cats, nil
}

// GetLiveCategories is GetCategories for the live cluster.
func (c *Client) GetLiveCategories(ctx context.Context) ([]Category, error) {
	return c.GetCategories(ctx, ClusterLive)
}

// StreamsOptions narrows a stream listing. A nil value lists everything.
type StreamsOptions struct {
	CategoryID string
}

func (o *StreamsOptions) params() []string {
	if o == nil || o.CategoryID == "" {
		return nil
	}
	return []string{paramCategoryID, o.CategoryID}
}

func (c *Client) GetLiveStreams(ctx context.Context, opts *StreamsOptions) ([]Stream, error) {
	return getJSON[[]Stream](ctx, c, ActionGetLiveStreams, opts.params()...)
}

func (c *Client) GetVODStreams(ctx context.Context, opts *StreamsOptions) ([]VODStream, error) {
	return getJSON[[]VODStream](ctx, c, ActionGetVODStreams, opts.params()...)
}

func (c *Client) GetSeries(ctx context.Context, opts *StreamsOptions) ([]Series, error) {
	return getJSON[[]Series](ctx, c, ActionGetSeries, opts.params()...)
}
