package source

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/jmylchreest/tvfilter/internal/observability"
)

// Fetcher defaults.
const (
	DefaultTimeout       = 60 * time.Second
	DefaultRetryDelay    = time.Second
	DefaultRetryMaxDelay = 30 * time.Second

	acceptEncoding = "gzip, deflate, br"
)

// ErrUnsupportedEncoding is returned for an unknown Content-Encoding.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// StatusError is returned for a non-2xx response that was not retried
// into success.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
	UserAgent     string
	Logger        *slog.Logger

	// Transport is the underlying round tripper. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Fetcher downloads provider resources. Transient failures (network errors,
// 429 and 5xx) are retried with exponential backoff, and gzip, deflate or
// brotli Content-Encoding is removed before the body reaches the caller.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a Fetcher, filling unset fields with the defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &retryTransport{
				base:     base,
				attempts: cfg.RetryAttempts,
				delay:    cfg.RetryDelay,
				maxDelay: cfg.RetryMaxDelay,
				logger:   cfg.Logger.With(slog.String("component", "fetcher")),
			},
		},
		userAgent: cfg.UserAgent,
	}
}

// HTTPClient returns the retrying client, for API clients that build their
// own requests.
func (f *Fetcher) HTTPClient() *http.Client {
	return f.client
}

// Open issues a GET for rawURL and returns the decoded body. The caller
// must close it.
func (f *Fetcher) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: observability.RedactURL(rawURL), StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

type retryTransport struct {
	base     http.RoundTripper
	attempts int
	delay    time.Duration
	maxDelay time.Duration
	logger   *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(ctx)
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	delay := t.delay
	var lastErr error
	for attempt := 0; attempt <= t.attempts; attempt++ {
		if attempt > 0 {
			t.logger.DebugContext(ctx, "retrying request",
				slog.String("url", observability.RedactURL(req.URL.String())),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > t.maxDelay {
				delay = t.maxDelay
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if retryableStatus(resp.StatusCode) && attempt < t.attempts {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		return decodeResponse(resp)
	}

	t.logger.WarnContext(ctx, "request failed",
		slog.String("url", observability.RedactURL(req.URL.String())),
		slog.Int("attempts", t.attempts+1),
		slog.String("error", lastErr.Error()),
	)
	return nil, fmt.Errorf("after %d attempts: %w", t.attempts+1, lastErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// decodeResponse strips Content-Encoding from resp, replacing the body with
// a decoding reader.
func decodeResponse(resp *http.Response) (*http.Response, error) {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	var decoded io.Reader

	switch encoding {
	case "", "identity":
		return resp, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		decoded = gz
	case "deflate":
		decoded = flate.NewReader(resp.Body)
	case "br":
		decoded = brotli.NewReader(resp.Body)
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encoding)
	}

	resp.Body = &decodedBody{Reader: decoded, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type decodedBody struct {
	io.Reader
	raw io.ReadCloser
}

func (b *decodedBody) Close() error {
	if c, ok := b.Reader.(io.Closer); ok {
		_ = c.Close()
	}
	return b.raw.Close()
}
