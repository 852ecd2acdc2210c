package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcher(attempts int) *Fetcher {
	return NewFetcher(FetcherConfig{
		Timeout:       5 * time.Second,
		RetryAttempts: attempts,
		RetryDelay:    time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
		UserAgent:     "tvfilter-test",
	})
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestFetcher_Open(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tvfilter-test", r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		_, _ = w.Write([]byte("#EXTM3U\n"))
	}))
	defer server.Close()

	rc, err := testFetcher(0).Open(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", readAll(t, rc))
}

func TestFetcher_ContentEncoding(t *testing.T) {
	payload := "#EXTM3U\n#EXTINF:-1,One\nhttp://a/1\n"

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte(payload))
	require.NoError(t, gw.Close())

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte(payload))
	require.NoError(t, bw.Close())

	tests := []struct {
		encoding string
		body     []byte
	}{
		{"gzip", gz.Bytes()},
		{"br", br.Bytes()},
		{"", []byte(payload)},
	}

	for _, tt := range tests {
		t.Run("encoding="+tt.encoding, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			rc, err := testFetcher(0).Open(context.Background(), server.URL)
			require.NoError(t, err)
			assert.Equal(t, payload, readAll(t, rc))
		})
	}
}

func TestFetcher_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	rc, err := testFetcher(3).Open(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", readAll(t, rc))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_StatusError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testFetcher(3).Open(context.Background(), server.URL+"/get.php?username=u&password=p")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.NotContains(t, statusErr.URL, "password=p")
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
}

func TestFetcher_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testFetcher(2).Open(context.Background(), server.URL)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testFetcher(3).Open(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
