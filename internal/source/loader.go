// Package source acquires raw provider records for the catalog inputs.
//
// Playlist inputs are read from a local path or an http(s) URL and may be
// gzip, bzip2, xz or brotli compressed. Xtream inputs are fetched through
// player_api.php, or read from a local directory holding the six JSON
// collections a published xtream target produces.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/avfs/avfs"
	"github.com/avfs/avfs/vfs/osfs"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/config"
	"github.com/jmylchreest/tvfilter/internal/normalize"
	"github.com/jmylchreest/tvfilter/internal/observability"
	"github.com/jmylchreest/tvfilter/pkg/m3u"
	"github.com/jmylchreest/tvfilter/pkg/xtream"
)

// Loader errors.
var (
	ErrSourceTooLarge      = errors.New("source exceeds size limit")
	ErrUnknownCompression  = errors.New("unknown compression")
	ErrMissingCredentials  = errors.New("xtream input requires username and password")
	ErrUnsupportedInputURL = errors.New("unsupported input url")
)

// Loader reads catalog inputs.
type Loader struct {
	fetcher   *Fetcher
	vfs       avfs.VFS
	maxBytes  int64
	userAgent string
	logger    *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS sets the file system local inputs are read from.
func WithFS(vfs avfs.VFS) LoaderOption {
	return func(l *Loader) {
		l.vfs = vfs
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f *Fetcher) LoaderOption {
	return func(l *Loader) {
		l.fetcher = f
	}
}

// NewLoader creates a Loader from the source settings.
func NewLoader(cfg config.SourceConfig, logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		vfs:       osfs.New(),
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
		logger:    logger.With(slog.String("component", "source")),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fetcher == nil {
		l.fetcher = NewFetcher(FetcherConfig{
			Timeout:       cfg.HTTPTimeout,
			RetryAttempts: cfg.RetryAttempts,
			RetryDelay:    cfg.RetryDelay,
			UserAgent:     cfg.UserAgent,
			Logger:        logger,
		})
	}
	return l
}

// Load returns the raw records of in.
func (l *Loader) Load(ctx context.Context, in catalog.Input) ([]normalize.Record, error) {
	var (
		records []normalize.Record
		err     error
	)
	switch in.Type {
	case catalog.InputXtream:
		records, err = l.loadXtream(ctx, in)
	default:
		records, err = l.loadPlaylist(ctx, in)
	}
	if err != nil {
		return nil, fmt.Errorf("loading input %s: %w", in.Name, err)
	}

	l.logger.DebugContext(ctx, "input loaded",
		slog.String("input", in.Name),
		slog.String("type", string(in.Type)),
		slog.Int("records", len(records)),
	)
	return records, nil
}

func (l *Loader) loadPlaylist(ctx context.Context, in catalog.Input) ([]normalize.Record, error) {
	hint, err := compressionHint(in)
	if err != nil {
		return nil, err
	}

	raw, err := l.open(ctx, in.URL)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	rc, err := m3u.NewDecompressReader(raw, hint)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var entries []*m3u.Entry
	parser := &m3u.Parser{
		OnEntry: func(e *m3u.Entry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		},
		OnError: func(line int, err error) {
			l.logger.DebugContext(ctx, "skipping playlist line",
				slog.String("input", in.Name),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
		},
	}
	if err := parser.Parse(l.limit(rc)); err != nil {
		return nil, fmt.Errorf("parsing playlist: %w", err)
	}
	return normalize.FromM3U(entries), nil
}

func (l *Loader) loadXtream(ctx context.Context, in catalog.Input) ([]normalize.Record, error) {
	if !isRemote(in.URL) {
		return l.loadXtreamDir(ctx, in)
	}

	creds := xtream.NewCredentials(in.URL, in.Username, in.Password)
	if parsed, ok := xtream.ParsePlaylistURL(in.URL); ok {
		creds = parsed
		if in.Username != "" {
			creds.Username = in.Username
		}
		if in.Password != "" {
			creds.Password = in.Password
		}
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, ErrMissingCredentials
	}

	client := xtream.NewClient(creds.BaseURL, creds.Username, creds.Password,
		xtream.WithHTTPClient(l.fetcher.HTTPClient()),
		xtream.WithUserAgent(l.userAgent),
	)
	cat, err := client.FetchCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching xtream catalog: %w", err)
	}
	return normalize.FromXtream(cat, creds), nil
}

// loadXtreamDir reads a collection directory. Missing files are treated as
// empty collections. Without a panel base URL the items' direct sources are
// the stream urls.
func (l *Loader) loadXtreamDir(ctx context.Context, in catalog.Input) ([]normalize.Record, error) {
	dir := localPath(in.URL)
	cat := &xtream.Catalog{}

	files := []struct {
		name   string
		target any
	}{
		{xtream.FileLiveCategories, &cat.LiveCategories},
		{xtream.FileVODCategories, &cat.VODCategories},
		{xtream.FileSeriesCategories, &cat.SeriesCategories},
		{xtream.FileLiveStreams, &cat.Live},
		{xtream.FileVODStreams, &cat.VOD},
		{xtream.FileSeries, &cat.Series},
	}
	found := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := l.readJSON(filepath.Join(dir, f.name), f.target)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.name, err)
		}
		if ok {
			found++
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("%w: no xtream collections in %s", fs.ErrNotExist, dir)
	}

	return normalize.FromXtream(cat, xtream.Credentials{}), nil
}

func (l *Loader) readJSON(path string, target any) (bool, error) {
	f, err := l.vfs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if err := json.NewDecoder(l.limit(f)).Decode(target); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Loader) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if isRemote(location) {
		return l.fetcher.Open(ctx, location)
	}
	if strings.Contains(location, "://") && !strings.HasPrefix(location, "file://") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInputURL, observability.RedactURL(location))
	}
	return l.vfs.Open(localPath(location))
}

func (l *Loader) limit(r io.Reader) io.Reader {
	if l.maxBytes <= 0 {
		return r
	}
	return &limitedReader{r: r, n: l.maxBytes}
}

// compressionHint resolves the input's compression setting. A .br suffix
// selects brotli since brotli streams cannot be sniffed.
func compressionHint(in catalog.Input) (m3u.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(in.Compression)) {
	case "", "auto":
		if strings.HasSuffix(strings.ToLower(pathOf(in.URL)), ".br") {
			return m3u.CompressionBrotli, nil
		}
		return m3u.CompressionNone, nil
	case "none":
		return m3u.CompressionNone, nil
	case "gzip", "gz":
		return m3u.CompressionGzip, nil
	case "bzip2", "bz2":
		return m3u.CompressionBzip2, nil
	case "xz":
		return m3u.CompressionXZ, nil
	case "br", "brotli":
		return m3u.CompressionBrotli, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, in.Compression)
	}
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func localPath(location string) string {
	return filepath.Clean(strings.TrimPrefix(location, "file://"))
}

// pathOf drops the query string of a URL.
func pathOf(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		return location[:i]
	}
	return location
}

// limitedReader fails with ErrSourceTooLarge once more than n bytes are read.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, ErrSourceTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}
