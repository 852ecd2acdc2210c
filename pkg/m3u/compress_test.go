package m3u

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

const samplePlaylist = `#EXTM3U
#EXTINF:-1 tvg-id="ch1",Channel 1
http://example.com/stream.m3u8
`

func compressWith(t *testing.T, c Compression) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error

	switch c {
	case CompressionGzip:
		w = gzip.NewWriter(&buf)
	case CompressionBzip2:
		w, err = bzip2.NewWriter(&buf, nil)
	case CompressionXZ:
		w, err = xz.NewWriter(&buf)
	case CompressionBrotli:
		w = brotli.NewWriter(&buf)
	default:
		return []byte(samplePlaylist)
	}
	if err != nil {
		t.Fatalf("creating %s writer: %v", c, err)
	}
	if _, err := w.Write([]byte(samplePlaylist)); err != nil {
		t.Fatalf("writing %s: %v", c, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing %s: %v", c, err)
	}
	return buf.Bytes()
}

func TestDetectCompression(t *testing.T) {
	for _, c := range []Compression{CompressionGzip, CompressionBzip2, CompressionXZ, CompressionNone} {
		t.Run(string(c), func(t *testing.T) {
			if got := DetectCompression(compressWith(t, c)); got != c {
				t.Errorf("expected %s, got %s", c, got)
			}
		})
	}
}

func TestNewDecompressReader(t *testing.T) {
	tests := []struct {
		compression Compression
		hint        Compression
	}{
		{CompressionNone, ""},
		{CompressionGzip, ""},
		{CompressionBzip2, CompressionNone},
		{CompressionXZ, ""},
		{CompressionBrotli, CompressionBrotli},
	}

	for _, tt := range tests {
		t.Run(string(tt.compression), func(t *testing.T) {
			rc, err := NewDecompressReader(bytes.NewReader(compressWith(t, tt.compression)), tt.hint)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer rc.Close()

			entries, err := ParseAll(rc)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(entries) != 1 || entries[0].TvgID != "ch1" {
				t.Fatalf("unexpected entries %+v", entries)
			}
		})
	}
}

func TestParser_ParseCompressed(t *testing.T) {
	var entries []*Entry
	p := &Parser{OnEntry: func(e *Entry) error {
		entries = append(entries, e)
		return nil
	}}
	if err := p.ParseCompressed(bytes.NewReader(compressWith(t, CompressionXZ))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestNewDecompressReader_ShortInput(t *testing.T) {
	rc, err := NewDecompressReader(bytes.NewReader([]byte("#E")), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "#E" {
		t.Fatalf("unexpected data %q", data)
	}
}
