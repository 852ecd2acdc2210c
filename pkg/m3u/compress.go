package m3u

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

// Compression identifies a playlist container format.
type Compression string

// Supported compression formats.
const (
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionBzip2  Compression = "bzip2"
	CompressionXZ     Compression = "xz"
	CompressionBrotli Compression = "br"
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// DetectCompression sniffs the magic bytes at the start of header.
// Brotli streams carry no magic number and are reported as none.
func DetectCompression(header []byte) Compression {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(header, bzip2Magic):
		return CompressionBzip2
	case bytes.HasPrefix(header, xzMagic):
		return CompressionXZ
	default:
		return CompressionNone
	}
}

// NewDecompressReader unwraps r according to hint. An empty hint or
// CompressionNone sniffs the content; brotli must be requested explicitly
// (Content-Encoding: br or a .br suffix).
func NewDecompressReader(r io.Reader, hint Compression) (io.ReadCloser, error) {
	br := bufio.NewReader(r)

	if hint == "" || hint == CompressionNone {
		header, err := br.Peek(len(xzMagic))
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return nil, fmt.Errorf("peeking header: %w", err)
		}
		hint = DetectCompression(header)
	}

	switch hint {
	case CompressionGzip:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gzr, nil
	case CompressionBzip2:
		bzr, err := bzip2.NewReader(br, nil)
		if err != nil {
			return nil, fmt.Errorf("creating bzip2 reader: %w", err)
		}
		return bzr, nil
	case CompressionXZ:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return io.NopCloser(xzr), nil
	case CompressionBrotli:
		return io.NopCloser(brotli.NewReader(br)), nil
	default:
		return io.NopCloser(br), nil
	}
}

// ParseCompressed parses a playlist that may be gzip, bzip2 or xz compressed.
func (p *Parser) ParseCompressed(r io.Reader) error {
	rc, err := NewDecompressReader(r, CompressionNone)
	if err != nil {
		return err
	}
	defer rc.Close()
	return p.Parse(rc)
}
