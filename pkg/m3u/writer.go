package m3u

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Writer provides streaming M3U playlist writing.
type Writer struct {
	w             io.Writer
	headerWritten bool
	count         int
}

// NewWriter creates a new M3U writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the M3U header.
// This is automatically called by WriteEntry if not already written.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	if _, err := io.WriteString(w.w, "#EXTM3U\n"); err != nil {
		return fmt.Errorf("writing M3U header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteEntry writes a single channel entry to the M3U playlist.
// Extra attributes are written in key order so output is reproducible.
func (w *Writer) WriteEntry(entry *Entry) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}

	var sb strings.Builder
	duration := entry.Duration
	if duration == 0 {
		duration = -1
	}
	fmt.Fprintf(&sb, "#EXTINF:%d", duration)

	writeAttr := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&sb, ` %s="%s"`, key, escapeQuotes(value))
		}
	}
	writeAttr("tvg-id", entry.TvgID)
	writeAttr("tvg-name", entry.TvgName)
	writeAttr("tvg-logo", entry.TvgLogo)
	writeAttr("group-title", entry.GroupTitle)
	if entry.ChannelNumber > 0 {
		fmt.Fprintf(&sb, ` tvg-chno="%d"`, entry.ChannelNumber)
	}

	keys := make([]string, 0, len(entry.Extra))
	for k := range entry.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		writeAttr(k, entry.Extra[k])
	}

	sb.WriteByte(',')
	sb.WriteString(entry.Title)
	sb.WriteByte('\n')
	sb.WriteString(entry.URL)
	sb.WriteByte('\n')

	if _, err := io.WriteString(w.w, sb.String()); err != nil {
		return fmt.Errorf("writing entry %q: %w", entry.Title, err)
	}
	w.count++
	return nil
}

// Count returns the number of entries written.
func (w *Writer) Count() int {
	return w.count
}

// escapeQuotes replaces double quotes in attribute values, which the
// EXTINF attribute syntax cannot carry.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `'`)
}
