// Package m3u provides streaming M3U playlist parsing and writing.
// It supports standard M3U and extended M3U (M3U8) formats with EXTINF
// metadata and the #EXTGRP group directive.
package m3u

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grafana/regexp"
)

// ErrNoCallback is returned by Parse when OnEntry is nil.
var ErrNoCallback = errors.New("m3u: OnEntry callback is required")

// Entry represents a single channel entry in an M3U playlist.
type Entry struct {
	// Duration is the track duration in seconds (-1 for live streams).
	Duration int

	// TvgID is the EPG channel identifier.
	TvgID string

	// TvgName is the display name from tvg-name attribute.
	TvgName string

	// TvgLogo is the URL to the channel logo.
	TvgLogo string

	// GroupTitle is the group from group-title, or from a preceding #EXTGRP.
	GroupTitle string

	// ChannelNumber is the channel number from tvg-chno attribute.
	ChannelNumber int

	// Title is the display title from EXTINF line.
	Title string

	// URL is the stream URL.
	URL string

	// Line is the line number of the URL line.
	Line int

	// Extra contains any additional attributes not explicitly parsed.
	Extra map[string]string
}

// Name returns tvg-name, falling back to the title.
func (e *Entry) Name() string {
	if e.TvgName != "" {
		return e.TvgName
	}
	return e.Title
}

// Parser provides streaming M3U parsing with callback-based processing.
type Parser struct {
	// OnEntry is called for each parsed entry.
	OnEntry func(entry *Entry) error

	// OnError is called for recoverable parsing errors.
	// If nil, errors are silently ignored.
	OnError func(lineNum int, err error)
}

var (
	// #EXTINF:-1 tvg-id="..." tvg-name="...",Title
	extinfRegex = regexp.MustCompile(`^#EXTINF:\s*(-?\d+)\s*(.*)$`)

	// key="value" or key=value
	attrRegex = regexp.MustCompile(`([a-zA-Z0-9_-]+)=(?:"([^"]*)"|([^\s,]+))`)
)

// Parse parses an M3U playlist from a reader, calling OnEntry for each channel.
// Compressed input must be unwrapped first, see NewDecompressReader.
func (p *Parser) Parse(r io.Reader) error {
	if p.OnEntry == nil {
		return ErrNoCallback
	}

	scanner := bufio.NewScanner(r)
	// some providers emit very long tokenised URLs
	const maxLineSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var current *Entry
	var pendingGroup string
	lineNum := 0
	isExtM3U := false

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		switch {
		case line == "":
			continue

		case strings.HasPrefix(line, "#EXTM3U"):
			isExtM3U = true

		case strings.HasPrefix(line, "#EXTINF:"):
			entry, err := parseExtinf(line)
			if err != nil {
				p.handleError(lineNum, err)
				current = nil
				continue
			}
			current = entry

		case strings.HasPrefix(line, "#EXTGRP:"):
			pendingGroup = strings.TrimSpace(strings.TrimPrefix(line, "#EXTGRP:"))

		case strings.HasPrefix(line, "#"):
			continue

		default:
			entry := current
			if entry == nil {
				if !isExtM3U {
					continue
				}
				entry = &Entry{Duration: -1, Title: extractTitleFromURL(line)}
			}
			entry.URL = line
			entry.Line = lineNum
			if entry.GroupTitle == "" {
				entry.GroupTitle = pendingGroup
			}
			if err := p.OnEntry(entry); err != nil {
				return fmt.Errorf("callback error at line %d: %w", lineNum, err)
			}
			current = nil
			pendingGroup = ""
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning M3U: %w", err)
	}

	return nil
}

// ParseAll parses a playlist and returns all entries.
func ParseAll(r io.Reader) ([]*Entry, error) {
	var entries []*Entry
	p := &Parser{
		OnEntry: func(entry *Entry) error {
			entries = append(entries, entry)
			return nil
		},
	}
	if err := p.Parse(r); err != nil {
		return nil, err
	}
	return entries, nil
}

// ParseString parses a playlist held in memory.
func ParseString(s string) ([]*Entry, error) {
	return ParseAll(strings.NewReader(s))
}

// parseExtinf parses an EXTINF line and extracts metadata.
func parseExtinf(line string) (*Entry, error) {
	matches := extinfRegex.FindStringSubmatch(line)
	if matches == nil {
		return nil, fmt.Errorf("invalid EXTINF format")
	}

	duration, _ := strconv.Atoi(matches[1])
	remainder := matches[2]

	entry := &Entry{
		Duration: duration,
		Extra:    make(map[string]string),
	}

	if idx := findTitleStart(remainder); idx >= 0 {
		entry.Title = strings.TrimSpace(remainder[idx+1:])
		remainder = remainder[:idx]
	}

	for _, match := range attrRegex.FindAllStringSubmatch(remainder, -1) {
		key := strings.ToLower(match[1])
		value := match[2]
		if value == "" {
			value = match[3]
		}

		switch key {
		case "tvg-id":
			entry.TvgID = value
		case "tvg-name":
			entry.TvgName = value
		case "tvg-logo":
			entry.TvgLogo = value
		case "group-title":
			entry.GroupTitle = value
		case "tvg-chno":
			entry.ChannelNumber, _ = strconv.Atoi(value)
		default:
			entry.Extra[key] = value
		}
	}

	return entry, nil
}

// findTitleStart finds the comma that separates attributes from the title,
// skipping commas inside quoted attribute values.
func findTitleStart(s string) int {
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return i
			}
		}
	}
	return -1
}

// extractTitleFromURL derives a title from a bare URL line.
func extractTitleFromURL(url string) string {
	filename := url
	if idx := strings.LastIndex(filename, "/"); idx >= 0 {
		filename = filename[idx+1:]
	}
	if idx := strings.Index(filename, "?"); idx > 0 {
		filename = filename[:idx]
	}
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		filename = filename[:idx]
	}
	if filename == "" {
		return "Unknown"
	}
	return filename
}

func (p *Parser) handleError(lineNum int, err error) {
	if p.OnError != nil {
		p.OnError(lineNum, err)
	}
}
