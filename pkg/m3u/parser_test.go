package m3u

import (
	"errors"
	"strings"
	"testing"
)

func TestParser_BasicParsing(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1 tvg-id="channel1" tvg-name="Channel One" tvg-logo="http://example.com/logo.png" group-title="News",Channel 1 HD
http://example.com/stream1.m3u8
#EXTINF:-1 tvg-id="channel2" tvg-name="Channel Two" group-title="Sports",Channel 2
http://example.com/stream2.m3u8
`

	entries, err := ParseString(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	e1 := entries[0]
	if e1.TvgID != "channel1" {
		t.Errorf("expected tvg-id 'channel1', got '%s'", e1.TvgID)
	}
	if e1.Name() != "Channel One" {
		t.Errorf("expected name 'Channel One', got '%s'", e1.Name())
	}
	if e1.TvgLogo != "http://example.com/logo.png" {
		t.Errorf("expected tvg-logo, got '%s'", e1.TvgLogo)
	}
	if e1.GroupTitle != "News" {
		t.Errorf("expected group-title 'News', got '%s'", e1.GroupTitle)
	}
	if e1.Title != "Channel 1 HD" {
		t.Errorf("expected title 'Channel 1 HD', got '%s'", e1.Title)
	}
	if e1.URL != "http://example.com/stream1.m3u8" {
		t.Errorf("unexpected URL '%s'", e1.URL)
	}
	if e1.Duration != -1 {
		t.Errorf("expected duration -1, got %d", e1.Duration)
	}
	if e1.Line != 3 {
		t.Errorf("expected line 3, got %d", e1.Line)
	}

	if entries[1].GroupTitle != "Sports" {
		t.Errorf("expected group-title 'Sports', got '%s'", entries[1].GroupTitle)
	}
}

func TestParser_Attributes(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, e *Entry)
	}{
		{
			name: "channel number",
			line: `#EXTINF:-1 tvg-id="ch1" tvg-chno="42",Channel`,
			check: func(t *testing.T, e *Entry) {
				if e.ChannelNumber != 42 {
					t.Errorf("expected chno 42, got %d", e.ChannelNumber)
				}
			},
		},
		{
			name: "extra attributes",
			line: `#EXTINF:-1 tvg-id="ch1" custom-attr="custom-value" another=test,Channel`,
			check: func(t *testing.T, e *Entry) {
				if e.Extra["custom-attr"] != "custom-value" || e.Extra["another"] != "test" {
					t.Errorf("unexpected extras %v", e.Extra)
				}
			},
		},
		{
			name: "positive duration",
			line: `#EXTINF:180 tvg-id="song1",Song Title`,
			check: func(t *testing.T, e *Entry) {
				if e.Duration != 180 {
					t.Errorf("expected duration 180, got %d", e.Duration)
				}
			},
		},
		{
			name: "commas in quoted values and title",
			line: `#EXTINF:-1 tvg-name="Channel, with comma" group-title="News, Sports",Title, The Sequel`,
			check: func(t *testing.T, e *Entry) {
				if e.TvgName != "Channel, with comma" {
					t.Errorf("unexpected tvg-name '%s'", e.TvgName)
				}
				if e.GroupTitle != "News, Sports" {
					t.Errorf("unexpected group-title '%s'", e.GroupTitle)
				}
				if e.Title != "Title, The Sequel" {
					t.Errorf("unexpected title '%s'", e.Title)
				}
			},
		},
		{
			name: "upper case keys",
			line: `#EXTINF:-1 TVG-ID="x" Group-Title="G",T`,
			check: func(t *testing.T, e *Entry) {
				if e.TvgID != "x" || e.GroupTitle != "G" {
					t.Errorf("unexpected entry %+v", e)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := ParseString("#EXTM3U\n" + tt.line + "\nhttp://example.com/s.ts\n")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(entries))
			}
			tt.check(t, entries[0])
		})
	}
}

func TestParser_ExtGrp(t *testing.T) {
	content := "\ufeff#EXTM3U\n#EXTINF:-1,One\n#EXTGRP:Movies\nhttp://example.com/1.mkv\n#EXTINF:-1 group-title=\"News\",Two\n#EXTGRP:Ignored\nhttp://example.com/2.ts\n#EXTINF:-1,Three\nhttp://example.com/3.ts\n"

	entries, err := ParseString(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Movies", "News", ""}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, g := range want {
		if entries[i].GroupTitle != g {
			t.Errorf("entry %d: expected group %q, got %q", i, g, entries[i].GroupTitle)
		}
	}
}

func TestParser_URLWithoutExtinf(t *testing.T) {
	entries, err := ParseString("#EXTM3U\nhttp://example.com/live/channel.m3u8?token=1\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Title != "channel" {
		t.Errorf("expected title 'channel', got '%s'", entries[0].Title)
	}

	// plain M3U without header ignores bare lines
	entries, err = ParseString("http://example.com/a.ts\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestParser_InvalidExtinf(t *testing.T) {
	content := `#EXTM3U
#EXTINF:invalid format
http://example.com/stream1.m3u8
#EXTINF:-1,Valid Channel
http://example.com/stream2.m3u8
`

	var entries []*Entry
	var errLines []int
	p := &Parser{
		OnEntry: func(entry *Entry) error {
			entries = append(entries, entry)
			return nil
		},
		OnError: func(lineNum int, err error) {
			errLines = append(errLines, lineNum)
		},
	}

	if err := p.Parse(strings.NewReader(content)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if len(errLines) != 1 || errLines[0] != 2 {
		t.Fatalf("expected one error on line 2, got %v", errLines)
	}
	if entries[1].Title != "Valid Channel" {
		t.Errorf("expected 'Valid Channel', got '%s'", entries[1].Title)
	}
}

func TestParser_CallbackError(t *testing.T) {
	sentinel := errors.New("stop")
	p := &Parser{OnEntry: func(*Entry) error { return sentinel }}

	err := p.Parse(strings.NewReader("#EXTM3U\n#EXTINF:-1,A\nhttp://a\n"))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestParser_NilOnEntry(t *testing.T) {
	p := &Parser{}
	if err := p.Parse(strings.NewReader("#EXTM3U\n")); !errors.Is(err, ErrNoCallback) {
		t.Fatalf("expected ErrNoCallback, got %v", err)
	}
}

func TestParser_LongLines(t *testing.T) {
	longURL := "http://example.com/" + strings.Repeat("a", 200*1024)
	entries, err := ParseString("#EXTM3U\n#EXTINF:-1,Long\n" + longURL + "\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != longURL {
		t.Fatalf("long URL not preserved")
	}
}

func TestFindTitleStart(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{`tvg-id="a",Title`, 10},
		{`tvg-name="a, b",Title`, 15},
		{`,Title`, 0},
		{`tvg-id="a"`, -1},
	}
	for _, tt := range tests {
		if got := findTitleStart(tt.input); got != tt.want {
			t.Errorf("findTitleStart(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
