package models

import (
	"encoding/json"
	"fmt"
	"slices"
)

// WatchSnapshot records the channel titles last seen in one watched group of
// one target. Consecutive runs are diffed against it.
type WatchSnapshot struct {
	BaseModel

	// Target is the target name.
	Target string `gorm:"not null;size:255;uniqueIndex:idx_watch_target_group" json:"target"`

	// Group is the watched group name.
	Group string `gorm:"not null;size:512;uniqueIndex:idx_watch_target_group" json:"group"`

	// Titles is the sorted JSON-encoded title set.
	Titles string `gorm:"type:text" json:"titles"`

	// TitleCount is the number of titles in the set.
	TitleCount int `json:"title_count"`
}

// TableName returns the table name for WatchSnapshot.
func (WatchSnapshot) TableName() string {
	return "watch_snapshots"
}

// Validate performs basic validation on the snapshot.
func (w *WatchSnapshot) Validate() error {
	if w.Target == "" {
		return ErrTargetRequired
	}
	return nil
}

// SetTitles stores a deduplicated, sorted title set.
func (w *WatchSnapshot) SetTitles(titles []string) error {
	set := slices.Clone(titles)
	slices.Sort(set)
	set = slices.Compact(set)
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encoding titles: %w", err)
	}
	w.Titles = string(data)
	w.TitleCount = len(set)
	return nil
}

// TitleSet decodes the stored titles.
func (w *WatchSnapshot) TitleSet() ([]string, error) {
	if w.Titles == "" {
		return nil, nil
	}
	var titles []string
	if err := json.Unmarshal([]byte(w.Titles), &titles); err != nil {
		return nil, fmt.Errorf("decoding titles: %w", err)
	}
	return titles, nil
}
