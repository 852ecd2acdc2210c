package normalize

import (
	"errors"
	"fmt"
	"maps"

	"github.com/jmylchreest/tvfilter/internal/models"
)

// ErrMalformedRecord is matched by every MalformedRecordError.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError reports a raw record missing a required field.
type MalformedRecordError struct {
	Input    string
	RecordID string
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("malformed record %s from %s: %s", e.RecordID, e.Input, e.Reason)
	}
	return fmt.Sprintf("malformed record from %s: %s", e.Input, e.Reason)
}

// Is matches ErrMalformedRecord.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// RecordStats counts records seen during normalization.
type RecordStats struct {
	Total    int `json:"total"`
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}

// Add accumulates other into s.
func (s *RecordStats) Add(other RecordStats) {
	s.Total += other.Total
	s.Accepted += other.Accepted
	s.Skipped += other.Skipped
}

// Normalize converts one record into a canonical channel.
func Normalize(rec Record, input string) (*models.Channel, error) {
	name := rec.DisplayName()
	if name == "" {
		return nil, &MalformedRecordError{Input: input, RecordID: rec.RecordID(), Reason: "missing name"}
	}

	kind := rec.Kind()
	locator := rec.StreamLocator()
	if locator == "" && kind != models.ChannelKindSeriesInfo {
		return nil, &MalformedRecordError{Input: input, RecordID: rec.RecordID(), Reason: "missing stream locator"}
	}

	id := rec.RecordID()
	if id == "" {
		return nil, &MalformedRecordError{Input: input, Reason: "missing identity"}
	}

	ch := &models.Channel{
		ID:    id,
		Name:  name,
		Title: name,
		Group: rec.GroupName(),
		URL:   locator,
		Kind:  kind,
		Input: input,
	}

	if d, ok := rec.(Details); ok {
		if t := d.Title(); t != "" {
			ch.Title = t
		}
		ch.Logo = d.Logo()
		ch.EpgID = d.EpgID()
		ch.ChannelNumber = d.ChannelNumber()
		ch.CategoryID = d.CategoryID()
		ch.DirectSource = d.DirectSource()
	}

	if attrs := rec.Attributes(); len(attrs) > 0 {
		ch.Attributes = maps.Clone(attrs)
	}

	return ch, nil
}

// NormalizeAll converts records, skipping malformed ones. onSkip, when not
// nil, is called for each skipped record.
func NormalizeAll(records []Record, input string, onSkip func(Record, error)) ([]*models.Channel, RecordStats) {
	stats := RecordStats{Total: len(records)}
	channels := make([]*models.Channel, 0, len(records))

	for _, rec := range records {
		ch, err := Normalize(rec, input)
		if err != nil {
			stats.Skipped++
			if onSkip != nil {
				onSkip(rec, err)
			}
			continue
		}
		channels = append(channels, ch)
	}

	stats.Accepted = len(channels)
	return channels, stats
}
