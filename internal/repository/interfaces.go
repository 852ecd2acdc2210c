// Package repository defines data access for tvfilter's persisted state.
// All database access goes through these interfaces so callers can be
// tested against in-memory fakes.
package repository

import (
	"context"

	"github.com/jmylchreest/tvfilter/internal/models"
)

// WatchSnapshotRepository persists watched group contents per target.
type WatchSnapshotRepository interface {
	// Get returns the snapshot of one group, or nil when none exists.
	Get(ctx context.Context, target, group string) (*models.WatchSnapshot, error)
	// ListByTarget returns every snapshot of a target ordered by group.
	ListByTarget(ctx context.Context, target string) ([]*models.WatchSnapshot, error)
	// Upsert creates the snapshot or replaces the titles of the existing one.
	Upsert(ctx context.Context, snapshot *models.WatchSnapshot) error
	// DeleteByTarget removes every snapshot of a target.
	DeleteByTarget(ctx context.Context, target string) (int64, error)
}
