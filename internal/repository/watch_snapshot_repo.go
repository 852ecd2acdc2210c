package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/tvfilter/internal/models"
)

// watchSnapshotRepo implements WatchSnapshotRepository using GORM.
type watchSnapshotRepo struct {
	db *gorm.DB
}

// NewWatchSnapshotRepository creates a new WatchSnapshotRepository.
func NewWatchSnapshotRepository(db *gorm.DB) *watchSnapshotRepo {
	return &watchSnapshotRepo{db: db}
}

// Get retrieves the snapshot for (target, group).
func (r *watchSnapshotRepo) Get(ctx context.Context, target, group string) (*models.WatchSnapshot, error) {
	var snap models.WatchSnapshot
	err := r.db.WithContext(ctx).
		Where(map[string]any{"target": target, "group": group}).
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting watch snapshot: %w", err)
	}
	return &snap, nil
}

// ListByTarget retrieves all snapshots of a target.
func (r *watchSnapshotRepo) ListByTarget(ctx context.Context, target string) ([]*models.WatchSnapshot, error) {
	var snaps []*models.WatchSnapshot
	err := r.db.WithContext(ctx).
		Where(map[string]any{"target": target}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "group"}}).
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("listing watch snapshots: %w", err)
	}
	return snaps, nil
}

// Upsert inserts the snapshot, or updates titles on the (target, group) conflict.
func (r *watchSnapshotRepo) Upsert(ctx context.Context, snap *models.WatchSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.UpdatedAt = time.Now()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target"}, {Name: "group"}},
		DoUpdates: clause.AssignmentColumns([]string{"titles", "title_count", "updated_at"}),
	}).Create(snap).Error
	if err != nil {
		return fmt.Errorf("upserting watch snapshot: %w", err)
	}
	return nil
}

// DeleteByTarget deletes every snapshot of a target and returns the count removed.
func (r *watchSnapshotRepo) DeleteByTarget(ctx context.Context, target string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where(map[string]any{"target": target}).
		Delete(&models.WatchSnapshot{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting watch snapshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}
