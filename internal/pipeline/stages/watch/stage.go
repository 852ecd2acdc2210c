// Package watch implements the stage that reports the channels marked by
// watch rules. With a snapshot repository it persists the contents of each
// watched group and reports titles added or removed since the previous run;
// without one it logs the current contents only.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/pipeline/shared"
	"github.com/jmylchreest/tvfilter/internal/repository"
	"github.com/jmylchreest/tvfilter/internal/rules"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "watch"
	// StageName is the human-readable name for this stage.
	StageName = "Watch"
)

// Change is the difference of one watched group between two runs.
type Change struct {
	Group   string
	Added   []string
	Removed []string
	Initial bool
}

// Stage diffs watched groups against their stored snapshots.
type Stage struct {
	shared.BaseStage
	repo repository.WatchSnapshotRepository
}

// New creates a new watch stage. A nil repo gives a log-only stage.
func New(repo repository.WatchSnapshotRepository) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName),
		repo:      repo,
	}
}

// NewConstructor returns a stage constructor for use with the factory. The
// stage is added for targets with a watch rule, and for targets with watch
// persistence enabled when a repository is configured. Snapshots are only
// kept for the latter.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies, target *catalog.Target) core.Stage {
		persist := target.Options.Watch && deps.WatchRepo != nil
		if !persist && !target.Rules.Has(rules.KindWatch) {
			return nil
		}
		var repo repository.WatchSnapshotRepository
		if persist {
			repo = deps.WatchRepo
		}
		s := New(repo)
		s.SetLogger(deps.Logger)
		return s
	}
}

// Persistent reports whether the stage stores snapshots.
func (s *Stage) Persistent() bool {
	return s.repo != nil
}

// Execute groups the marked channels by group, diffs each group's titles
// with its snapshot and stores the new snapshot. Groups watched in an
// earlier run that no longer have any marked channel are stored empty.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()
	target := state.Target.Name

	current := watchedTitles(state.Channels)
	if s.repo == nil {
		s.logWatched(ctx, current)
		result.RecordsProcessed = len(current)
		result.Message = fmt.Sprintf("logged %d watched groups", len(current))
		return result, nil
	}

	stored, err := s.repo.ListByTarget(ctx, target)
	if err != nil {
		return result, fmt.Errorf("loading watch snapshots: %w", err)
	}
	previous := make(map[string]*models.WatchSnapshot, len(stored))
	for _, snap := range stored {
		previous[snap.Group] = snap
		if _, ok := current[snap.Group]; !ok && snap.TitleCount > 0 {
			current[snap.Group] = nil
		}
	}

	groups := make([]string, 0, len(current))
	for g := range current {
		groups = append(groups, g)
	}
	slices.Sort(groups)

	var changes []Change
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		titles := current[group]
		snap := previous[group]
		change, err := diff(group, snap, titles)
		if err != nil {
			return result, err
		}

		if snap == nil {
			snap = &models.WatchSnapshot{Target: target, Group: group}
		}
		if err := snap.SetTitles(titles); err != nil {
			return result, err
		}
		if err := s.repo.Upsert(ctx, snap); err != nil {
			return result, fmt.Errorf("storing watch snapshot for %q: %w", group, err)
		}

		if change.Initial || len(change.Added) > 0 || len(change.Removed) > 0 {
			changes = append(changes, change)
			s.logChange(ctx, change)
		}
	}

	state.SetMetadata(StageID, changes)
	result.RecordsProcessed = len(groups)
	result.RecordsModified = len(changes)
	result.Message = fmt.Sprintf("watched %d groups, %d changed", len(groups), len(changes))
	return result, nil
}

func (s *Stage) logChange(ctx context.Context, c Change) {
	if c.Initial {
		s.Log(ctx, slog.LevelInfo, "watching group",
			slog.String("group", c.Group),
			slog.Int("titles", len(c.Added)),
		)
		return
	}
	s.Log(ctx, slog.LevelInfo, "watched group changed",
		slog.String("group", c.Group),
		slog.Any("added", c.Added),
		slog.Any("removed", c.Removed),
	)
}

func (s *Stage) logWatched(ctx context.Context, current map[string][]string) {
	for _, group := range slices.Sorted(maps.Keys(current)) {
		titles := slices.Clone(current[group])
		slices.Sort(titles)
		s.Log(ctx, slog.LevelInfo, "watched group",
			slog.String("group", group),
			slog.Int("titles", len(titles)),
			slog.Any("channels", slices.Compact(titles)),
		)
	}
}

// watchedTitles maps each group holding a marked channel to the captions
// of its marked channels.
func watchedTitles(channels []*models.Channel) map[string][]string {
	out := make(map[string][]string)
	for _, ch := range channels {
		if len(ch.Markers) == 0 {
			continue
		}
		out[ch.Group] = append(out[ch.Group], ch.Caption())
	}
	return out
}

func diff(group string, snap *models.WatchSnapshot, titles []string) (Change, error) {
	current := slices.Clone(titles)
	slices.Sort(current)
	current = slices.Compact(current)

	if snap == nil {
		return Change{Group: group, Added: current, Initial: true}, nil
	}

	prev, err := snap.TitleSet()
	if err != nil {
		return Change{}, fmt.Errorf("reading snapshot of %q: %w", group, err)
	}

	c := Change{Group: group}
	for _, t := range current {
		if _, found := slices.BinarySearch(prev, t); !found {
			c.Added = append(c.Added, t)
		}
	}
	for _, t := range prev {
		if _, found := slices.BinarySearch(current, t); !found {
			c.Removed = append(c.Removed, t)
		}
	}
	return c, nil
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
