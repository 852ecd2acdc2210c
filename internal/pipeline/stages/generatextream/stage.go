// Package generatextream implements the stage that writes a target as the
// six JSON collections of the Xtream catalog API.
package generatextream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/pipeline/shared"
	"github.com/jmylchreest/tvfilter/internal/storage"
	"github.com/jmylchreest/tvfilter/pkg/xtream"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "generate_xtream"
	// StageName is the human-readable name for this stage.
	StageName = "Generate Xtream"
)

// Collections is the in-memory form of the six published files.
type Collections struct {
	LiveCategories   []xtream.Category
	VODCategories    []xtream.Category
	SeriesCategories []xtream.Category
	Live             []xtream.Stream
	VOD              []xtream.VODStream
	Series           []xtream.Series
}

// Stage writes the working set as Xtream collections.
type Stage struct {
	shared.BaseStage
	sandbox *storage.Sandbox
}

// New creates a new Xtream generation stage.
func New(sandbox *storage.Sandbox) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName),
		sandbox:   sandbox,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies, target *catalog.Target) core.Stage {
		if target.Output != catalog.OutputXtream {
			return nil
		}
		s := New(deps.Sandbox)
		s.SetLogger(deps.Logger)
		return s
	}
}

// Execute builds the collections and writes them into a directory named
// after the target filename. The directory replaces the published one.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	cols := Build(state.Channels, state.Target.Options)

	dir := filepath.Join(state.TempDir, state.Target.Filename)
	files := map[string]any{
		xtream.FileLiveCategories:   cols.LiveCategories,
		xtream.FileVODCategories:    cols.VODCategories,
		xtream.FileSeriesCategories: cols.SeriesCategories,
		xtream.FileLiveStreams:      cols.Live,
		xtream.FileVODStreams:       cols.VOD,
		xtream.FileSeries:           cols.Series,
	}

	var size int64
	for _, name := range xtream.CollectionFiles {
		n, err := s.writeJSON(filepath.Join(dir, name), files[name])
		if err != nil {
			return result, err
		}
		size += n
	}

	count := len(cols.Live) + len(cols.VOD) + len(cols.Series)
	state.ChannelCount = count
	result.RecordsProcessed = len(state.Channels)
	result.Message = fmt.Sprintf("Generated Xtream collections with %d items", count)

	s.Log(ctx, slog.LevelInfo, "Xtream generation complete",
		slog.Int("live", len(cols.Live)),
		slog.Int("vod", len(cols.VOD)),
		slog.Int("series", len(cols.Series)),
		slog.Int64("size_bytes", size),
		slog.String("output_path", dir))

	artifact := core.NewArtifact(core.ArtifactTypeXtream, core.ProcessingStageGenerated, StageID).
		WithPath(dir, state.Target.Filename).
		WithMode(core.PublishReplaceDir).
		WithRecordCount(count).
		WithFileSize(size)
	result.Artifacts = append(result.Artifacts, artifact)
	return result, nil
}

func (s *Stage) writeJSON(path string, v any) (int64, error) {
	f, err := s.sandbox.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return 0, fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := buf.Flush(); err != nil {
		return 0, fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	info, err := s.sandbox.Stat(path)
	if err != nil {
		return 0, nil
	}
	return info.Size(), nil
}

// Build derives the collections from channels. Categories follow the order
// in which their group first appears; category and stream ids are derived
// from names and channel ids so they stay the same between runs.
func Build(channels []*models.Channel, opts catalog.TargetOptions) *Collections {
	cols := &Collections{
		LiveCategories:   []xtream.Category{},
		VODCategories:    []xtream.Category{},
		SeriesCategories: []xtream.Category{},
		Live:             []xtream.Stream{},
		VOD:              []xtream.VODStream{},
		Series:           []xtream.Series{},
	}

	categories := map[xtream.Cluster]*categoryIndex{
		xtream.ClusterLive:   newCategoryIndex(),
		xtream.ClusterVideo:  newCategoryIndex(),
		xtream.ClusterSeries: newCategoryIndex(),
	}
	streamIDs := newIDAllocator()

	for _, ch := range channels {
		cluster := clusterOf(ch)
		catID := categories[cluster].id(ch.Group)
		id := streamIDs.id(ch.ID)

		icon := ch.Logo
		if opts.IgnoreLogo {
			icon = ""
		}
		direct := ""
		if !opts.SkipDirectSource {
			direct = ch.DirectSource
			if direct == "" {
				direct = ch.URL
			}
		}
		ext := ch.Attributes["container_extension"]

		switch cluster {
		case xtream.ClusterVideo:
			if ext == "" {
				ext = cluster.DefaultExtension()
			}
			cols.VOD = append(cols.VOD, xtream.VODStream{
				Num:                xtream.FlexInt(len(cols.VOD) + 1),
				Name:               ch.Caption(),
				StreamType:         "movie",
				StreamID:           xtream.FlexInt(id),
				StreamIcon:         icon,
				CategoryID:         xtream.FlexString(catID),
				ContainerExtension: ext,
				DirectSource:       direct,
			})
		case xtream.ClusterSeries:
			cols.Series = append(cols.Series, xtream.Series{
				Num:        xtream.FlexInt(len(cols.Series) + 1),
				Name:       ch.Caption(),
				SeriesID:   xtream.FlexInt(id),
				Cover:      icon,
				Genre:      ch.Attributes["genre"],
				CategoryID: xtream.FlexString(catID),
			})
		default:
			num := int64(ch.ChannelNumber)
			if num <= 0 {
				num = int64(len(cols.Live) + 1)
			}
			cols.Live = append(cols.Live, xtream.Stream{
				Num:                xtream.FlexInt(num),
				Name:               ch.Caption(),
				StreamType:         "live",
				StreamID:           xtream.FlexInt(id),
				StreamIcon:         icon,
				EPGChannelID:       ch.EpgID,
				CategoryID:         xtream.FlexString(catID),
				DirectSource:       direct,
				ContainerExtension: ext,
			})
		}
	}

	cols.LiveCategories = categories[xtream.ClusterLive].list()
	cols.VODCategories = categories[xtream.ClusterVideo].list()
	cols.SeriesCategories = categories[xtream.ClusterSeries].list()
	return cols
}

func clusterOf(ch *models.Channel) xtream.Cluster {
	switch ch.Kind {
	case models.ChannelKindVideo:
		return xtream.ClusterVideo
	case models.ChannelKindSeries, models.ChannelKindSeriesInfo:
		return xtream.ClusterSeries
	default:
		return xtream.ClusterLive
	}
}

type categoryIndex struct {
	ids   map[string]string
	order []xtream.Category
	alloc *idAllocator
}

func newCategoryIndex() *categoryIndex {
	return &categoryIndex{ids: make(map[string]string), alloc: newIDAllocator()}
}

func (c *categoryIndex) id(group string) string {
	if id, ok := c.ids[group]; ok {
		return id
	}
	id := strconv.FormatInt(c.alloc.id(group), 10)
	c.ids[group] = id
	c.order = append(c.order, xtream.Category{CategoryID: xtream.FlexString(id), CategoryName: group})
	return id
}

func (c *categoryIndex) list() []xtream.Category {
	if c.order == nil {
		return []xtream.Category{}
	}
	return c.order
}

// idAllocator hands out unique positive ids. Numeric keys keep their
// value; other keys hash with CRC-32. Collisions move to the next free id.
type idAllocator struct {
	used map[int64]bool
}

func newIDAllocator() *idAllocator {
	return &idAllocator{used: make(map[int64]bool)}
}

func (a *idAllocator) id(key string) int64 {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil || id <= 0 {
		id = int64(crc32.ChecksumIEEE([]byte(key))&0x7fffffff) + 1
	}
	for a.used[id] {
		id++
	}
	a.used[id] = true
	return id
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
