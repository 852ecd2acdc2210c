// Package generatem3u implements the M3U generation pipeline stage.
package generatem3u

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/pipeline/shared"
	"github.com/jmylchreest/tvfilter/internal/storage"
	"github.com/jmylchreest/tvfilter/pkg/m3u"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "generate_m3u"
	// StageName is the human-readable name for this stage.
	StageName = "Generate M3U"
)

// Stage writes the working set as an M3U playlist into the run's temp
// directory.
type Stage struct {
	shared.BaseStage
	sandbox *storage.Sandbox
}

// New creates a new M3U generation stage.
func New(sandbox *storage.Sandbox) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName),
		sandbox:   sandbox,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies, target *catalog.Target) core.Stage {
		if target.Output != catalog.OutputM3U {
			return nil
		}
		s := New(deps.Sandbox)
		s.SetLogger(deps.Logger)
		return s
	}
}

// Execute generates the playlist. An empty working set still produces a
// playlist holding only the header.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()
	opts := state.Target.Options

	s.Log(ctx, slog.LevelDebug, "starting M3U generation",
		slog.Int("input_channels", len(state.Channels)))

	outputPath := filepath.Join(state.TempDir, state.Target.Filename)
	file, err := s.sandbox.Create(outputPath)
	if err != nil {
		return result, fmt.Errorf("creating M3U file: %w", err)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	writer := m3u.NewWriter(buf)
	if err := writer.WriteHeader(); err != nil {
		return result, err
	}

	var skipped int
	for i, ch := range state.Channels {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}

		if ch.Kind == models.ChannelKindSeriesInfo && !opts.IncludeSeriesInfo {
			skipped++
			continue
		}

		entry := shared.ChannelToM3UEntry(ch, opts)
		if entry.URL == "" {
			state.AddError(fmt.Errorf("channel %q skipped: empty stream URL", ch.Caption()))
			skipped++
			continue
		}
		if err := writer.WriteEntry(entry); err != nil {
			return result, err
		}
	}

	if err := buf.Flush(); err != nil {
		return result, fmt.Errorf("flushing M3U file: %w", err)
	}
	if err := file.Close(); err != nil {
		return result, fmt.Errorf("closing M3U file: %w", err)
	}

	var fileSize int64
	if info, err := s.sandbox.Stat(outputPath); err == nil {
		fileSize = info.Size()
	}

	count := writer.Count()
	state.ChannelCount = count
	result.RecordsProcessed = len(state.Channels)
	result.RecordsModified = skipped
	result.Message = fmt.Sprintf("Generated M3U with %d channels", count)

	s.Log(ctx, slog.LevelInfo, "M3U generation complete",
		slog.Int("channel_count", count),
		slog.Int("skipped_count", skipped),
		slog.Int64("file_size_bytes", fileSize),
		slog.String("output_path", outputPath))

	artifact := core.NewArtifact(core.ArtifactTypeM3U, core.ProcessingStageGenerated, StageID).
		WithPath(outputPath, state.Target.Filename).
		WithRecordCount(count).
		WithFileSize(fileSize)
	result.Artifacts = append(result.Artifacts, artifact)

	return result, nil
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
