// Package generatestrm implements the stage that writes a target as a tree
// of STRM files, one per channel, grouped in a directory per group.
package generatestrm

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/pipeline/shared"
	"github.com/jmylchreest/tvfilter/internal/storage"
	"github.com/jmylchreest/tvfilter/internal/util"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "generate_strm"
	// StageName is the human-readable name for this stage.
	StageName = "Generate STRM"

	strmExt = ".strm"
)

// Stage writes STRM files.
type Stage struct {
	shared.BaseStage
	sandbox *storage.Sandbox
	now     func() time.Time
}

// New creates a new STRM generation stage.
func New(sandbox *storage.Sandbox, now func() time.Time) *Stage {
	if now == nil {
		now = time.Now
	}
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName),
		sandbox:   sandbox,
		now:       now,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies, target *catalog.Target) core.Stage {
		if target.Output != catalog.OutputSTRM {
			return nil
		}
		s := New(deps.Sandbox, deps.Now)
		s.SetLogger(deps.Logger)
		return s
	}
}

// Execute writes <group>/<title>.strm for every channel. With cleanup the
// tree replaces the published one, otherwise files are merged into it.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()
	opts := state.Target.Options
	root := filepath.Join(state.TempDir, state.Target.Filename)
	year := s.now().Year()

	if err := s.sandbox.MkdirAll(root); err != nil {
		return result, err
	}

	written := make(map[string]string)
	var size int64
	for i, ch := range state.Channels {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}
		if ch.URL == "" {
			continue
		}

		rel := EntryPath(ch, opts, year)
		if prev, dup := written[rel]; dup {
			s.Log(ctx, slog.LevelDebug, "duplicate STRM name, keeping last",
				slog.String("path", rel),
				slog.String("previous_id", prev),
				slog.String("id", ch.ID))
		}
		content := shared.StreamURL(ch, opts)
		if err := s.sandbox.WriteFile(filepath.Join(root, rel), []byte(content)); err != nil {
			return result, fmt.Errorf("writing %s: %w", rel, err)
		}
		written[rel] = ch.ID
		size += int64(len(content))
	}

	state.ChannelCount = len(written)
	result.RecordsProcessed = len(state.Channels)
	result.Message = fmt.Sprintf("Generated %d STRM files", len(written))

	mode := core.PublishMergeDir
	if opts.Cleanup {
		mode = core.PublishReplaceDir
	}

	s.Log(ctx, slog.LevelInfo, "STRM generation complete",
		slog.Int("file_count", len(written)),
		slog.String("publish_mode", string(mode)),
		slog.String("output_path", root))

	artifact := core.NewArtifact(core.ArtifactTypeSTRM, core.ProcessingStageGenerated, StageID).
		WithPath(root, state.Target.Filename).
		WithMode(mode).
		WithRecordCount(len(written)).
		WithFileSize(size)
	result.Artifacts = append(result.Artifacts, artifact)
	return result, nil
}

// EntryPath returns the tree-relative path of the STRM file of ch.
func EntryPath(ch *models.Channel, opts catalog.TargetOptions, currentYear int) string {
	group := fileName(ch.Group, opts.UnderscoreWhitespace)
	if group == "" {
		group = "Ungrouped"
	}

	name := fileName(ch.Caption(), false)
	if name == "" {
		name = fileName(ch.ID, false)
	}
	// Kodi renaming works on the spaced name; underscores come last.
	if opts.KodiStyle {
		name = KodiName(name, currentYear)
	}
	if opts.UnderscoreWhitespace {
		name = strings.ReplaceAll(name, " ", "_")
	}
	return filepath.Join(group, name+strmExt)
}

// fileName keeps letters, digits and single spaces.
func fileName(s string, underscoreWhitespace bool) string {
	s = collapse(util.SanitizeFilename(s, false))
	if underscoreWhitespace {
		s = strings.ReplaceAll(s, " ", "_")
	}
	return s
}

// collapse trims s and folds whitespace runs to one space.
func collapse(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
