// Package publish implements the file publishing pipeline stage.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/pipeline/shared"
	"github.com/jmylchreest/tvfilter/internal/storage"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "publish"
	// StageName is the human-readable name for this stage.
	StageName = "Publish"
)

// Stage moves generated artifacts from the run's temp directory into the
// output directory.
type Stage struct {
	shared.BaseStage
	sandbox *storage.Sandbox
}

// New creates a new publish stage.
func New(sandbox *storage.Sandbox) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName),
		sandbox:   sandbox,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies, _ *catalog.Target) core.Stage {
		s := New(deps.Sandbox)
		s.SetLogger(deps.Logger)
		return s
	}
}

// Execute publishes every generated artifact. Cancellation is only observed
// before the first artifact moves, so a run is never left half published.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := s.sandbox.MkdirAll(state.OutputDir); err != nil {
		return result, fmt.Errorf("creating output directory: %w", err)
	}

	generated := state.ArtifactsAt(core.ProcessingStageGenerated)
	for _, a := range generated {
		dest := filepath.Join(state.OutputDir, a.DestName)

		var err error
		switch a.Mode {
		case core.PublishReplaceDir:
			err = s.replaceDir(ctx, a.Path, dest)
		case core.PublishMergeDir:
			err = s.mergeDir(ctx, a.Path, dest)
		default:
			err = s.publishFile(ctx, a.Path, dest)
		}
		if err != nil {
			return result, fmt.Errorf("publishing %s: %w", a.DestName, err)
		}

		published := core.NewArtifact(a.Type, core.ProcessingStagePublished, StageID).
			WithPath(dest, a.DestName).
			WithMode(a.Mode).
			WithRecordCount(a.RecordCount).
			WithFileSize(a.FileSize)
		result.Artifacts = append(result.Artifacts, published)
	}

	result.RecordsProcessed = len(generated)
	result.Message = fmt.Sprintf("Published %d artifacts to %s", len(generated), state.OutputDir)
	return result, nil
}

// publishFile renames src over dest. When the rename fails, typically
// because temp and output live on different file systems, it falls back to
// copy-then-rename.
func (s *Stage) publishFile(ctx context.Context, src, dest string) error {
	if err := s.sandbox.Rename(src, dest); err == nil {
		s.Log(ctx, slog.LevelDebug, "published file via direct rename",
			slog.String("src", src),
			slog.String("dest", dest))
		return nil
	}

	s.Log(ctx, slog.LevelDebug, "falling back to copy-then-rename",
		slog.String("src", src),
		slog.String("dest", dest))
	return s.sandbox.CopyFile(src, dest)
}

// replaceDir swaps dest for src. The previous tree is kept aside until the
// new one is in place and restored when the swap fails.
func (s *Stage) replaceDir(ctx context.Context, src, dest string) error {
	incoming := sibling(dest, "incoming")
	if err := s.sandbox.Rename(src, incoming); err != nil {
		if err := s.copyTree(src, incoming); err != nil {
			_ = s.sandbox.RemoveAll(incoming)
			return err
		}
	}

	exists, err := s.sandbox.Exists(dest)
	if err != nil {
		_ = s.sandbox.RemoveAll(incoming)
		return err
	}

	var backup string
	if exists {
		backup = sibling(dest, "previous")
		if err := s.sandbox.Rename(dest, backup); err != nil {
			_ = s.sandbox.RemoveAll(incoming)
			return fmt.Errorf("moving previous output aside: %w", err)
		}
	}

	if err := s.sandbox.Rename(incoming, dest); err != nil {
		if backup != "" {
			_ = s.sandbox.Rename(backup, dest)
		}
		_ = s.sandbox.RemoveAll(incoming)
		return fmt.Errorf("swapping output directory: %w", err)
	}

	if backup != "" {
		if err := s.sandbox.RemoveAll(backup); err != nil {
			s.Log(ctx, slog.LevelWarn, "failed to remove previous output",
				slog.String("path", backup),
				slog.String("error", err.Error()))
		}
	}

	s.Log(ctx, slog.LevelDebug, "published directory",
		slog.String("dest", dest),
		slog.Bool("replaced", exists))
	return nil
}

// mergeDir moves every file of src into dest, keeping files of dest the
// run did not produce.
func (s *Stage) mergeDir(ctx context.Context, src, dest string) error {
	files := 0
	err := s.sandbox.Walk(src, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		files++
		return s.publishFile(ctx, path, filepath.Join(dest, rel))
	})
	if err != nil {
		return err
	}

	s.Log(ctx, slog.LevelDebug, "merged directory",
		slog.String("dest", dest),
		slog.Int("files", files))
	return nil
}

func (s *Stage) copyTree(src, dest string) error {
	if err := s.sandbox.MkdirAll(dest); err != nil {
		return err
	}
	return s.sandbox.Walk(src, func(path string, d fs.DirEntry) error {
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return s.sandbox.MkdirAll(target)
		}
		return s.sandbox.CopyFile(path, target)
	})
}

// sibling returns a hidden, unique path next to path.
func sibling(path, tag string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+base+"."+tag+"-"+strings.ToLower(ulid.Make().String()))
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
