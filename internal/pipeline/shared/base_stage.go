package shared

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
)

// BaseStage provides common functionality for pipeline stages.
// Embed this in stage implementations to get default behaviors.
type BaseStage struct {
	id     string
	name   string
	logger *slog.Logger
}

// NewBaseStage creates a new BaseStage.
func NewBaseStage(id, name string) BaseStage {
	return BaseStage{
		id:   id,
		name: name,
	}
}

// ID returns the stage identifier.
func (b *BaseStage) ID() string {
	return b.id
}

// Name returns the human-readable stage name.
func (b *BaseStage) Name() string {
	return b.name
}

// Cleanup provides a default no-op cleanup implementation.
func (b *BaseStage) Cleanup(ctx context.Context) error {
	return nil
}

// SetLogger attaches a logger tagged with the stage id.
func (b *BaseStage) SetLogger(logger *slog.Logger) {
	if logger == nil {
		b.logger = nil
		return
	}
	b.logger = logger.With(slog.String("stage", b.id))
}

// Logger returns the stage logger, or slog.Default when none is attached.
func (b *BaseStage) Logger() *slog.Logger {
	if b.logger == nil {
		return slog.Default()
	}
	return b.logger
}

// Log writes through the stage logger, if one is attached.
func (b *BaseStage) Log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if b.logger != nil {
		b.logger.Log(ctx, level, msg, attrs...)
	}
}

// NewResult creates a new StageResult.
func NewResult() *core.StageResult {
	return &core.StageResult{
		Artifacts: make([]core.Artifact, 0),
	}
}
