package core

import (
	"time"

	"github.com/jmylchreest/tvfilter/internal/models"
)

// ArtifactType identifies the content of an artifact.
type ArtifactType string

const (
	ArtifactTypeChannels ArtifactType = "channels"
	ArtifactTypeM3U      ArtifactType = "m3u"
	ArtifactTypeXtream   ArtifactType = "xtream"
	ArtifactTypeSTRM     ArtifactType = "strm"
)

// ProcessingStage indicates how far an artifact has progressed.
type ProcessingStage string

const (
	ProcessingStageFiltered    ProcessingStage = "filtered"
	ProcessingStageTransformed ProcessingStage = "transformed"
	ProcessingStageGenerated   ProcessingStage = "generated"
	ProcessingStagePublished   ProcessingStage = "published"
)

// PublishMode tells the publish stage how a generated artifact replaces
// what is already in the output directory.
type PublishMode string

const (
	// PublishFile renames a single file over the destination.
	PublishFile PublishMode = "file"

	// PublishReplaceDir swaps the whole destination directory.
	PublishReplaceDir PublishMode = "replace_dir"

	// PublishMergeDir moves each file into the destination directory and
	// keeps files the run did not produce.
	PublishMergeDir PublishMode = "merge_dir"
)

// Artifact is an output of a stage.
type Artifact struct {
	ID        models.ULID
	Type      ArtifactType
	Stage     ProcessingStage
	CreatedBy string
	CreatedAt time.Time

	// Path is sandbox-relative. For generated artifacts it lies in the run's
	// temp directory; DestName is the name it is published under.
	Path     string
	DestName string
	Mode     PublishMode

	RecordCount int
	FileSize    int64
}

// NewArtifact creates an artifact of the given type and stage.
func NewArtifact(artifactType ArtifactType, stage ProcessingStage, createdBy string) Artifact {
	return Artifact{
		ID:        models.NewULID(),
		Type:      artifactType,
		Stage:     stage,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		Mode:      PublishFile,
	}
}

// WithPath sets the sandbox-relative path and the published name.
func (a Artifact) WithPath(path, destName string) Artifact {
	a.Path = path
	a.DestName = destName
	return a
}

// WithMode sets the publish mode.
func (a Artifact) WithMode(mode PublishMode) Artifact {
	a.Mode = mode
	return a
}

// WithRecordCount sets the record count.
func (a Artifact) WithRecordCount(count int) Artifact {
	a.RecordCount = count
	return a
}

// WithFileSize sets the size in bytes.
func (a Artifact) WithFileSize(size int64) Artifact {
	a.FileSize = size
	return a
}
