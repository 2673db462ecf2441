package domain

import (
	"errors"
	"fmt"
	"time"
)

type Stage string

const (
	StageTranslation Stage = "translation"
	StageUpload      Stage = "upload"
	StageStyle       Stage = "style"
	StageFinal       Stage = "final"
)

var (
	ErrTranslation     = errors.New("translation failed")
	ErrUpload          = errors.New("upload failed")
	ErrStyleGeneration = errors.New("style generation failed")
	ErrFinalGeneration = errors.New("final generation failed")
)

// StageError ties a pipeline failure to the step that produced it. It matches
// both the stage sentinel and the underlying cause with errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage.sentinel(), e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Stage.sentinel(), e.Err}
}

func (s Stage) sentinel() error {
	switch s {
	case StageTranslation:
		return ErrTranslation
	case StageUpload:
		return ErrUpload
	case StageStyle:
		return ErrStyleGeneration
	default:
		return ErrFinalGeneration
	}
}

func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

type JobState string

const (
	JobPending  JobState = "pending"
	JobComplete JobState = "complete"
	JobFailed   JobState = "failed"
)

type ReferenceRole string

const (
	RoleCharacter ReferenceRole = "character"
	RoleStyle     ReferenceRole = "style"
)

type ReferenceKind string

const (
	KindUploaded  ReferenceKind = "uploaded"
	KindGenerated ReferenceKind = "generated"
)

type Reference struct {
	ImageID string
	Kind    ReferenceKind
	Role    ReferenceRole
}

type GenerateRequest struct {
	Prompt     string
	ModelID    string
	ImageCount int
	Width      int
	Height     int
	References []Reference
}

type RemoteImage struct {
	ID  string
	URL string
}

type RemoteGeneration struct {
	State  JobState
	Images []RemoteImage
	Reason string
}

type Artifact struct {
	ID     string
	URL    string
	Width  int
	Height int
}

// Job is what the kiosk needs to answer status questions for a session.
type Job struct {
	SessionID        string
	GenerationID     string
	Prompt           string
	StylePrompt      string
	TranslatedPrompt string
	TranslatedStyle  string
	UploadID         string
	StyleImageID     string
	ImageCount       int
	Width            int
	Height           int
	Degraded         bool
	FailureStage     Stage
	CreatedAt        time.Time
}

type Status struct {
	State     JobState
	Artifacts []Artifact
	Degraded  bool
	Reason    string
}

// PlaceholderArtifacts builds stand-in images for a degraded job. The seed
// keeps the URLs stable across polls.
func PlaceholderArtifacts(seed string, n, width, height int) []Artifact {
	out := make([]Artifact, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Artifact{
			ID:     fmt.Sprintf("%s-%d", seed, i),
			URL:    fmt.Sprintf("https://picsum.photos/%d/%d?random=%s-%d", width, height, seed, i),
			Width:  width,
			Height: height,
		})
	}
	return out
}
