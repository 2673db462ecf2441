package domain

import "time"

// Event is the closed set of inputs accepted by Transition.
type Event interface {
	Name() string
	isEvent()
}

type Start struct {
	Visitor Visitor
	At      time.Time
}

// ImageCaptured with a nil Image is a retake: the capture is discarded and the
// session stays in the capture phase.
type ImageCaptured struct {
	Image     *Image
	SessionID string
}

type PromptSubmitted struct {
	Prompt       string
	StylePrompt  string
	GenerationID string
	Degraded     bool
}

type ResultsReceived struct {
	Artifacts []Artifact
	Degraded  bool
}

type GenerationFailed struct{ Message string }

type ArtifactSelected struct{ Index int }

type PrintRequested struct{ JobID string }

type PrintCompleted struct{}

type PrintFailed struct{ Message string }

type Reset struct{}

type SetError struct{ Message string }

type ClearError struct{}

// IdleTicked advances the idle counter by one second.
type IdleTicked struct{}

func (Start) Name() string            { return "start" }
func (ImageCaptured) Name() string    { return "image_captured" }
func (PromptSubmitted) Name() string  { return "prompt_submitted" }
func (ResultsReceived) Name() string  { return "results_received" }
func (GenerationFailed) Name() string { return "generation_failed" }
func (ArtifactSelected) Name() string { return "artifact_selected" }
func (PrintRequested) Name() string   { return "print_requested" }
func (PrintCompleted) Name() string   { return "print_completed" }
func (PrintFailed) Name() string      { return "print_failed" }
func (Reset) Name() string            { return "reset" }
func (SetError) Name() string         { return "set_error" }
func (ClearError) Name() string       { return "clear_error" }
func (IdleTicked) Name() string       { return "idle_ticked" }

func (Start) isEvent()            {}
func (ImageCaptured) isEvent()    {}
func (PromptSubmitted) isEvent()  {}
func (ResultsReceived) isEvent()  {}
func (GenerationFailed) isEvent() {}
func (ArtifactSelected) isEvent() {}
func (PrintRequested) isEvent()   {}
func (PrintCompleted) isEvent()   {}
func (PrintFailed) isEvent()      {}
func (Reset) isEvent()            {}
func (SetError) isEvent()         {}
func (ClearError) isEvent()       {}
func (IdleTicked) isEvent()       {}
