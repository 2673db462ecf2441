package dto

const (
	StatePending  = "pending"
	StateComplete = "complete"
	StateFailed   = "failed"
)

type SubmitInput struct {
	SessionID   string
	Image       []byte
	ContentType string
	Prompt      string
	StylePrompt string
}

type SubmitOutput struct {
	SessionID    string
	GenerationID string
	Degraded     bool
}

type ArtifactOutput struct {
	ID     string
	URL    string
	Width  int
	Height int
}

// StatusOutput.State is one of pending, complete or failed.
type StatusOutput struct {
	SessionID string
	State     string
	Artifacts []ArtifactOutput
	Degraded  bool
	Reason    string
}

type CleanupOutput struct {
	SessionID string
	Status    string
}
