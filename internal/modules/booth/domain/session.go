package domain

import "time"

type Phase string

const (
	PhaseWelcome     Phase = "welcome"
	PhaseCapture     Phase = "capture"
	PhasePromptEntry Phase = "prompt_entry"
	PhaseGenerating  Phase = "generating"
	PhaseResults     Phase = "results"
	PhasePrinting    Phase = "printing"
	PhaseComplete    Phase = "complete"
)

// NoSelection marks a session without a chosen artifact.
const NoSelection = -1

type Visitor struct {
	FullName string
	Email    string
}

type Image struct {
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}

type Artifact struct {
	ID     string
	URL    string
	Width  int
	Height int
}

// Session is the whole kiosk state for one visitor. It is a value: Transition
// returns a new Session and never mutates the one it receives.
type Session struct {
	Phase         Phase
	SessionID     string
	Visitor       Visitor
	StartedAt     time.Time
	CapturedImage *Image
	Prompt        string
	StylePrompt   string
	GenerationID  string
	Degraded      bool
	Artifacts     []Artifact
	SelectedIndex int
	PrintJobID    string
	Error         string
	IdleSeconds   int
}

func NewSession() Session {
	return Session{Phase: PhaseWelcome, SelectedIndex: NoSelection}
}

func (s Session) Selection() (Artifact, bool) {
	if s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Artifacts) {
		return Artifact{}, false
	}
	return s.Artifacts[s.SelectedIndex], true
}

func (s Session) HasImage() bool {
	return s.CapturedImage != nil && len(s.CapturedImage.Data) > 0
}
