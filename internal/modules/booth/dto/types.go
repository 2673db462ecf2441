package dto

import "time"

type StartInput struct {
	FullName string
	Email    string
}

type PromptInput struct {
	Prompt      string
	StylePrompt string
}

type PrintInput struct {
	Copies int
}

type ArtifactOutput struct {
	ID     string
	URL    string
	Width  int
	Height int
}

// SnapshotOutput is what presentation layers render. Version increases with
// every published change.
type SnapshotOutput struct {
	Version       uint64
	Phase         string
	SessionID     string
	VisitorName   string
	VisitorEmail  string
	HasImage      bool
	Prompt        string
	StylePrompt   string
	GenerationID  string
	Degraded      bool
	Artifacts     []ArtifactOutput
	SelectedIndex int
	PrintJobID    string
	PrintDetail   string
	Error         string
	IdleSeconds   int
	Busy          bool
	Progress      float64
	StartedAt     time.Time
}

type ArchivedSessionOutput struct {
	SessionID    string
	VisitorName  string
	VisitorEmail string
	StartedAt    time.Time
	EndedAt      time.Time
	FinalPhase   string
	Prompt       string
	StylePrompt  string
	GenerationID string
	Degraded     bool
	Artifacts    []ArtifactOutput
	ImageCount   int
	Selected     int
	PrintJobID   string
	NotePath     string
}
