package domain

import "time"

// ArchivedSession is the record kept after a session is torn down.
type ArchivedSession struct {
	SessionID    string
	Visitor      Visitor
	StartedAt    time.Time
	EndedAt      time.Time
	FinalPhase   Phase
	Prompt       string
	StylePrompt  string
	GenerationID string
	Degraded     bool
	Artifacts    []Artifact
	ImageCount   int
	Selected     int
	PrintJobID   string
	NotePath     string
}

// Archive captures s at teardown. Sessions that never captured an image have
// nothing worth keeping and report false.
func Archive(s Session, endedAt time.Time) (ArchivedSession, bool) {
	if s.SessionID == "" {
		return ArchivedSession{}, false
	}
	return ArchivedSession{
		SessionID:    s.SessionID,
		Visitor:      s.Visitor,
		StartedAt:    s.StartedAt,
		EndedAt:      endedAt,
		FinalPhase:   s.Phase,
		Prompt:       s.Prompt,
		StylePrompt:  s.StylePrompt,
		GenerationID: s.GenerationID,
		Degraded:     s.Degraded,
		Artifacts:    append([]Artifact(nil), s.Artifacts...),
		ImageCount:   len(s.Artifacts),
		Selected:     s.SelectedIndex,
		PrintJobID:   s.PrintJobID,
	}, true
}
