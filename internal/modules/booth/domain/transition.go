package domain

import "strings"

const noImagesMessage = "no images were generated"

// Transition applies ev to s and returns the resulting session. Events that
// are not valid in the current phase return s unchanged. Every applied event
// except IdleTicked resets the idle counter.
func Transition(s Session, ev Event) Session {
	next, _ := Step(s, ev)
	return next
}

// Step is Transition that also reports whether ev was accepted.
func Step(s Session, ev Event) (Session, bool) {
	next, ok := apply(s, ev)
	if !ok {
		return s, false
	}
	if _, tick := ev.(IdleTicked); !tick {
		next.IdleSeconds = 0
	}
	return next, true
}

func apply(s Session, ev Event) (Session, bool) {
	switch e := ev.(type) {
	case Start:
		if s.Phase != PhaseWelcome {
			return s, false
		}
		next := NewSession()
		next.Phase = PhaseCapture
		next.Visitor = e.Visitor
		next.StartedAt = e.At
		return next, true

	case ImageCaptured:
		if s.Phase != PhaseCapture {
			return s, false
		}
		if e.Image == nil {
			s.CapturedImage = nil
			s.Error = ""
			return s, true
		}
		img := *e.Image
		s.CapturedImage = &img
		s.SessionID = e.SessionID
		s.Phase = PhasePromptEntry
		s.Error = ""
		return s, true

	case PromptSubmitted:
		if s.Phase != PhasePromptEntry || strings.TrimSpace(e.Prompt) == "" || e.GenerationID == "" {
			return s, false
		}
		s.Prompt = e.Prompt
		s.StylePrompt = e.StylePrompt
		s.GenerationID = e.GenerationID
		s.Degraded = e.Degraded
		s.Artifacts = nil
		s.SelectedIndex = NoSelection
		s.Phase = PhaseGenerating
		s.Error = ""
		return s, true

	case ResultsReceived:
		if s.Phase != PhaseGenerating {
			return s, false
		}
		if len(e.Artifacts) == 0 {
			return apply(s, GenerationFailed{Message: noImagesMessage})
		}
		s.Artifacts = append([]Artifact(nil), e.Artifacts...)
		s.SelectedIndex = NoSelection
		s.Degraded = s.Degraded || e.Degraded
		s.Phase = PhaseResults
		s.Error = ""
		return s, true

	case GenerationFailed:
		if s.Phase != PhaseGenerating {
			return s, false
		}
		s.Artifacts = nil
		s.SelectedIndex = NoSelection
		s.GenerationID = ""
		s.Phase = PhasePromptEntry
		s.Error = e.Message
		return s, true

	case ArtifactSelected:
		if s.Phase != PhaseResults || e.Index < 0 || e.Index >= len(s.Artifacts) {
			return s, false
		}
		s.SelectedIndex = e.Index
		s.Error = ""
		return s, true

	case PrintRequested:
		if s.Phase != PhaseResults || e.JobID == "" {
			return s, false
		}
		if _, ok := s.Selection(); !ok {
			return s, false
		}
		s.PrintJobID = e.JobID
		s.Phase = PhasePrinting
		s.Error = ""
		return s, true

	case PrintCompleted:
		if s.Phase != PhasePrinting {
			return s, false
		}
		s.Phase = PhaseComplete
		s.Error = ""
		return s, true

	case PrintFailed:
		if s.Phase != PhasePrinting {
			return s, false
		}
		s.PrintJobID = ""
		s.Phase = PhaseResults
		s.Error = e.Message
		return s, true

	case Reset:
		return NewSession(), true

	case SetError:
		s.Error = e.Message
		return s, true

	case ClearError:
		s.Error = ""
		return s, true

	case IdleTicked:
		if s.Phase == PhaseWelcome {
			return s, false
		}
		s.IdleSeconds++
		return s, true
	}
	return s, false
}
