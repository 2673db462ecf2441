package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pixelbooth/internal/modules/booth/domain"
	apperrors "pixelbooth/internal/platform/errors"
)

const (
	msgEmptyPrompt   = "please describe how the photo should be transformed"
	msgNoSelection   = "select an image before printing"
	msgInvalidCopies = "copies must be at least 1"
)

func (k *Kiosk) Start(ctx context.Context, visitor domain.Visitor) error {
	applied, err := k.dispatch(ctx, domain.Start{Visitor: visitor, At: k.deps.Clock.Now()}, false, 0)
	if err != nil {
		return err
	}
	if !applied {
		return k.phaseError("start")
	}
	return nil
}

// Capture takes a photo with the capture device and moves the session to
// prompt entry. A device failure is surfaced through the session error slot.
func (k *Kiosk) Capture(ctx context.Context) error {
	s, epoch, sessCtx := k.current()
	if s.Phase != domain.PhaseCapture {
		return k.phaseError("capture")
	}
	if k.deps.Capture == nil {
		return fmt.Errorf("%w: no capture device configured", apperrors.ErrCaptureFailed)
	}
	if _, ok := k.beginBusy(epoch); !ok {
		return fmt.Errorf("%w: capture already in progress", apperrors.ErrInvalidInput)
	}
	defer k.endBusy(epoch)

	callCtx, cancel := k.callContext(ctx, sessCtx, k.opts.CallTimeout)
	img, err := k.deps.Capture.Capture(callCtx)
	cancel()
	if err != nil {
		k.deps.Logger.Warn("capture failed", "err", err)
		k.report(ctx, epoch, "capture failed: "+err.Error())
		return fmt.Errorf("%w: %w", apperrors.ErrCaptureFailed, err)
	}
	if len(img.Data) == 0 {
		k.report(ctx, epoch, "capture failed: empty image")
		return fmt.Errorf("%w: empty image", apperrors.ErrCaptureFailed)
	}
	if img.CapturedAt.IsZero() {
		img.CapturedAt = k.deps.Clock.Now()
	}
	applied, err := k.dispatch(ctx, domain.ImageCaptured{Image: &img, SessionID: k.deps.IDs.New()}, true, epoch)
	if err != nil {
		return err
	}
	if !applied {
		return apperrors.ErrStaleSession
	}
	return nil
}

func (k *Kiosk) Retake(ctx context.Context) error {
	applied, err := k.dispatch(ctx, domain.ImageCaptured{}, false, 0)
	if err != nil {
		return err
	}
	if !applied {
		return k.phaseError("retake")
	}
	return nil
}

// SubmitPrompt runs the generation submission for the captured image. The
// call blocks until the generation service accepted the job; the session then
// moves to Generating and status polling starts.
func (k *Kiosk) SubmitPrompt(ctx context.Context, prompt, stylePrompt string) error {
	s, epoch, sessCtx := k.current()
	if s.Phase != domain.PhasePromptEntry {
		return k.phaseError("submit prompt")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		k.report(ctx, epoch, msgEmptyPrompt)
		return fmt.Errorf("%w: prompt is empty", apperrors.ErrValidation)
	}
	stylePrompt = strings.TrimSpace(stylePrompt)
	if stylePrompt == "" {
		stylePrompt = prompt
	}
	if !s.HasImage() {
		k.report(ctx, epoch, "no photo captured")
		return fmt.Errorf("%w: no captured image", apperrors.ErrValidation)
	}
	if k.deps.Generator == nil {
		return fmt.Errorf("%w: no generator configured", apperrors.ErrGenerationFailed)
	}
	if _, ok := k.beginBusy(epoch); !ok {
		return fmt.Errorf("%w: generation already submitted", apperrors.ErrInvalidInput)
	}
	defer k.endBusy(epoch)

	callCtx, cancel := k.callContext(ctx, sessCtx, 0)
	ticket, err := k.deps.Generator.Submit(callCtx, s.SessionID, *s.CapturedImage, prompt, stylePrompt)
	cancel()
	if err != nil {
		k.deps.Logger.Warn("generation submit failed", "session_id", s.SessionID, "err", err)
		k.report(ctx, epoch, userMessage(err))
		return err
	}
	k.deps.Metrics.GenerationSubmitted(ctx, ticket.Degraded)
	k.deps.Logger.Info("generation submitted", "session_id", s.SessionID, "generation_id", ticket.GenerationID, "degraded", ticket.Degraded)

	applied, err := k.dispatch(ctx, domain.PromptSubmitted{
		Prompt:       prompt,
		StylePrompt:  stylePrompt,
		GenerationID: ticket.GenerationID,
		Degraded:     ticket.Degraded,
	}, true, epoch)
	if err != nil {
		return err
	}
	if !applied {
		return apperrors.ErrStaleSession
	}
	return nil
}

func (k *Kiosk) SelectArtifact(ctx context.Context, index int) error {
	applied, err := k.dispatch(ctx, domain.ArtifactSelected{Index: index}, false, 0)
	if err != nil {
		return err
	}
	if !applied {
		v := k.Snapshot()
		if v.Busy {
			return fmt.Errorf("%w: cannot change the selection while printing", apperrors.ErrInvalidInput)
		}
		s := v.Session
		if s.Phase != domain.PhaseResults {
			return k.phaseError("select")
		}
		return fmt.Errorf("%w: no image at index %d", apperrors.ErrValidation, index)
	}
	return nil
}

// Print sends the selected artifact to the printer. copies of 0 means one.
func (k *Kiosk) Print(ctx context.Context, copies int) error {
	s, epoch, sessCtx := k.current()
	if s.Phase != domain.PhaseResults {
		return k.phaseError("print")
	}
	if _, ok := s.Selection(); !ok {
		k.report(ctx, epoch, msgNoSelection)
		return fmt.Errorf("%w: no image selected", apperrors.ErrValidation)
	}
	if copies == 0 {
		copies = 1
	}
	if copies < 0 {
		k.report(ctx, epoch, msgInvalidCopies)
		return fmt.Errorf("%w: copies %d", apperrors.ErrValidation, copies)
	}
	if k.deps.Printer == nil {
		return fmt.Errorf("%w: no printer configured", apperrors.ErrPrintFailed)
	}
	s, ok := k.beginBusy(epoch)
	if !ok {
		return fmt.Errorf("%w: print already requested", apperrors.ErrInvalidInput)
	}
	defer k.endBusy(epoch)
	if _, ok := s.Selection(); !ok || s.Phase != domain.PhaseResults {
		return k.phaseError("print")
	}

	callCtx, cancel := k.callContext(ctx, sessCtx, k.opts.CallTimeout)
	jobID, err := k.deps.Printer.RequestPrint(callCtx, s.SessionID, s.SelectedIndex, copies, s.Artifacts)
	cancel()
	if err != nil {
		k.deps.Logger.Warn("print request failed", "session_id", s.SessionID, "err", err)
		k.report(ctx, epoch, userMessage(err))
		return err
	}
	k.deps.Metrics.PrintSubmitted(ctx, copies)
	k.deps.Logger.Info("print requested", "session_id", s.SessionID, "print_job_id", jobID, "copies", copies)

	applied, err := k.dispatch(ctx, domain.PrintRequested{JobID: jobID}, true, epoch)
	if err != nil {
		return err
	}
	if !applied {
		return apperrors.ErrStaleSession
	}
	return nil
}

func (k *Kiosk) Reset(ctx context.Context) error {
	_, err := k.dispatch(ctx, domain.Reset{}, false, 0)
	return err
}

func (k *Kiosk) DismissError(ctx context.Context) error {
	_, err := k.dispatch(ctx, domain.ClearError{}, false, 0)
	return err
}

// report puts msg in the session error slot unless the session moved on.
func (k *Kiosk) report(ctx context.Context, epoch uint64, msg string) {
	if _, err := k.dispatch(ctx, domain.SetError{Message: msg}, true, epoch); err != nil {
		k.deps.Logger.Debug("report error", "message", msg, "err", err)
	}
}

func (k *Kiosk) phaseError(action string) error {
	return fmt.Errorf("%w: cannot %s during %s", apperrors.ErrInvalidInput, action, k.Snapshot().Session.Phase)
}

// userMessage keeps the visitor facing text short: the outermost category
// when one is known, otherwise the raw error.
func userMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return err.Error()
	case errors.Is(err, apperrors.ErrGenerationFailed):
		return "image generation failed, please try again"
	case errors.Is(err, apperrors.ErrPrintFailed):
		return "printing failed, please try again"
	case errors.Is(err, context.DeadlineExceeded):
		return "the service took too long to respond"
	default:
		return err.Error()
	}
}
