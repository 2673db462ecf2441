package usecase

import (
	"context"
	"errors"
	"log/slog"

	"pixelbooth/internal/modules/generation/dto"
	generationin "pixelbooth/internal/modules/generation/port/in"
	"pixelbooth/internal/modules/generation/service"
	apperrors "pixelbooth/internal/platform/errors"
	"pixelbooth/internal/platform/logging"
)

const (
	CleanupOK    = "ok"
	CleanupError = "error"
)

type Interactor struct {
	svc    *service.GenerationService
	logger *slog.Logger
}

func NewInteractor(svc *service.GenerationService, logger *slog.Logger) generationin.Usecase {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Interactor{svc: svc, logger: logger}
}

func (i *Interactor) Submit(ctx context.Context, input dto.SubmitInput) (dto.SubmitOutput, error) {
	job, err := i.svc.Submit(ctx, service.SubmitRequest{
		SessionID:   input.SessionID,
		Image:       input.Image,
		ContentType: input.ContentType,
		Prompt:      input.Prompt,
		StylePrompt: input.StylePrompt,
	})
	if err != nil {
		return dto.SubmitOutput{}, err
	}
	return dto.SubmitOutput{SessionID: job.SessionID, GenerationID: job.GenerationID, Degraded: job.Degraded}, nil
}

func (i *Interactor) PollStatus(ctx context.Context, sessionID string) (dto.StatusOutput, error) {
	status, err := i.svc.PollStatus(ctx, sessionID)
	if err != nil {
		return dto.StatusOutput{}, err
	}
	artifacts := make([]dto.ArtifactOutput, 0, len(status.Artifacts))
	for _, a := range status.Artifacts {
		artifacts = append(artifacts, dto.ArtifactOutput{ID: a.ID, URL: a.URL, Width: a.Width, Height: a.Height})
	}
	return dto.StatusOutput{
		SessionID: sessionID,
		State:     string(status.State),
		Artifacts: artifacts,
		Degraded:  status.Degraded,
		Reason:    status.Reason,
	}, nil
}

// Cleanup never fails: problems are logged and reported in the status field.
func (i *Interactor) Cleanup(ctx context.Context, sessionID string) dto.CleanupOutput {
	if err := i.svc.Cleanup(ctx, sessionID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			i.logger.Debug("cleanup: no generation job", "session_id", sessionID)
		} else {
			i.logger.Warn("cleanup generation job", "session_id", sessionID, "err", err)
		}
		return dto.CleanupOutput{SessionID: sessionID, Status: CleanupError}
	}
	return dto.CleanupOutput{SessionID: sessionID, Status: CleanupOK}
}
