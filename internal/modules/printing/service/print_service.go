package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pixelbooth/internal/modules/printing/domain"
	printingout "pixelbooth/internal/modules/printing/port/out"
	"pixelbooth/internal/platform/clock"
	apperrors "pixelbooth/internal/platform/errors"
	"pixelbooth/internal/platform/id"
	"pixelbooth/internal/platform/logging"
)

type PrintRequest struct {
	SessionID     string
	ArtifactIndex int
	Copies        int
	Artifacts     []domain.Artifact
}

type PrintService struct {
	clock   clock.Clock
	ids     id.Generator
	spooler printingout.Spooler
	store   printingout.JobStore
	logger  *slog.Logger
}

func NewPrintService(clk clock.Clock, ids id.Generator, spooler printingout.Spooler, store printingout.JobStore, logger *slog.Logger) *PrintService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &PrintService{clock: clk, ids: ids, spooler: spooler, store: store, logger: logger}
}

// RequestPrint submits one ticket for the chosen artifact. It is not retried;
// a spooler failure surfaces as ErrPrintFailed.
func (s *PrintService) RequestPrint(ctx context.Context, req PrintRequest) (domain.Job, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return domain.Job{}, fmt.Errorf("%w: session id is required", apperrors.ErrValidation)
	}
	if req.ArtifactIndex < 0 || req.ArtifactIndex >= len(req.Artifacts) {
		return domain.Job{}, fmt.Errorf("%w: artifact index %d out of range (have %d)", apperrors.ErrValidation, req.ArtifactIndex, len(req.Artifacts))
	}
	if req.Copies == 0 {
		req.Copies = 1
	}
	if req.Copies < 1 {
		return domain.Job{}, fmt.Errorf("%w: copies must be at least 1", apperrors.ErrValidation)
	}

	now := s.clock.Now()
	job := domain.Job{
		ID:            s.ids.New(),
		SessionID:     req.SessionID,
		ArtifactIndex: req.ArtifactIndex,
		ArtifactURL:   req.Artifacts[req.ArtifactIndex].URL,
		Copies:        req.Copies,
		State:         domain.JobQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	spoolerID, err := s.spooler.Submit(ctx, domain.Ticket{
		JobID:         job.ID,
		SessionID:     job.SessionID,
		ArtifactIndex: job.ArtifactIndex,
		ArtifactURL:   job.ArtifactURL,
		Copies:        job.Copies,
	})
	if err != nil {
		return domain.Job{}, fmt.Errorf("%w: submit print job: %w", apperrors.ErrPrintFailed, err)
	}
	job.SpoolerID = spoolerID
	if err := s.store.Save(ctx, job); err != nil {
		return domain.Job{}, fmt.Errorf("save print job: %w", err)
	}
	s.logger.Info("print job queued", "job_id", job.ID, "spooler_id", spoolerID, "session_id", job.SessionID, "copies", job.Copies)
	return job, nil
}

// PollPrintStatus asks the spooler about jobID. Repeated calls are safe; once
// a job reached a terminal state the stored state is returned without asking
// the spooler again.
func (s *PrintService) PollPrintStatus(ctx context.Context, jobID string) (domain.Status, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return domain.Status{}, err
	}
	if job.State.Terminal() {
		return statusOf(job), nil
	}
	remote, err := s.spooler.Status(ctx, job.SpoolerID)
	if err != nil {
		return domain.Status{}, fmt.Errorf("print status %s: %w", jobID, err)
	}
	if remote.State == "" {
		remote.State = job.State
	}
	if remote.State != job.State || remote.Reason != job.Reason {
		job.State = remote.State
		job.Reason = remote.Reason
		if job.State == domain.JobFailed && job.Reason == "" {
			job.Reason = "printer reported a failure"
		}
		job.UpdatedAt = s.clock.Now()
		if err := s.store.Save(ctx, job); err != nil {
			s.logger.Warn("record print state", "job_id", jobID, "err", err)
		}
		s.logger.Debug("print job state changed", "job_id", jobID, "state", job.State)
	}
	return statusOf(job), nil
}

func (s *PrintService) GetJob(ctx context.Context, jobID string) (domain.Job, error) {
	return s.store.Get(ctx, jobID)
}

func statusOf(job domain.Job) domain.Status {
	return domain.Status{JobID: job.ID, State: job.State, Outcome: job.State.Outcome(), Reason: job.Reason}
}
