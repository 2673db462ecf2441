package usecase

import (
	"context"
	"time"

	"pixelbooth/internal/modules/printing/domain"
	"pixelbooth/internal/modules/printing/dto"
	printingin "pixelbooth/internal/modules/printing/port/in"
	"pixelbooth/internal/modules/printing/service"
)

type Interactor struct {
	svc *service.PrintService
}

func NewInteractor(svc *service.PrintService) printingin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) RequestPrint(ctx context.Context, input dto.PrintInput) (dto.PrintOutput, error) {
	artifacts := make([]domain.Artifact, 0, len(input.Artifacts))
	for _, a := range input.Artifacts {
		artifacts = append(artifacts, domain.Artifact{ID: a.ID, URL: a.URL})
	}
	job, err := i.svc.RequestPrint(ctx, service.PrintRequest{
		SessionID:     input.SessionID,
		ArtifactIndex: input.ArtifactIndex,
		Copies:        input.Copies,
		Artifacts:     artifacts,
	})
	if err != nil {
		return dto.PrintOutput{}, err
	}
	return dto.PrintOutput{JobID: job.ID, State: string(job.State), Copies: job.Copies}, nil
}

func (i *Interactor) PollPrintStatus(ctx context.Context, jobID string) (dto.StatusOutput, error) {
	status, err := i.svc.PollPrintStatus(ctx, jobID)
	if err != nil {
		return dto.StatusOutput{}, err
	}
	return dto.StatusOutput{
		JobID:   status.JobID,
		State:   string(status.State),
		Outcome: string(status.Outcome),
		Reason:  status.Reason,
	}, nil
}

func (i *Interactor) GetJob(ctx context.Context, jobID string) (dto.JobOutput, error) {
	job, err := i.svc.GetJob(ctx, jobID)
	if err != nil {
		return dto.JobOutput{}, err
	}
	return dto.JobOutput{
		JobID:         job.ID,
		SessionID:     job.SessionID,
		ArtifactIndex: job.ArtifactIndex,
		ArtifactURL:   job.ArtifactURL,
		Copies:        job.Copies,
		State:         string(job.State),
		Reason:        job.Reason,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339),
	}, nil
}
