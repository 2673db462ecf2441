package in

import (
	"context"

	"pixelbooth/internal/modules/printing/dto"
)

type Usecase interface {
	RequestPrint(ctx context.Context, input dto.PrintInput) (dto.PrintOutput, error)
	PollPrintStatus(ctx context.Context, jobID string) (dto.StatusOutput, error)
	GetJob(ctx context.Context, jobID string) (dto.JobOutput, error)
}
