package in

import (
	"context"

	"pixelbooth/internal/modules/generation/dto"
)

type Usecase interface {
	Submit(ctx context.Context, input dto.SubmitInput) (dto.SubmitOutput, error)
	PollStatus(ctx context.Context, sessionID string) (dto.StatusOutput, error)
	Cleanup(ctx context.Context, sessionID string) dto.CleanupOutput
}
