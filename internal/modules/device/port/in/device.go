package in

import (
	"context"

	"pixelbooth/internal/modules/device/dto"
)

type Usecase interface {
	Metadata(ctx context.Context) (dto.MetadataOutput, error)
	Capture(ctx context.Context) (dto.PhotoOutput, error)
	SubmitPrint(ctx context.Context, input dto.PrintInput) (dto.PrintOutput, error)
	PrintStatus(ctx context.Context, deviceJobID string) (dto.PrintStatusOutput, error)
	Doctor(ctx context.Context) (dto.DoctorResult, error)
}
