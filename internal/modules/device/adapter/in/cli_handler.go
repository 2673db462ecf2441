package in

import (
	"context"

	"pixelbooth/internal/modules/device/dto"
	devicein "pixelbooth/internal/modules/device/port/in"
)

type CLIHandler struct {
	usecase devicein.Usecase
}

func NewCLIHandler(usecase devicein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Doctor(ctx context.Context) (dto.DoctorResult, error) {
	return h.usecase.Doctor(ctx)
}

func (h CLIHandler) Capture(ctx context.Context) (dto.PhotoOutput, error) {
	return h.usecase.Capture(ctx)
}
