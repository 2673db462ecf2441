package in

import (
	"context"

	"pixelbooth/internal/modules/printing/dto"
	printingin "pixelbooth/internal/modules/printing/port/in"
)

type CLIHandler struct {
	usecase printingin.Usecase
}

func NewCLIHandler(usecase printingin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

// Print sends a single image URL to the printer outside of a kiosk session.
func (h CLIHandler) Print(ctx context.Context, sessionID, imageURL string, copies int) (dto.PrintOutput, error) {
	return h.usecase.RequestPrint(ctx, dto.PrintInput{
		SessionID:     sessionID,
		ArtifactIndex: 0,
		Copies:        copies,
		Artifacts:     []dto.ArtifactInput{{ID: "cli", URL: imageURL}},
	})
}

func (h CLIHandler) Status(ctx context.Context, jobID string) (dto.StatusOutput, error) {
	return h.usecase.PollPrintStatus(ctx, jobID)
}

func (h CLIHandler) Job(ctx context.Context, jobID string) (dto.JobOutput, error) {
	return h.usecase.GetJob(ctx, jobID)
}
