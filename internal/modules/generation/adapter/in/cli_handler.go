package in

import (
	"context"

	"pixelbooth/internal/modules/generation/dto"
	generationin "pixelbooth/internal/modules/generation/port/in"
)

type CLIHandler struct {
	usecase generationin.Usecase
}

func NewCLIHandler(usecase generationin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Submit(ctx context.Context, sessionID string, image []byte, contentType, prompt, stylePrompt string) (dto.SubmitOutput, error) {
	return h.usecase.Submit(ctx, dto.SubmitInput{
		SessionID:   sessionID,
		Image:       image,
		ContentType: contentType,
		Prompt:      prompt,
		StylePrompt: stylePrompt,
	})
}

func (h CLIHandler) Status(ctx context.Context, sessionID string) (dto.StatusOutput, error) {
	return h.usecase.PollStatus(ctx, sessionID)
}

func (h CLIHandler) Cleanup(ctx context.Context, sessionID string) dto.CleanupOutput {
	return h.usecase.Cleanup(ctx, sessionID)
}
