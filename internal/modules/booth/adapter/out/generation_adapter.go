package out

import (
	"context"

	"pixelbooth/internal/modules/booth/domain"
	boothout "pixelbooth/internal/modules/booth/port/out"
	generationdto "pixelbooth/internal/modules/generation/dto"
	generationin "pixelbooth/internal/modules/generation/port/in"
)

type GenerationAdapter struct {
	generation generationin.Usecase
}

func NewGenerationAdapter(generation generationin.Usecase) boothout.Generator {
	return &GenerationAdapter{generation: generation}
}

func (a *GenerationAdapter) Submit(ctx context.Context, sessionID string, image domain.Image, prompt, stylePrompt string) (domain.GenerationTicket, error) {
	out, err := a.generation.Submit(ctx, generationdto.SubmitInput{
		SessionID:   sessionID,
		Image:       image.Data,
		ContentType: image.ContentType,
		Prompt:      prompt,
		StylePrompt: stylePrompt,
	})
	if err != nil {
		return domain.GenerationTicket{}, err
	}
	return domain.GenerationTicket{SessionID: out.SessionID, GenerationID: out.GenerationID, Degraded: out.Degraded}, nil
}

func (a *GenerationAdapter) PollStatus(ctx context.Context, sessionID string) (domain.GenerationStatus, error) {
	out, err := a.generation.PollStatus(ctx, sessionID)
	if err != nil {
		return domain.GenerationStatus{}, err
	}
	status := domain.GenerationStatus{Degraded: out.Degraded, Reason: out.Reason}
	switch out.State {
	case generationdto.StateComplete:
		status.State = domain.PollComplete
		status.Artifacts = make([]domain.Artifact, 0, len(out.Artifacts))
		for _, a := range out.Artifacts {
			status.Artifacts = append(status.Artifacts, domain.Artifact{ID: a.ID, URL: a.URL, Width: a.Width, Height: a.Height})
		}
	case generationdto.StateFailed:
		status.State = domain.PollFailed
	default:
		status.State = domain.PollPending
	}
	return status, nil
}

func (a *GenerationAdapter) Cleanup(ctx context.Context, sessionID string) {
	a.generation.Cleanup(ctx, sessionID)
}
