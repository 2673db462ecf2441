package out

import (
	"context"

	"pixelbooth/internal/modules/generation/domain"
)

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// ImageService is the remote image generation API.
type ImageService interface {
	UploadImage(ctx context.Context, data []byte, contentType string) (string, error)
	StartGeneration(ctx context.Context, req domain.GenerateRequest) (string, error)
	GetGeneration(ctx context.Context, generationID string) (domain.RemoteGeneration, error)
}

type JobStore interface {
	Save(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, sessionID string) (domain.Job, error)
	Delete(ctx context.Context, sessionID string) error
}
