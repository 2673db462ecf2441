package out

import (
	"context"

	"pixelbooth/internal/modules/booth/domain"
)

type CaptureDevice interface {
	Capture(ctx context.Context) (domain.Image, error)
}

// Generator submits a captured image to the generation pipeline and reports
// on it afterwards.
type Generator interface {
	Submit(ctx context.Context, sessionID string, image domain.Image, prompt, stylePrompt string) (domain.GenerationTicket, error)
	PollStatus(ctx context.Context, sessionID string) (domain.GenerationStatus, error)
	Cleanup(ctx context.Context, sessionID string)
}

type Printer interface {
	RequestPrint(ctx context.Context, sessionID string, index, copies int, artifacts []domain.Artifact) (string, error)
	PollPrintStatus(ctx context.Context, jobID string) (domain.PrintStatus, error)
}

type SessionArchive interface {
	Save(ctx context.Context, session domain.ArchivedSession) (string, error)
	List(ctx context.Context, limit int) ([]domain.ArchivedSession, error)
	Get(ctx context.Context, sessionID string) (domain.ArchivedSession, error)
	Reindex(ctx context.Context) (int, error)
}
