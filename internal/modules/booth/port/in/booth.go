package in

import (
	"context"

	"pixelbooth/internal/modules/booth/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) error
	Capture(ctx context.Context) error
	Retake(ctx context.Context) error
	SubmitPrompt(ctx context.Context, input dto.PromptInput) error
	SelectArtifact(ctx context.Context, index int) error
	Print(ctx context.Context, input dto.PrintInput) error
	Reset(ctx context.Context) error
	DismissError(ctx context.Context) error
	Snapshot(ctx context.Context) (dto.SnapshotOutput, error)
	Subscribe(ctx context.Context) <-chan dto.SnapshotOutput
	ListArchived(ctx context.Context, limit int) ([]dto.ArchivedSessionOutput, error)
	GetArchived(ctx context.Context, sessionID string) (dto.ArchivedSessionOutput, error)
	ReindexArchive(ctx context.Context) (int, error)
}
