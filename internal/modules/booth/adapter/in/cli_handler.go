package in

import (
	"context"

	"pixelbooth/internal/modules/booth/dto"
	boothin "pixelbooth/internal/modules/booth/port/in"
)

type CLIHandler struct {
	usecase boothin.Usecase
}

func NewCLIHandler(usecase boothin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) ListSessions(ctx context.Context, limit int) ([]dto.ArchivedSessionOutput, error) {
	return h.usecase.ListArchived(ctx, limit)
}

func (h CLIHandler) ShowSession(ctx context.Context, sessionID string) (dto.ArchivedSessionOutput, error) {
	return h.usecase.GetArchived(ctx, sessionID)
}

func (h CLIHandler) Reindex(ctx context.Context) (int, error) {
	return h.usecase.ReindexArchive(ctx)
}
