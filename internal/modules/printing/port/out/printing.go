package out

import (
	"context"

	"pixelbooth/internal/modules/printing/domain"
)

// Spooler hands tickets to a printer backend and reports on them.
type Spooler interface {
	Submit(ctx context.Context, ticket domain.Ticket) (string, error)
	Status(ctx context.Context, spoolerID string) (domain.SpoolerStatus, error)
}

type JobStore interface {
	Save(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, jobID string) (domain.Job, error)
}
