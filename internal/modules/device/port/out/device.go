package out

import (
	"context"

	"pixelbooth/internal/modules/device/domain"
)

// Host runs a device driver and relays calls to it.
type Host interface {
	GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error)
	Capture(ctx context.Context, manifest domain.Manifest) (domain.Photo, error)
	SubmitPrint(ctx context.Context, manifest domain.Manifest, ticket domain.PrintTicket) (string, error)
	PrintStatus(ctx context.Context, manifest domain.Manifest, deviceJobID string) (domain.PrintStatus, error)
	Close() error
}
