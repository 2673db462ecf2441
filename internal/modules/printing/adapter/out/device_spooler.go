package out

import (
	"context"
	"fmt"

	devicedto "pixelbooth/internal/modules/device/dto"
	devicein "pixelbooth/internal/modules/device/port/in"
	"pixelbooth/internal/modules/printing/domain"
	printingout "pixelbooth/internal/modules/printing/port/out"
)

// DeviceSpooler prints through a device driver plugin.
type DeviceSpooler struct {
	device devicein.Usecase
}

func NewDeviceSpooler(device devicein.Usecase) printingout.Spooler {
	return &DeviceSpooler{device: device}
}

func (s *DeviceSpooler) Submit(ctx context.Context, ticket domain.Ticket) (string, error) {
	out, err := s.device.SubmitPrint(ctx, devicedto.PrintInput{
		JobID:       ticket.JobID,
		SessionID:   ticket.SessionID,
		ArtifactURL: ticket.ArtifactURL,
		Copies:      ticket.Copies,
	})
	if err != nil {
		return "", fmt.Errorf("device print: %w", err)
	}
	return out.DeviceJobID, nil
}

func (s *DeviceSpooler) Status(ctx context.Context, spoolerID string) (domain.SpoolerStatus, error) {
	out, err := s.device.PrintStatus(ctx, spoolerID)
	if err != nil {
		return domain.SpoolerStatus{}, fmt.Errorf("device print status: %w", err)
	}
	return domain.SpoolerStatus{State: parseState(out.State), Reason: out.Reason}, nil
}
