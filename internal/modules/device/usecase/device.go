package usecase

import (
	"context"

	"pixelbooth/internal/modules/device/domain"
	"pixelbooth/internal/modules/device/dto"
	devicein "pixelbooth/internal/modules/device/port/in"
	"pixelbooth/internal/modules/device/service"
)

type Interactor struct {
	svc *service.DeviceService
}

func NewInteractor(svc *service.DeviceService) devicein.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Metadata(ctx context.Context) (dto.MetadataOutput, error) {
	meta, err := i.svc.Metadata(ctx)
	if err != nil {
		return dto.MetadataOutput{}, err
	}
	caps := make([]string, 0, len(meta.Capabilities))
	for _, c := range meta.Capabilities {
		caps = append(caps, string(c))
	}
	return dto.MetadataOutput{Name: meta.Name, Version: meta.Version, Capabilities: caps}, nil
}

func (i *Interactor) Capture(ctx context.Context) (dto.PhotoOutput, error) {
	photo, err := i.svc.Capture(ctx)
	if err != nil {
		return dto.PhotoOutput{}, err
	}
	return dto.PhotoOutput{Data: photo.Data, ContentType: photo.ContentType, CapturedAt: photo.CapturedAt}, nil
}

func (i *Interactor) SubmitPrint(ctx context.Context, input dto.PrintInput) (dto.PrintOutput, error) {
	deviceJobID, err := i.svc.SubmitPrint(ctx, domain.PrintTicket{
		JobID:       input.JobID,
		SessionID:   input.SessionID,
		ArtifactURL: input.ArtifactURL,
		Copies:      input.Copies,
	})
	if err != nil {
		return dto.PrintOutput{}, err
	}
	return dto.PrintOutput{DeviceJobID: deviceJobID}, nil
}

func (i *Interactor) PrintStatus(ctx context.Context, deviceJobID string) (dto.PrintStatusOutput, error) {
	status, err := i.svc.PrintStatus(ctx, deviceJobID)
	if err != nil {
		return dto.PrintStatusOutput{}, err
	}
	return dto.PrintStatusOutput{DeviceJobID: deviceJobID, State: string(status.State), Reason: status.Reason}, nil
}

func (i *Interactor) Doctor(ctx context.Context) (dto.DoctorResult, error) {
	return i.svc.Doctor(ctx), nil
}
