package out

import (
	"context"

	"pixelbooth/internal/modules/booth/domain"
	boothout "pixelbooth/internal/modules/booth/port/out"
	printingdto "pixelbooth/internal/modules/printing/dto"
	printingin "pixelbooth/internal/modules/printing/port/in"
)

type PrintingAdapter struct {
	printing printingin.Usecase
}

func NewPrintingAdapter(printing printingin.Usecase) boothout.Printer {
	return &PrintingAdapter{printing: printing}
}

func (a *PrintingAdapter) RequestPrint(ctx context.Context, sessionID string, index, copies int, artifacts []domain.Artifact) (string, error) {
	inputs := make([]printingdto.ArtifactInput, 0, len(artifacts))
	for _, art := range artifacts {
		inputs = append(inputs, printingdto.ArtifactInput{ID: art.ID, URL: art.URL})
	}
	out, err := a.printing.RequestPrint(ctx, printingdto.PrintInput{
		SessionID:     sessionID,
		ArtifactIndex: index,
		Copies:        copies,
		Artifacts:     inputs,
	})
	if err != nil {
		return "", err
	}
	return out.JobID, nil
}

func (a *PrintingAdapter) PollPrintStatus(ctx context.Context, jobID string) (domain.PrintStatus, error) {
	out, err := a.printing.PollPrintStatus(ctx, jobID)
	if err != nil {
		return domain.PrintStatus{}, err
	}
	status := domain.PrintStatus{Detail: out.State, Reason: out.Reason}
	switch out.Outcome {
	case printingdto.OutcomeComplete:
		status.State = domain.PollComplete
	case printingdto.OutcomeFailed:
		status.State = domain.PollFailed
	default:
		status.State = domain.PollPending
	}
	return status, nil
}
