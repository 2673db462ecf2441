package in

import (
	"context"

	"pixelbooth/internal/modules/booth/dto"
	boothin "pixelbooth/internal/modules/booth/port/in"
)

// TUIHandler is the kiosk screen's view of the booth.
type TUIHandler struct {
	usecase boothin.Usecase
}

func NewTUIHandler(usecase boothin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) Start(ctx context.Context, fullName, email string) error {
	return h.usecase.Start(ctx, dto.StartInput{FullName: fullName, Email: email})
}

func (h TUIHandler) Capture(ctx context.Context) error {
	return h.usecase.Capture(ctx)
}

func (h TUIHandler) Retake(ctx context.Context) error {
	return h.usecase.Retake(ctx)
}

func (h TUIHandler) SubmitPrompt(ctx context.Context, prompt, stylePrompt string) error {
	return h.usecase.SubmitPrompt(ctx, dto.PromptInput{Prompt: prompt, StylePrompt: stylePrompt})
}

func (h TUIHandler) Select(ctx context.Context, index int) error {
	return h.usecase.SelectArtifact(ctx, index)
}

func (h TUIHandler) Print(ctx context.Context, copies int) error {
	return h.usecase.Print(ctx, dto.PrintInput{Copies: copies})
}

func (h TUIHandler) Reset(ctx context.Context) error {
	return h.usecase.Reset(ctx)
}

func (h TUIHandler) DismissError(ctx context.Context) error {
	return h.usecase.DismissError(ctx)
}

func (h TUIHandler) Snapshot(ctx context.Context) (dto.SnapshotOutput, error) {
	return h.usecase.Snapshot(ctx)
}

func (h TUIHandler) Subscribe(ctx context.Context) <-chan dto.SnapshotOutput {
	return h.usecase.Subscribe(ctx)
}
