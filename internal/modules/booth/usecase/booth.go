package usecase

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"pixelbooth/internal/modules/booth/domain"
	"pixelbooth/internal/modules/booth/dto"
	boothin "pixelbooth/internal/modules/booth/port/in"
	boothout "pixelbooth/internal/modules/booth/port/out"
	"pixelbooth/internal/modules/booth/service"
	apperrors "pixelbooth/internal/platform/errors"
)

type Interactor struct {
	kiosk   *service.Kiosk
	archive boothout.SessionArchive
}

func NewInteractor(kiosk *service.Kiosk, archive boothout.SessionArchive) boothin.Usecase {
	return &Interactor{kiosk: kiosk, archive: archive}
}

func (i *Interactor) Start(ctx context.Context, input dto.StartInput) error {
	visitor, err := validateVisitor(input)
	if err != nil {
		return err
	}
	return i.kiosk.Start(ctx, visitor)
}

func (i *Interactor) Capture(ctx context.Context) error {
	return i.kiosk.Capture(ctx)
}

func (i *Interactor) Retake(ctx context.Context) error {
	return i.kiosk.Retake(ctx)
}

func (i *Interactor) SubmitPrompt(ctx context.Context, input dto.PromptInput) error {
	return i.kiosk.SubmitPrompt(ctx, input.Prompt, input.StylePrompt)
}

func (i *Interactor) SelectArtifact(ctx context.Context, index int) error {
	return i.kiosk.SelectArtifact(ctx, index)
}

func (i *Interactor) Print(ctx context.Context, input dto.PrintInput) error {
	return i.kiosk.Print(ctx, input.Copies)
}

func (i *Interactor) Reset(ctx context.Context) error {
	return i.kiosk.Reset(ctx)
}

func (i *Interactor) DismissError(ctx context.Context) error {
	return i.kiosk.DismissError(ctx)
}

func (i *Interactor) Snapshot(context.Context) (dto.SnapshotOutput, error) {
	return toSnapshot(i.kiosk.Snapshot()), nil
}

func (i *Interactor) Subscribe(ctx context.Context) <-chan dto.SnapshotOutput {
	views := i.kiosk.Subscribe(ctx)
	out := make(chan dto.SnapshotOutput, 1)
	go func() {
		defer close(out)
		for v := range views {
			snap := toSnapshot(v)
			select {
			case out <- snap:
			default:
				select {
				case <-out:
				default:
				}
				out <- snap
			}
		}
	}()
	return out
}

func (i *Interactor) ListArchived(ctx context.Context, limit int) ([]dto.ArchivedSessionOutput, error) {
	if i.archive == nil {
		return nil, nil
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative", apperrors.ErrInvalidInput)
	}
	sessions, err := i.archive.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ArchivedSessionOutput, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toArchived(s))
	}
	return out, nil
}

func (i *Interactor) GetArchived(ctx context.Context, sessionID string) (dto.ArchivedSessionOutput, error) {
	if strings.TrimSpace(sessionID) == "" {
		return dto.ArchivedSessionOutput{}, fmt.Errorf("%w: session id is required", apperrors.ErrInvalidInput)
	}
	if i.archive == nil {
		return dto.ArchivedSessionOutput{}, apperrors.ErrNotFound
	}
	s, err := i.archive.Get(ctx, sessionID)
	if err != nil {
		return dto.ArchivedSessionOutput{}, err
	}
	return toArchived(s), nil
}

// ReindexArchive rebuilds the archive index from the notes on disk.
func (i *Interactor) ReindexArchive(ctx context.Context) (int, error) {
	if i.archive == nil {
		return 0, nil
	}
	return i.archive.Reindex(ctx)
}

// validateVisitor accepts an anonymous visitor. Details that are given must
// look real: a name of at least two letters and a parseable email address.
func validateVisitor(input dto.StartInput) (domain.Visitor, error) {
	name := strings.TrimSpace(input.FullName)
	email := strings.TrimSpace(input.Email)
	if name != "" && utf8.RuneCountInString(name) < 2 {
		return domain.Visitor{}, fmt.Errorf("%w: name must have at least 2 characters", apperrors.ErrValidation)
	}
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
			return domain.Visitor{}, fmt.Errorf("%w: %q is not a valid email address", apperrors.ErrValidation, email)
		}
	}
	return domain.Visitor{FullName: name, Email: email}, nil
}

func toSnapshot(v service.View) dto.SnapshotOutput {
	s := v.Session
	artifacts := make([]dto.ArtifactOutput, 0, len(s.Artifacts))
	for _, a := range s.Artifacts {
		artifacts = append(artifacts, dto.ArtifactOutput{ID: a.ID, URL: a.URL, Width: a.Width, Height: a.Height})
	}
	return dto.SnapshotOutput{
		Version:       v.Version,
		Phase:         string(s.Phase),
		SessionID:     s.SessionID,
		VisitorName:   s.Visitor.FullName,
		VisitorEmail:  s.Visitor.Email,
		HasImage:      s.HasImage(),
		Prompt:        s.Prompt,
		StylePrompt:   s.StylePrompt,
		GenerationID:  s.GenerationID,
		Degraded:      s.Degraded,
		Artifacts:     artifacts,
		SelectedIndex: s.SelectedIndex,
		PrintJobID:    s.PrintJobID,
		PrintDetail:   v.PrintDetail,
		Error:         s.Error,
		IdleSeconds:   s.IdleSeconds,
		Busy:          v.Busy,
		Progress:      v.Progress,
		StartedAt:     s.StartedAt,
	}
}

func toArchived(s domain.ArchivedSession) dto.ArchivedSessionOutput {
	var artifacts []dto.ArtifactOutput
	for _, a := range s.Artifacts {
		artifacts = append(artifacts, dto.ArtifactOutput{ID: a.ID, URL: a.URL, Width: a.Width, Height: a.Height})
	}
	return dto.ArchivedSessionOutput{
		SessionID:    s.SessionID,
		VisitorName:  s.Visitor.FullName,
		VisitorEmail: s.Visitor.Email,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		FinalPhase:   string(s.FinalPhase),
		Prompt:       s.Prompt,
		StylePrompt:  s.StylePrompt,
		GenerationID: s.GenerationID,
		Degraded:     s.Degraded,
		Artifacts:    artifacts,
		ImageCount:   s.ImageCount,
		Selected:     s.Selected,
		PrintJobID:   s.PrintJobID,
		NotePath:     s.NotePath,
	}
}
