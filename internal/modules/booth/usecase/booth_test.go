package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"pixelbooth/internal/modules/booth/domain"
	"pixelbooth/internal/modules/booth/dto"
	"pixelbooth/internal/modules/booth/service"
	apperrors "pixelbooth/internal/platform/errors"
)

type memoryArchive struct {
	sessions []domain.ArchivedSession
}

func (m *memoryArchive) Save(_ context.Context, s domain.ArchivedSession) (string, error) {
	m.sessions = append(m.sessions, s)
	return "", nil
}

func (m *memoryArchive) List(_ context.Context, limit int) ([]domain.ArchivedSession, error) {
	if limit > 0 && limit < len(m.sessions) {
		return m.sessions[:limit], nil
	}
	return m.sessions, nil
}

func (m *memoryArchive) Get(_ context.Context, id string) (domain.ArchivedSession, error) {
	for _, s := range m.sessions {
		if s.SessionID == id {
			return s, nil
		}
	}
	return domain.ArchivedSession{}, apperrors.ErrNotFound
}

func (m *memoryArchive) Reindex(context.Context) (int, error) {
	return len(m.sessions), nil
}

func runningKiosk(t *testing.T) *service.Kiosk {
	t.Helper()
	opts := service.DefaultOptions()
	opts.IdleTick = time.Hour
	k := service.NewKiosk(opts, service.Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = k.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return k
}

func TestStartValidatesVisitor(t *testing.T) {
	t.Parallel()

	uc := NewInteractor(runningKiosk(t), nil)
	ctx := context.Background()

	for _, input := range []dto.StartInput{
		{FullName: "A"},
		{Email: "not-an-email"},
		{Email: "ada@localhost"},
		{FullName: "Ada", Email: "Ada <ada@example.com>"},
	} {
		if err := uc.Start(ctx, input); !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("input %+v: expected validation error, got %v", input, err)
		}
	}

	if err := uc.Start(ctx, dto.StartInput{FullName: " Ada Lovelace ", Email: "ada@example.com"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap, err := uc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Phase != "capture" || snap.VisitorName != "Ada Lovelace" || snap.VisitorEmail != "ada@example.com" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.SelectedIndex != domain.NoSelection {
		t.Fatalf("fresh session should have no selection, got %d", snap.SelectedIndex)
	}
}

func TestAnonymousStartIsAllowed(t *testing.T) {
	t.Parallel()

	uc := NewInteractor(runningKiosk(t), nil)
	if err := uc.Start(context.Background(), dto.StartInput{}); err != nil {
		t.Fatalf("anonymous start: %v", err)
	}
}

func TestSubscribeMapsSnapshots(t *testing.T) {
	t.Parallel()

	uc := NewInteractor(runningKiosk(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := uc.Subscribe(ctx)
	if first := <-updates; first.Phase != "welcome" {
		t.Fatalf("expected welcome, got %s", first.Phase)
	}
	if err := uc.Start(ctx, dto.StartInput{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Phase == "capture" {
				return
			}
		case <-deadline:
			t.Fatalf("no capture snapshot")
		}
	}
}

func TestArchivedQueries(t *testing.T) {
	t.Parallel()

	archive := &memoryArchive{sessions: []domain.ArchivedSession{
		{SessionID: "s1", FinalPhase: domain.PhaseComplete, Artifacts: []domain.Artifact{{URL: "a"}}, ImageCount: 1},
		{SessionID: "s2", FinalPhase: domain.PhaseResults},
	}}
	uc := NewInteractor(runningKiosk(t), archive)
	ctx := context.Background()

	list, err := uc.ListArchived(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].SessionID != "s1" || list[0].ImageCount != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if _, err := uc.ListArchived(ctx, -1); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative limit, got %v", err)
	}

	got, err := uc.GetArchived(ctx, "s2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FinalPhase != "results" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if _, err := uc.GetArchived(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
