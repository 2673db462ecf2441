package out_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	boothadapter "pixelbooth/internal/modules/booth/adapter/out"
	"pixelbooth/internal/modules/booth/domain"
	devicedto "pixelbooth/internal/modules/device/dto"
	generationdto "pixelbooth/internal/modules/generation/dto"
	printingdto "pixelbooth/internal/modules/printing/dto"
	apperrors "pixelbooth/internal/platform/errors"
	"pixelbooth/internal/platform/sqlitedb"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeGeneration struct {
	submitted generationdto.SubmitInput
	status    generationdto.StatusOutput
	cleaned   []string
}

func (f *fakeGeneration) Submit(_ context.Context, input generationdto.SubmitInput) (generationdto.SubmitOutput, error) {
	f.submitted = input
	return generationdto.SubmitOutput{SessionID: input.SessionID, GenerationID: "gen-1", Degraded: true}, nil
}

func (f *fakeGeneration) PollStatus(context.Context, string) (generationdto.StatusOutput, error) {
	return f.status, nil
}

func (f *fakeGeneration) Cleanup(_ context.Context, sessionID string) generationdto.CleanupOutput {
	f.cleaned = append(f.cleaned, sessionID)
	return generationdto.CleanupOutput{SessionID: sessionID, Status: "removed"}
}

type fakePrinting struct {
	input  printingdto.PrintInput
	status printingdto.StatusOutput
	err    error
}

func (f *fakePrinting) RequestPrint(_ context.Context, input printingdto.PrintInput) (printingdto.PrintOutput, error) {
	f.input = input
	if f.err != nil {
		return printingdto.PrintOutput{}, f.err
	}
	return printingdto.PrintOutput{JobID: "job-1", State: "queued", Copies: input.Copies}, nil
}

func (f *fakePrinting) PollPrintStatus(context.Context, string) (printingdto.StatusOutput, error) {
	return f.status, nil
}

func (f *fakePrinting) GetJob(context.Context, string) (printingdto.JobOutput, error) {
	return printingdto.JobOutput{}, apperrors.ErrNotFound
}

type fakeDevice struct {
	photo devicedto.PhotoOutput
	err   error
}

func (f fakeDevice) Metadata(context.Context) (devicedto.MetadataOutput, error) {
	return devicedto.MetadataOutput{}, nil
}

func (f fakeDevice) Capture(context.Context) (devicedto.PhotoOutput, error) {
	return f.photo, f.err
}

func (f fakeDevice) SubmitPrint(context.Context, devicedto.PrintInput) (devicedto.PrintOutput, error) {
	return devicedto.PrintOutput{}, nil
}

func (f fakeDevice) PrintStatus(context.Context, string) (devicedto.PrintStatusOutput, error) {
	return devicedto.PrintStatusOutput{}, nil
}

func (f fakeDevice) Doctor(context.Context) (devicedto.DoctorResult, error) {
	return devicedto.DoctorResult{}, nil
}

func TestGenerationAdapterMapsStates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	gen := &fakeGeneration{}
	adapter := boothadapter.NewGenerationAdapter(gen)

	ticket, err := adapter.Submit(ctx, "s1", domain.Image{Data: []byte{1, 2}, ContentType: "image/png"}, "pirate", "ink")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ticket.GenerationID != "gen-1" || !ticket.Degraded {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}
	if gen.submitted.ContentType != "image/png" || gen.submitted.StylePrompt != "ink" || len(gen.submitted.Image) != 2 {
		t.Fatalf("unexpected submit input: %+v", gen.submitted)
	}

	cases := []struct {
		state string
		want  domain.PollState
	}{
		{generationdto.StatePending, domain.PollPending},
		{generationdto.StateFailed, domain.PollFailed},
		{generationdto.StateComplete, domain.PollComplete},
	}
	for _, tc := range cases {
		gen.status = generationdto.StatusOutput{
			State:     tc.state,
			Artifacts: []generationdto.ArtifactOutput{{ID: "a", URL: "https://img/a", Width: 10, Height: 20}},
		}
		status, err := adapter.PollStatus(ctx, "s1")
		if err != nil {
			t.Fatalf("poll %s: %v", tc.state, err)
		}
		if status.State != tc.want {
			t.Fatalf("state %s mapped to %s", tc.state, status.State)
		}
		if tc.want == domain.PollComplete && (len(status.Artifacts) != 1 || status.Artifacts[0].Height != 20) {
			t.Fatalf("unexpected artifacts: %+v", status.Artifacts)
		}
	}

	adapter.Cleanup(ctx, "s1")
	if len(gen.cleaned) != 1 || gen.cleaned[0] != "s1" {
		t.Fatalf("cleanup not forwarded: %v", gen.cleaned)
	}
}

func TestPrintingAdapterForwardsRequestAndOutcome(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	printing := &fakePrinting{}
	adapter := boothadapter.NewPrintingAdapter(printing)

	artifacts := []domain.Artifact{{ID: "a", URL: "https://img/a"}, {ID: "b", URL: "https://img/b"}}
	jobID, err := adapter.RequestPrint(ctx, "s1", 1, 2, artifacts)
	if err != nil {
		t.Fatalf("request print: %v", err)
	}
	if jobID != "job-1" {
		t.Fatalf("job id = %q", jobID)
	}
	if printing.input.ArtifactIndex != 1 || printing.input.Copies != 2 || len(printing.input.Artifacts) != 2 || printing.input.Artifacts[1].URL != "https://img/b" {
		t.Fatalf("unexpected print input: %+v", printing.input)
	}

	printing.status = printingdto.StatusOutput{JobID: "job-1", State: "processing", Outcome: printingdto.OutcomePending}
	status, err := adapter.PollPrintStatus(ctx, "job-1")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status.State != domain.PollPending || status.Detail != "processing" {
		t.Fatalf("unexpected status: %+v", status)
	}

	printing.status = printingdto.StatusOutput{JobID: "job-1", State: "failed", Outcome: printingdto.OutcomeFailed, Reason: "paper jam"}
	status, err = adapter.PollPrintStatus(ctx, "job-1")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status.State != domain.PollFailed || status.Reason != "paper jam" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestPrintingAdapterPassesErrorsThrough(t *testing.T) {
	t.Parallel()
	printing := &fakePrinting{err: apperrors.ErrPrintFailed}
	adapter := boothadapter.NewPrintingAdapter(printing)
	if _, err := adapter.RequestPrint(context.Background(), "s1", 0, 1, nil); !errors.Is(err, apperrors.ErrPrintFailed) {
		t.Fatalf("expected print failure, got %v", err)
	}
}

func TestFileCapturePicksNewestImage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	png := []byte("\x89PNG\r\n\x1a\n0000")
	jpeg := []byte("\xff\xd8\xff\xe0rest")

	older := filepath.Join(dir, "a.png")
	newer := filepath.Join(dir, "b.jpg")
	if err := os.WriteFile(older, png, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(newer, jpeg, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(older, base, base); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	now := time.Date(2026, 5, 1, 13, 0, 0, 0, time.UTC)
	capture := boothadapter.NewFileCapture(dir, fixedClock{now: now})
	img, err := capture.Capture(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if img.ContentType != "image/jpeg" || string(img.Data) != string(jpeg) || !img.CapturedAt.Equal(now) {
		t.Fatalf("unexpected image: type=%s at=%s", img.ContentType, img.CapturedAt)
	}
}

func TestFileCaptureEmptyDir(t *testing.T) {
	t.Parallel()
	capture := boothadapter.NewFileCapture(t.TempDir(), fixedClock{})
	if _, err := capture.Capture(context.Background()); err == nil {
		t.Fatal("expected error for empty capture dir")
	}
}

func TestDeviceCaptureMapsPhoto(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	capture := boothadapter.NewDeviceCapture(fakeDevice{photo: devicedto.PhotoOutput{Data: []byte("img"), ContentType: "image/png", CapturedAt: at}})
	img, err := capture.Capture(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if string(img.Data) != "img" || img.ContentType != "image/png" || !img.CapturedAt.Equal(at) {
		t.Fatalf("unexpected image: %+v", img)
	}

	failing := boothadapter.NewDeviceCapture(fakeDevice{err: errors.New("lens cap on")})
	if _, err := failing.Capture(context.Background()); err == nil || !strings.Contains(err.Error(), "lens cap") {
		t.Fatalf("expected device error, got %v", err)
	}
}

func archivedSession(id string, ended time.Time) domain.ArchivedSession {
	return domain.ArchivedSession{
		SessionID:    id,
		Visitor:      domain.Visitor{FullName: "Ada Lovelace", Email: "ada@example.com"},
		StartedAt:    ended.Add(-3 * time.Minute),
		EndedAt:      ended,
		FinalPhase:   domain.PhaseComplete,
		Prompt:       "as a pirate",
		StylePrompt:  "oil painting",
		GenerationID: "gen-" + id,
		Artifacts: []domain.Artifact{
			{ID: "a1", URL: "https://img/a1", Width: 1024, Height: 768},
			{ID: "a2", URL: "https://img/a2", Width: 1024, Height: 768},
		},
		ImageCount: 2,
		Selected:   1,
		PrintJobID: "job-" + id,
	}
}

func TestArchiveStoreSaveListGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	db, err := sqlitedb.Open(filepath.Join(root, "booth.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	archiveDir := filepath.Join(root, "archive")
	store, err := boothadapter.NewArchiveStore(ctx, archiveDir, db)
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}

	first := time.Date(2026, 4, 2, 10, 15, 30, 0, time.UTC)
	path, err := store.Save(ctx, archivedSession("s1", first))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if want := filepath.Join(archiveDir, "2026", "04", "02", "101530-s1.md"); path != want {
		t.Fatalf("path = %s, want %s", path, want)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	note := string(raw)
	if !strings.HasPrefix(note, "---\n") || !strings.Contains(note, "session_id: s1") || !strings.Contains(note, "https://img/a2") {
		t.Fatalf("unexpected note:\n%s", note)
	}

	if _, err := store.Save(ctx, archivedSession("s2", first.Add(time.Hour))); err != nil {
		t.Fatalf("save second: %v", err)
	}

	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].SessionID != "s2" || list[1].SessionID != "s1" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[1].ImageCount != 2 || list[1].Visitor.Email != "ada@example.com" || !list[1].EndedAt.Equal(first) {
		t.Fatalf("unexpected index row: %+v", list[1])
	}
	limited, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit ignored: %d rows", len(limited))
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Artifacts) != 2 || got.Artifacts[1].URL != "https://img/a2" || got.Selected != 1 || got.PrintJobID != "job-s1" || got.NotePath != path {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.FinalPhase != domain.PhaseComplete || got.StylePrompt != "oil painting" {
		t.Fatalf("unexpected session fields: %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestArchiveStoreReindexRebuildsFromNotes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	archiveDir := filepath.Join(root, "archive")

	db, err := sqlitedb.Open(filepath.Join(root, "first.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store, err := boothadapter.NewArchiveStore(ctx, archiveDir, db)
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	ended := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"s1", "s2", "s3"} {
		ended = ended.Add(time.Minute)
		if _, err := store.Save(ctx, archivedSession(id, ended)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	_ = db.Close()

	fresh, err := sqlitedb.Open(filepath.Join(root, "second.db"))
	if err != nil {
		t.Fatalf("open fresh db: %v", err)
	}
	defer fresh.Close()
	rebuilt, err := boothadapter.NewArchiveStore(ctx, archiveDir, fresh)
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	list, err := rebuilt.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("fresh index should be empty, got %d", len(list))
	}

	count, err := rebuilt.Reindex(ctx)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if count != 3 {
		t.Fatalf("reindexed %d sessions, want 3", count)
	}
	list, err = rebuilt.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].SessionID != "s3" {
		t.Fatalf("unexpected rebuilt index: %+v", list)
	}
}

func TestArchiveStoreReindexMissingDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	db, err := sqlitedb.Open(filepath.Join(root, "booth.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	store, err := boothadapter.NewArchiveStore(ctx, filepath.Join(root, "nope"), db)
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	count, err := store.Reindex(ctx)
	if err != nil || count != 0 {
		t.Fatalf("reindex missing dir = %d, %v", count, err)
	}
}

func TestArchiveStoreReindexKeepsIndexOnBadNote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	archiveDir := filepath.Join(root, "archive")
	db, err := sqlitedb.Open(filepath.Join(root, "booth.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	store, err := boothadapter.NewArchiveStore(ctx, archiveDir, db)
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	if _, err := store.Save(ctx, archivedSession("s1", time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "stray.md"), []byte("just notes\n"), 0o644); err != nil {
		t.Fatalf("write stray note: %v", err)
	}

	if _, err := store.Reindex(ctx); err == nil {
		t.Fatalf("expected reindex to fail on a note without a session id")
	}
	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].SessionID != "s1" {
		t.Fatalf("index should be untouched, got %+v", list)
	}
}
