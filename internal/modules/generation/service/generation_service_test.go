package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pixelbooth/internal/modules/generation/domain"
	generationout "pixelbooth/internal/modules/generation/port/out"
	apperrors "pixelbooth/internal/platform/errors"
)

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

type fakeID struct{ value string }

func (f fakeID) New() string { return f.value }

type upperTranslator struct {
	err   error
	calls []string
}

func (u *upperTranslator) Translate(_ context.Context, text string) (string, error) {
	u.calls = append(u.calls, text)
	if u.err != nil {
		return "", u.err
	}
	return "EN:" + text, nil
}

type fakeImages struct {
	mu          sync.Mutex
	uploadErr   error
	startErrAt  int
	styleStates []domain.RemoteGeneration
	final       domain.RemoteGeneration
	finalErr    error
	requests    []domain.GenerateRequest
	calls       []string
}

func (f *fakeImages) UploadImage(_ context.Context, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "upload")
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "up-1", nil
}

func (f *fakeImages) StartGeneration(_ context.Context, req domain.GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start")
	f.requests = append(f.requests, req)
	if f.startErrAt == len(f.requests) {
		return "", errors.New("quota exceeded")
	}
	if len(f.requests) == 1 {
		return "style-gen", nil
	}
	return "final-gen", nil
}

func (f *fakeImages) GetGeneration(_ context.Context, id string) (domain.RemoteGeneration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get:"+id)
	if id == "style-gen" {
		if len(f.styleStates) == 0 {
			return domain.RemoteGeneration{State: domain.JobComplete, Images: []domain.RemoteImage{{ID: "style-img"}}}, nil
		}
		st := f.styleStates[0]
		f.styleStates = f.styleStates[1:]
		return st, nil
	}
	return f.final, f.finalErr
}

type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func newMemoryStore() *memoryStore { return &memoryStore{jobs: map[string]domain.Job{}} }

func (m *memoryStore) Save(_ context.Context, job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.SessionID] = job
	return nil
}

func (m *memoryStore) Get(_ context.Context, sessionID string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[sessionID]
	if !ok {
		return domain.Job{}, apperrors.ErrNotFound
	}
	return job, nil
}

func (m *memoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[sessionID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.jobs, sessionID)
	return nil
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.StylePoll = time.Millisecond
	opts.StyleMaxAttempts = 3
	opts.FallbackEnabled = false
	opts.FallbackDelay = 0
	return opts
}

func newService(opts Options, tr *upperTranslator, images *fakeImages, store *memoryStore) *GenerationService {
	var translator generationout.Translator
	if tr != nil {
		translator = tr
	}
	return NewGenerationService(opts, fakeClock{now: time.Unix(1700000000, 0).UTC()}, fakeID{value: "abc"}, translator, images, store, nil, nil)
}

func validRequest() SubmitRequest {
	return SubmitRequest{SessionID: "s1", Image: []byte("jpeg"), Prompt: "phim hoạt hình", StylePrompt: "màu nước"}
}

func TestSubmitRunsStagesInOrder(t *testing.T) {
	t.Parallel()

	tr := &upperTranslator{}
	images := &fakeImages{styleStates: []domain.RemoteGeneration{
		{State: domain.JobPending},
		{State: domain.JobComplete, Images: []domain.RemoteImage{{ID: "style-img", URL: "u"}}},
	}}
	store := newMemoryStore()
	svc := newService(testOptions(), tr, images, store)

	job, err := svc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.GenerationID != "final-gen" || job.Degraded {
		t.Fatalf("unexpected job: %+v", job)
	}
	if len(tr.calls) != 2 {
		t.Fatalf("expected both prompts translated, got %v", tr.calls)
	}
	wantCalls := []string{"upload", "start", "get:style-gen", "get:style-gen", "start"}
	if len(images.calls) != len(wantCalls) {
		t.Fatalf("unexpected call order: %v", images.calls)
	}
	for i := range wantCalls {
		if images.calls[i] != wantCalls[i] {
			t.Fatalf("unexpected call order: %v", images.calls)
		}
	}

	style, final := images.requests[0], images.requests[1]
	if style.Prompt != "EN:màu nước" || style.ImageCount != 1 {
		t.Fatalf("unexpected style request: %+v", style)
	}
	if final.Prompt != "EN:phim hoạt hình" || final.ImageCount != 4 || final.Width != 1024 || final.Height != 768 {
		t.Fatalf("unexpected final request: %+v", final)
	}
	if len(final.References) != 2 || final.References[0].ImageID != "up-1" || final.References[1].ImageID != "style-img" {
		t.Fatalf("unexpected references: %+v", final.References)
	}
	if _, err := store.Get(context.Background(), "s1"); err != nil {
		t.Fatalf("job not stored: %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	svc := newService(testOptions(), nil, &fakeImages{}, newMemoryStore())
	for _, req := range []SubmitRequest{
		{SessionID: "s1", Image: []byte("x"), Prompt: "  "},
		{SessionID: "s1", Prompt: "anime"},
		{Image: []byte("x"), Prompt: "anime"},
	} {
		if _, err := svc.Submit(context.Background(), req); !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("request %+v: expected validation error, got %v", req, err)
		}
	}
}

func TestSubmitStageFailuresCollapse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		tr       *upperTranslator
		images   *fakeImages
		sentinel error
	}{
		{"translation", &upperTranslator{err: errors.New("rate limited")}, &fakeImages{}, domain.ErrTranslation},
		{"upload", nil, &fakeImages{uploadErr: errors.New("403")}, domain.ErrUpload},
		{"style start", nil, &fakeImages{startErrAt: 1}, domain.ErrStyleGeneration},
		{"style failed", nil, &fakeImages{styleStates: []domain.RemoteGeneration{{State: domain.JobFailed, Reason: "nsfw"}}}, domain.ErrStyleGeneration},
		{"style never ready", nil, &fakeImages{styleStates: []domain.RemoteGeneration{{State: domain.JobPending}, {State: domain.JobPending}, {State: domain.JobPending}}}, domain.ErrStyleGeneration},
		{"final", nil, &fakeImages{startErrAt: 2}, domain.ErrFinalGeneration},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := newMemoryStore()
			svc := newService(testOptions(), tc.tr, tc.images, store)
			_, err := svc.Submit(context.Background(), validRequest())
			if !errors.Is(err, apperrors.ErrGenerationFailed) || !errors.Is(err, tc.sentinel) {
				t.Fatalf("expected generation failure wrapping %v, got %v", tc.sentinel, err)
			}
			if _, err := store.Get(context.Background(), "s1"); !errors.Is(err, apperrors.ErrNotFound) {
				t.Fatalf("failed submission must not store a job")
			}
		})
	}
}

func TestSubmitFallsBackToPlaceholders(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.FallbackEnabled = true
	svc := newService(opts, nil, &fakeImages{uploadErr: errors.New("offline")}, newMemoryStore())

	job, err := svc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !job.Degraded || job.GenerationID != "fallback-abc" || job.FailureStage != domain.StageUpload {
		t.Fatalf("unexpected fallback job: %+v", job)
	}

	status, err := svc.PollStatus(context.Background(), "s1")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status.State != domain.JobComplete || !status.Degraded || len(status.Artifacts) != 4 {
		t.Fatalf("unexpected degraded status: %+v", status)
	}
}

func TestFallbackHonoursCancellation(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.FallbackEnabled = true
	opts.FallbackDelay = time.Hour
	svc := newService(opts, nil, &fakeImages{uploadErr: errors.New("offline")}, newMemoryStore())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := svc.Submit(ctx, validRequest()); !errors.Is(err, apperrors.ErrGenerationFailed) {
		t.Fatalf("expected generation failure after cancellation, got %v", err)
	}
}

func TestPollStatusIsIdempotent(t *testing.T) {
	t.Parallel()

	images := &fakeImages{final: domain.RemoteGeneration{
		State:  domain.JobComplete,
		Images: []domain.RemoteImage{{ID: "i1", URL: "https://cdn/1"}, {ID: "i2", URL: "https://cdn/2"}},
	}}
	svc := newService(testOptions(), nil, images, newMemoryStore())
	if _, err := svc.Submit(context.Background(), validRequest()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	first, err := svc.PollStatus(context.Background(), "s1")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	second, err := svc.PollStatus(context.Background(), "s1")
	if err != nil {
		t.Fatalf("poll again: %v", err)
	}
	if first.State != domain.JobComplete || len(first.Artifacts) != 2 || len(second.Artifacts) != 2 {
		t.Fatalf("unexpected statuses: %+v %+v", first, second)
	}
	for i := range first.Artifacts {
		if first.Artifacts[i] != second.Artifacts[i] {
			t.Fatalf("poll results differ at %d", i)
		}
	}
}

func TestPollStatusMapsRemoteStates(t *testing.T) {
	t.Parallel()

	images := &fakeImages{final: domain.RemoteGeneration{State: domain.JobFailed}}
	svc := newService(testOptions(), nil, images, newMemoryStore())
	if _, err := svc.Submit(context.Background(), validRequest()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	status, err := svc.PollStatus(context.Background(), "s1")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status.State != domain.JobFailed || status.Reason == "" {
		t.Fatalf("unexpected status: %+v", status)
	}

	images.final = domain.RemoteGeneration{}
	images.finalErr = errors.New("502")
	if _, err := svc.PollStatus(context.Background(), "s1"); err == nil {
		t.Fatalf("expected transient error to surface")
	}
	if _, err := svc.PollStatus(context.Background(), "unknown"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCleanupRemovesJob(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	svc := newService(testOptions(), nil, &fakeImages{}, store)
	if _, err := svc.Submit(context.Background(), validRequest()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Cleanup(context.Background(), "s1"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if err := svc.Cleanup(context.Background(), "s1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("second cleanup should report not found, got %v", err)
	}
}
