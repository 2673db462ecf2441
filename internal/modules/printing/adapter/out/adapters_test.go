package out_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	printingadapter "pixelbooth/internal/modules/printing/adapter/out"
	"pixelbooth/internal/modules/printing/domain"
	apperrors "pixelbooth/internal/platform/errors"
	"pixelbooth/internal/platform/sqlitedb"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSimSpoolerMovesThroughStates(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	clk := &stepClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	spooler := printingadapter.NewSimSpooler(dir, clk, time.Second, 3*time.Second)
	ctx := context.Background()

	id, err := spooler.Submit(ctx, domain.Ticket{JobID: "p1", SessionID: "s1", ArtifactIndex: 1, ArtifactURL: "https://img/1", Copies: 2})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "p1.yaml"))
	if err != nil {
		t.Fatalf("read ticket: %v", err)
	}
	var ticket map[string]any
	if err := yaml.Unmarshal(raw, &ticket); err != nil {
		t.Fatalf("parse ticket: %v", err)
	}
	if ticket["session_id"] != "s1" || ticket["copies"] != 2 {
		t.Fatalf("unexpected ticket: %v", ticket)
	}

	want := []domain.JobState{domain.JobQueued, domain.JobProcessing, domain.JobProcessing, domain.JobCompleted}
	for i, state := range want {
		st, err := spooler.Status(ctx, id)
		if err != nil {
			t.Fatalf("status %d: %v", i, err)
		}
		if st.State != state {
			t.Fatalf("status %d = %s, want %s", i, st.State, state)
		}
		clk.Advance(1500 * time.Millisecond)
	}

	st, err := spooler.Status(ctx, "missing")
	if err != nil || st.State != domain.JobFailed {
		t.Fatalf("unknown job: %+v, %v", st, err)
	}
}

func TestSimSpoolerStatusFromAnotherProcess(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	clk := &stepClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	submitter := printingadapter.NewSimSpooler(dir, clk, time.Second, 3*time.Second)
	id, err := submitter.Submit(ctx, domain.Ticket{JobID: "p7", SessionID: "s1", ArtifactURL: "https://img/1", Copies: 1})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	poller := printingadapter.NewSimSpooler(dir, clk, time.Second, 3*time.Second)
	clk.Advance(500 * time.Millisecond)
	st, err := poller.Status(ctx, id)
	if err != nil || st.State != domain.JobQueued {
		t.Fatalf("status at +0.5s = %+v, %v", st, err)
	}
	clk.Advance(2 * time.Second)
	st, err = poller.Status(ctx, id)
	if err != nil || st.State != domain.JobProcessing {
		t.Fatalf("status at +2.5s = %+v, %v", st, err)
	}
	clk.Advance(10 * time.Second)
	st, err = poller.Status(ctx, id)
	if err != nil || st.State != domain.JobCompleted {
		t.Fatalf("status at +12.5s = %+v, %v", st, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("submitted_at: yesterday\n"), 0o644); err != nil {
		t.Fatalf("write broken ticket: %v", err)
	}
	if _, err := poller.Status(ctx, "broken"); err == nil {
		t.Fatalf("expected an error for an unreadable ticket")
	}
	if st, err := poller.Status(ctx, "../p7"); err != nil || st.State != domain.JobFailed {
		t.Fatalf("path outside the spool = %+v, %v", st, err)
	}
}

func TestHTTPSpoolerSubmitAndStatus(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var form map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/print", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		form = map[string]string{
			"session_id":  r.PostForm.Get("session_id"),
			"image_index": r.PostForm.Get("image_index"),
			"copies":      r.PostForm.Get("copies"),
		}
		mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"queued","message":"Print job added to queue","job_id":7}`))
	})
	mux.HandleFunc("/print/status/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	})
	mux.HandleFunc("/print/status/8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failed","error":"out of paper"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	spooler := printingadapter.NewHTTPSpooler(srv.URL, time.Second)
	ctx := context.Background()
	id, err := spooler.Submit(ctx, domain.Ticket{JobID: "p1", SessionID: "s1", ArtifactIndex: 3, Copies: 1})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "7" {
		t.Fatalf("spooler id = %q, want 7", id)
	}
	mu.Lock()
	if form["session_id"] != "s1" || form["image_index"] != "3" || form["copies"] != "1" {
		t.Fatalf("unexpected form: %v", form)
	}
	mu.Unlock()

	st, err := spooler.Status(ctx, "7")
	if err != nil || st.State != domain.JobProcessing {
		t.Fatalf("status 7: %+v, %v", st, err)
	}
	st, err = spooler.Status(ctx, "8")
	if err != nil || st.State != domain.JobFailed || st.Reason != "out of paper" {
		t.Fatalf("status 8: %+v, %v", st, err)
	}
	st, err = spooler.Status(ctx, "9")
	if err != nil || st.State != domain.JobFailed {
		t.Fatalf("status 9: %+v, %v", st, err)
	}
}

func TestHTTPSpoolerSubmitError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Session not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := printingadapter.NewHTTPSpooler(srv.URL, time.Second).Submit(context.Background(), domain.Ticket{JobID: "p1", SessionID: "s1"})
	if err == nil || !strings.Contains(err.Error(), "Session not found") {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestSQLiteJobStoreUpdatesState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "booth.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	store, err := printingadapter.NewSQLiteJobStore(ctx, db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	job := domain.Job{ID: "p1", SpoolerID: "7", SessionID: "s1", ArtifactIndex: 1, Copies: 2, State: domain.JobQueued, CreatedAt: created, UpdatedAt: created}
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("save: %v", err)
	}
	job.State = domain.JobFailed
	job.Reason = "jam"
	job.UpdatedAt = created.Add(time.Minute)
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != domain.JobFailed || got.Reason != "jam" || got.Copies != 2 || !got.UpdatedAt.Equal(job.UpdatedAt) {
		t.Fatalf("unexpected job: %+v", got)
	}
	if _, err := store.Get(ctx, "p2"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
