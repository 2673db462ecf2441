package booth

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	boothdto "pixelbooth/internal/modules/booth/dto"
)

type fakePort struct {
	mu       sync.Mutex
	started  []string
	prompts  []string
	selected []int
	copies   []int
	resets   int
}

func (f *fakePort) Start(_ context.Context, name, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, name+"|"+email)
	return nil
}

func (f *fakePort) Capture(context.Context) error { return nil }
func (f *fakePort) Retake(context.Context) error  { return nil }

func (f *fakePort) SubmitPrompt(_ context.Context, prompt, style string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt+"|"+style)
	return nil
}

func (f *fakePort) Select(_ context.Context, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, index)
	return nil
}

func (f *fakePort) Print(_ context.Context, copies int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, copies)
	return nil
}

func (f *fakePort) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakePort) DismissError(context.Context) error { return nil }

func typeText(m Model, text string) Model {
	for _, r := range text {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func runCmd(t *testing.T, cmd tea.Cmd) ActionDoneMsg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	done, ok := cmd().(ActionDoneMsg)
	if !ok {
		t.Fatal("expected ActionDoneMsg")
	}
	return done
}

func TestWelcomeStartsWithVisitorDetails(t *testing.T) {
	t.Parallel()
	port := &fakePort{}
	m := New(port)
	if !m.Typing() {
		t.Fatal("welcome screen should capture typing")
	}

	m = typeText(m, "Ada")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(m, "ada@example.com")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if done := runCmd(t, cmd); done.Err != nil || done.Action != "start" {
		t.Fatalf("unexpected result: %+v", done)
	}
	if len(port.started) != 1 || port.started[0] != "Ada|ada@example.com" {
		t.Fatalf("unexpected start calls: %v", port.started)
	}
}

func TestPromptEntrySubmitsBothPrompts(t *testing.T) {
	t.Parallel()
	port := &fakePort{}
	m := New(port)
	m, _ = m.Update(SnapshotMsg{Snapshot: boothdto.SnapshotOutput{Phase: phasePromptEntry, HasImage: true}})

	m = typeText(m, "pirate")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(m, "ink")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	runCmd(t, cmd)
	if len(port.prompts) != 1 || port.prompts[0] != "pirate|ink" {
		t.Fatalf("unexpected prompts: %v", port.prompts)
	}
}

func TestResultsSelectionWrapsAndPrintsCopies(t *testing.T) {
	t.Parallel()
	port := &fakePort{}
	m := New(port)
	m, _ = m.Update(SnapshotMsg{Snapshot: boothdto.SnapshotOutput{Phase: phaseGenerating}})
	m, _ = m.Update(SnapshotMsg{Snapshot: boothdto.SnapshotOutput{
		Phase:     phaseResults,
		Artifacts: []boothdto.ArtifactOutput{{ID: "a", URL: "https://img/a"}, {ID: "b", URL: "https://img/b"}},
	}})
	if m.Typing() {
		t.Fatal("results screen should not capture typing")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	runCmd(t, cmd)
	if len(port.selected) != 1 || port.selected[0] != 1 {
		t.Fatalf("left from first image should wrap to last, got %v", port.selected)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	runCmd(t, cmd)
	if len(port.copies) != 1 || port.copies[0] != 3 {
		t.Fatalf("unexpected copies: %v", port.copies)
	}
}

func TestBusyIgnoresInput(t *testing.T) {
	t.Parallel()
	port := &fakePort{}
	m := New(port)
	m, _ = m.Update(SnapshotMsg{Snapshot: boothdto.SnapshotOutput{Phase: phaseCapture, Busy: true}})
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatal("busy kiosk should ignore enter")
	}
}

func TestViewShowsErrorBanner(t *testing.T) {
	t.Parallel()
	m := New(&fakePort{})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = m.Update(SnapshotMsg{Snapshot: boothdto.SnapshotOutput{Phase: phasePromptEntry, Error: "please describe how the photo should be transformed"}})
	if !strings.Contains(m.View(), "please describe") {
		t.Fatal("error banner missing from view")
	}
}
