package booth

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	boothdto "pixelbooth/internal/modules/booth/dto"
	"pixelbooth/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

// Port is what the visitor screens drive.
type Port interface {
	Start(ctx context.Context, fullName, email string) error
	Capture(ctx context.Context) error
	Retake(ctx context.Context) error
	SubmitPrompt(ctx context.Context, prompt, stylePrompt string) error
	Select(ctx context.Context, index int) error
	Print(ctx context.Context, copies int) error
	Reset(ctx context.Context) error
	DismissError(ctx context.Context) error
}

const (
	phaseWelcome     = "welcome"
	phaseCapture     = "capture"
	phasePromptEntry = "prompt_entry"
	phaseGenerating  = "generating"
	phaseResults     = "results"
	phasePrinting    = "printing"
	phaseComplete    = "complete"

	maxCopies = 9
)

// ─── messages ────────────────────────────────────────────────────────────────

// SnapshotMsg carries a newly published kiosk state.
type SnapshotMsg struct{ Snapshot boothdto.SnapshotOutput }

// ActionDoneMsg reports the result of a visitor action.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// ─── model ───────────────────────────────────────────────────────────────────

type Model struct {
	port     Port
	snap     boothdto.SnapshotOutput
	name     textinput.Model
	email    textinput.Model
	prompt   textinput.Model
	style    textinput.Model
	focus    int
	copies   int
	progress progress.Model
	spinner  spinner.Model
	notice   string
	width    int
	height   int
}

func New(port Port) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	m := Model{
		port:     port,
		name:     newInput("Your name (optional)", 64),
		email:    newInput("Email (optional)", 128),
		prompt:   newInput("Turn me into a pirate captain…", 400),
		style:    newInput("Style, e.g. oil painting (defaults to the prompt)", 400),
		copies:   1,
		progress: progress.New(progress.WithGradient(string(theme.Lavender), string(theme.Sapphire))),
		spinner:  sp,
		snap:     boothdto.SnapshotOutput{Phase: phaseWelcome},
	}
	m.name.Focus()
	return m
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 48
	return ti
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Typing reports whether a text field has focus, so global keys must yield.
func (m Model) Typing() bool {
	return m.snap.Phase == phaseWelcome || m.snap.Phase == phasePromptEntry
}

func (m Model) Snapshot() boothdto.SnapshotOutput { return m.snap }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(20, min(msg.Width-8, 72))
		return m, nil

	case SnapshotMsg:
		return m.applySnapshot(msg.Snapshot), nil

	case ActionDoneMsg:
		if msg.Err != nil {
			m.notice = msg.Action + ": " + msg.Err.Error()
		} else {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m.updateInputs(msg)
}

func (m Model) applySnapshot(snap boothdto.SnapshotOutput) Model {
	prev := m.snap.Phase
	m.snap = snap
	if snap.Phase == prev {
		return m
	}
	m.focus = 0
	m.notice = ""
	switch snap.Phase {
	case phaseWelcome:
		m.name.SetValue("")
		m.email.SetValue("")
		m.prompt.SetValue("")
		m.style.SetValue("")
		m.copies = 1
	case phaseResults:
		if prev == phaseGenerating {
			m.copies = 1
		}
	}
	m.syncFocus()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.String() == "esc" && m.snap.Error != "" {
		return m, m.run("dismiss", func(ctx context.Context) error { return m.port.DismissError(ctx) })
	}
	if m.snap.Busy {
		return m, nil
	}

	switch m.snap.Phase {
	case phaseWelcome:
		switch msg.String() {
		case "tab", "down", "shift+tab", "up":
			m.focus = 1 - m.focus
			m.syncFocus()
			return m, nil
		case "enter":
			name := strings.TrimSpace(m.name.Value())
			email := strings.TrimSpace(m.email.Value())
			return m, m.run("start", func(ctx context.Context) error { return m.port.Start(ctx, name, email) })
		}
		return m.updateInputs(msg)

	case phaseCapture:
		switch msg.String() {
		case "enter", " ":
			return m, m.run("capture", func(ctx context.Context) error { return m.port.Capture(ctx) })
		}

	case phasePromptEntry:
		switch msg.String() {
		case "tab", "down", "shift+tab", "up":
			m.focus = 1 - m.focus
			m.syncFocus()
			return m, nil
		case "ctrl+r":
			return m, m.run("retake", func(ctx context.Context) error { return m.port.Retake(ctx) })
		case "enter":
			prompt := m.prompt.Value()
			style := m.style.Value()
			return m, m.run("generate", func(ctx context.Context) error { return m.port.SubmitPrompt(ctx, prompt, style) })
		}
		return m.updateInputs(msg)

	case phaseResults:
		switch msg.String() {
		case "left", "h":
			return m, m.selectCmd(m.snap.SelectedIndex - 1)
		case "right", "l":
			return m, m.selectCmd(m.snap.SelectedIndex + 1)
		case "+", "=":
			if m.copies < maxCopies {
				m.copies++
			}
		case "-":
			if m.copies > 1 {
				m.copies--
			}
		case "enter", "p":
			copies := m.copies
			return m, m.run("print", func(ctx context.Context) error { return m.port.Print(ctx, copies) })
		case "n":
			return m, m.run("reset", func(ctx context.Context) error { return m.port.Reset(ctx) })
		}

	case phaseComplete:
		if msg.String() == "enter" {
			return m, m.run("reset", func(ctx context.Context) error { return m.port.Reset(ctx) })
		}
	}
	return m, nil
}

func (m Model) selectCmd(index int) tea.Cmd {
	n := len(m.snap.Artifacts)
	if n == 0 {
		return nil
	}
	if index < 0 {
		index = n - 1
	}
	if index >= n {
		index = 0
	}
	return m.run("select", func(ctx context.Context) error { return m.port.Select(ctx, index) })
}

func (m Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	if m.port == nil {
		return nil
	}
	return func() tea.Msg {
		return ActionDoneMsg{Action: action, Err: fn(context.Background())}
	}
}

func (m Model) updateInputs(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.snap.Phase {
	case phaseWelcome:
		if m.focus == 0 {
			m.name, cmd = m.name.Update(msg)
		} else {
			m.email, cmd = m.email.Update(msg)
		}
	case phasePromptEntry:
		if m.focus == 0 {
			m.prompt, cmd = m.prompt.Update(msg)
		} else {
			m.style, cmd = m.style.Update(msg)
		}
	}
	return m, cmd
}

func (m *Model) syncFocus() {
	m.name.Blur()
	m.email.Blur()
	m.prompt.Blur()
	m.style.Blur()
	switch m.snap.Phase {
	case phaseWelcome:
		if m.focus == 0 {
			m.name.Focus()
		} else {
			m.email.Focus()
		}
	case phasePromptEntry:
		if m.focus == 0 {
			m.prompt.Focus()
		} else {
			m.style.Focus()
		}
	}
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(phaseTitle(m.snap.Phase)) + "\n\n")
	sb.WriteString(m.body())

	if m.snap.Error != "" {
		sb.WriteString("\n\n" + theme.Banner.Render(m.snap.Error+"  (esc to dismiss)"))
	} else if m.notice != "" {
		sb.WriteString("\n\n" + theme.Warn.Render(m.notice))
	}
	sb.WriteString("\n\n" + theme.Muted.Render(m.footer()))

	w := m.width
	if w < 40 {
		w = 80
	}
	return lipgloss.Place(w, max(m.height, 1), lipgloss.Center, lipgloss.Center,
		theme.PaneActive.Width(min(w-4, 90)).Render(sb.String()))
}

func (m Model) body() string {
	s := m.snap
	switch s.Phase {
	case phaseWelcome:
		return "Welcome to the photo booth!\n\n" + m.name.View() + "\n" + m.email.View()
	case phaseCapture:
		greeting := "Get ready for your photo."
		if s.VisitorName != "" {
			greeting = fmt.Sprintf("Get ready for your photo, %s.", s.VisitorName)
		}
		if s.Busy {
			return greeting + "\n\n" + m.spinner.View() + " Smile!"
		}
		return greeting
	case phasePromptEntry:
		body := theme.Success.Render("Photo captured.") + "\n\nHow should we transform it?\n\n" + m.prompt.View() + "\n" + m.style.View()
		if s.Busy {
			body += "\n\n" + m.spinner.View() + " Sending your photo…"
		}
		return body
	case phaseGenerating:
		body := fmt.Sprintf("Creating: %q\n\n%s", s.Prompt, m.progress.ViewAs(s.Progress/100))
		if s.Degraded {
			body += "\n\n" + theme.Warn.Render("The image service is unavailable, preparing sample images.")
		}
		return body
	case phaseResults:
		return m.resultsView()
	case phasePrinting:
		detail := s.PrintDetail
		if detail == "" {
			detail = "queued"
		}
		return m.spinner.View() + " Printing… " + theme.Muted.Render(detail)
	case phaseComplete:
		return theme.Success.Render("Your print is ready. Thank you!")
	}
	return s.Phase
}

func (m Model) resultsView() string {
	s := m.snap
	var sb strings.Builder
	if s.Degraded {
		sb.WriteString(theme.Warn.Render("Sample images (generation unavailable)") + "\n\n")
	}
	for i, a := range s.Artifacts {
		marker := "  "
		line := fmt.Sprintf("%d. %s", i+1, a.URL)
		if i == s.SelectedIndex {
			marker = theme.Hot.Render("▸ ")
			line = theme.Hot.Render(line)
		}
		sb.WriteString(marker + line + "\n")
	}
	fmt.Fprintf(&sb, "\nCopies: %d", m.copies)
	if s.PrintDetail != "" {
		sb.WriteString("\n" + theme.Muted.Render("last print: "+s.PrintDetail))
	}
	return sb.String()
}

func (m Model) footer() string {
	var hint string
	switch m.snap.Phase {
	case phaseWelcome:
		hint = "tab: next field  enter: start"
	case phaseCapture:
		hint = "enter: take photo"
	case phasePromptEntry:
		hint = "tab: next field  enter: create  ctrl+r: retake"
	case phaseGenerating:
		hint = "please wait"
	case phaseResults:
		hint = "←/→: choose  +/-: copies  enter: print  n: new visitor"
	case phaseComplete:
		hint = "enter: new visitor"
	}
	if m.snap.IdleSeconds > 0 {
		hint += fmt.Sprintf("  idle %ds", m.snap.IdleSeconds)
	}
	return hint
}

func phaseTitle(phase string) string {
	switch phase {
	case phaseWelcome:
		return "Pixel Booth"
	case phaseCapture:
		return "Say cheese"
	case phasePromptEntry:
		return "Describe your transformation"
	case phaseGenerating:
		return "Generating"
	case phaseResults:
		return "Pick your favourite"
	case phasePrinting:
		return "Printing"
	case phaseComplete:
		return "All done"
	}
	return phase
}
