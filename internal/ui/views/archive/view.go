package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	boothdto "pixelbooth/internal/modules/booth/dto"
	"pixelbooth/internal/ui/theme"
)

const pageSize = 50

// ─── port ────────────────────────────────────────────────────────────────────

type Port interface {
	ListSessions(ctx context.Context, limit int) ([]boothdto.ArchivedSessionOutput, error)
	ShowSession(ctx context.Context, sessionID string) (boothdto.ArchivedSessionOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type SessionsLoadedMsg struct {
	Sessions []boothdto.ArchivedSessionOutput
	Err      error
}

type DetailLoadedMsg struct {
	Session boothdto.ArchivedSessionOutput
	Err     error
}

// ─── list item ───────────────────────────────────────────────────────────────

type sessionItem struct {
	session boothdto.ArchivedSessionOutput
}

func (i sessionItem) Title() string {
	if i.session.VisitorName != "" {
		return i.session.VisitorName
	}
	return i.session.SessionID
}

func (i sessionItem) Description() string {
	return fmt.Sprintf("%s  %s  %d images", i.session.EndedAt.Local().Format("Jan 2 15:04"), i.session.FinalPhase, i.session.ImageCount)
}

func (i sessionItem) FilterValue() string {
	return i.session.VisitorName + " " + i.session.Prompt + " " + i.session.SessionID
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model lists archived sessions for the operator.
type Model struct {
	port     Port
	list     list.Model
	detail   boothdto.ArchivedSessionOutput
	preview  viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	loading  bool
	width    int
	height   int
}

func New(port Port) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Sessions"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().Background(theme.Mantle).Foreground(theme.Text).Padding(1)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	r, _ := glamour.NewTermRenderer(glamour.WithStylePath("dark"), glamour.WithWordWrap(0))

	return Model{
		port:     port,
		list:     l,
		preview:  vp,
		spinner:  sp,
		renderer: r,
		loading:  port != nil,
	}
}

func (m Model) Init() tea.Cmd {
	if m.port == nil {
		return nil
	}
	return tea.Batch(m.loadSessionsCmd(), m.spinner.Tick)
}

// Reload fetches the list again, e.g. after the kiosk archived a session.
func (m *Model) Reload() tea.Cmd {
	if m.port == nil {
		return nil
	}
	m.loading = true
	return tea.Batch(m.loadSessionsCmd(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case SessionsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.list.Title = "Sessions: " + msg.Err.Error()
			return m, nil
		}
		m.list.Title = "Sessions"
		items := make([]list.Item, len(msg.Sessions))
		for i, s := range msg.Sessions {
			items[i] = sessionItem{session: s}
		}
		cmds = append(cmds, m.list.SetItems(items))
		if len(msg.Sessions) > 0 {
			cmds = append(cmds, m.loadDetailCmd(msg.Sessions[0].SessionID))
		} else {
			m.detail = boothdto.ArchivedSessionOutput{}
			m.preview.SetContent(m.renderDetail())
		}

	case DetailLoadedMsg:
		if msg.Err != nil {
			m.preview.SetContent(theme.Hot.Render("Error: " + msg.Err.Error()))
		} else {
			m.detail = msg.Session
			m.preview.SetContent(m.renderDetail())
			m.preview.GotoTop()
		}

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if !m.loading {
		var lCmd tea.Cmd
		prevIdx := m.list.Index()
		m.list, lCmd = m.list.Update(msg)
		cmds = append(cmds, lCmd)
		if m.list.Index() != prevIdx {
			if id, ok := m.SelectedSessionID(); ok {
				cmds = append(cmds, m.loadDetailCmd(id))
			}
		}

		var vCmd tea.Cmd
		m.preview, vCmd = m.preview.Update(msg)
		cmds = append(cmds, vCmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.port == nil {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			theme.Muted.Render("Session archive is not configured"))
	}
	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading sessions…")
	}

	listW := m.width * 4 / 10
	detailW := m.width - listW

	listPane := lipgloss.NewStyle().Width(listW).Height(m.height).Render(m.list.View())
	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Surface1).
		Background(theme.Mantle).
		Width(max(detailW-2, 1)).
		Height(max(m.height-2, 1)).
		Render(m.preview.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

func (m Model) SelectedSessionID() (string, bool) {
	if item, ok := m.list.SelectedItem().(sessionItem); ok {
		return item.session.SessionID, true
	}
	return "", false
}

// Filtering reports whether the list's search filter is open.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m *Model) resize() {
	listW := m.width * 4 / 10
	detailW := m.width - listW
	m.list.SetSize(listW, m.height)
	m.preview.Width = max(detailW-4, 1)
	m.preview.Height = max(m.height-4, 1)
	if r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(m.preview.Width),
	); err == nil {
		m.renderer = r
	}
	if m.detail.SessionID != "" {
		m.preview.SetContent(m.renderDetail())
	}
}

func (m Model) renderDetail() string {
	if m.detail.SessionID == "" {
		return theme.Muted.Render("No archived sessions yet")
	}
	md := detailMarkdown(m.detail)
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(md); err == nil {
			return rendered
		}
	}
	return md
}

func detailMarkdown(s boothdto.ArchivedSessionOutput) string {
	var sb strings.Builder
	title := s.SessionID
	if s.VisitorName != "" {
		title = s.VisitorName
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "- session: `%s`\n", s.SessionID)
	if s.VisitorEmail != "" {
		fmt.Fprintf(&sb, "- email: %s\n", s.VisitorEmail)
	}
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "- duration: %s\n", s.EndedAt.Sub(s.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(&sb, "- ended: %s (%s)\n", s.EndedAt.Local().Format(time.DateTime), s.FinalPhase)
	if s.PrintJobID != "" {
		fmt.Fprintf(&sb, "- print job: `%s`\n", s.PrintJobID)
	}
	if s.Degraded {
		sb.WriteString("- placeholder images\n")
	}
	if s.Prompt != "" {
		fmt.Fprintf(&sb, "\n## Prompt\n\n%s\n", s.Prompt)
		if s.StylePrompt != "" && s.StylePrompt != s.Prompt {
			fmt.Fprintf(&sb, "\n_Style:_ %s\n", s.StylePrompt)
		}
	}
	if len(s.Artifacts) > 0 {
		sb.WriteString("\n## Images\n\n")
		for i, a := range s.Artifacts {
			mark := ""
			if i == s.Selected {
				mark = " **(selected)**"
			}
			fmt.Fprintf(&sb, "%d. %s%s\n", i+1, a.URL, mark)
		}
	}
	if s.NotePath != "" {
		fmt.Fprintf(&sb, "\n---\n\nnote: `%s`\n", s.NotePath)
	}
	return sb.String()
}

func (m Model) loadSessionsCmd() tea.Cmd {
	return func() tea.Msg {
		sessions, err := m.port.ListSessions(context.Background(), pageSize)
		return SessionsLoadedMsg{Sessions: sessions, Err: err}
	}
}

func (m Model) loadDetailCmd(id string) tea.Cmd {
	return func() tea.Msg {
		session, err := m.port.ShowSession(context.Background(), id)
		return DetailLoadedMsg{Session: session, Err: err}
	}
}
