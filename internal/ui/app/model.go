package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	boothdto "pixelbooth/internal/modules/booth/dto"
	"pixelbooth/internal/ui/components"
	"pixelbooth/internal/ui/theme"
	archiveview "pixelbooth/internal/ui/views/archive"
	boothview "pixelbooth/internal/ui/views/booth"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type kioskPort interface {
	boothview.Port
	Snapshot(ctx context.Context) (boothdto.SnapshotOutput, error)
	Subscribe(ctx context.Context) <-chan boothdto.SnapshotOutput
}

type archivePort interface {
	archiveview.Port
	Reindex(ctx context.Context) (int, error)
}

// ─── tab index ───────────────────────────────────────────────────────────────

type tabID int

const (
	tabBooth tabID = iota
	tabArchive
	tabCount
)

var tabLabels = [tabCount]string{"Booth", "Archive"}

// hints must stay in sync with the switch in executePalette.
var paletteHints = []string{
	"reset",
	"dismiss",
	"print <copies>",
	"archive:reload",
	"archive:reindex",
	"quit",
}

// ─── async messages ───────────────────────────────────────────────────────────

type snapshotMsg struct {
	snap boothdto.SnapshotOutput
	ok   bool
}

type operatorDoneMsg struct {
	action string
	detail string
	err    error
}

type archiveRefreshMsg struct{}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Tab      key.Binding
	Help     key.Binding
	Operator key.Binding
	Quit     key.Binding
	Enter    key.Binding
	Choose   key.Binding
	Copies   key.Binding
	Dismiss  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Operator: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "operator")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Choose:   key.NewBinding(key.WithKeys("left", "right"), key.WithHelp("←/→", "choose image")),
		Copies:   key.NewBinding(key.WithKeys("+", "-"), key.WithHelp("+/-", "copies")),
		Dismiss:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss error")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Help, k.Operator, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Enter, k.Choose, k.Copies, k.Dismiss},
		{k.Tab, k.Help, k.Operator, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root kiosk screen. The visitor flow lives on the Booth tab; the
// Archive tab and the operator palette are for staff.
type Model struct {
	kiosk   kioskPort
	archive archivePort
	updates <-chan boothdto.SnapshotOutput

	boothView   boothview.Model
	archiveView archiveview.Model

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	status    string
	width     int
	height    int
}

// NewModel subscribes to kiosk updates for the lifetime of ctx.
func NewModel(ctx context.Context, kiosk kioskPort, archive archivePort) Model {
	return Model{
		kiosk:       kiosk,
		archive:     archive,
		updates:     kiosk.Subscribe(ctx),
		boothView:   boothview.New(kiosk),
		archiveView: archiveview.New(archive),
		activeTab:   tabBooth,
		keys:        defaultKeys(),
		help:        help.New(),
		palette:     components.NewPalette(paletteHints),
		status:      "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.boothView.Init(),
		m.archiveView.Init(),
		m.waitForSnapshot(),
	)
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.palette.Visible() {
		if k, ok := msg.(tea.KeyMsg); !ok || k.String() != "ctrl+c" {
			var cmd tea.Cmd
			m.palette, cmd = m.palette.Update(msg)
			if ok {
				return m, cmd
			}
			cmds = append(cmds, cmd)
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.propagateSize()
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		if !msg.ok {
			m.status = "kiosk stopped"
			return m, tea.Batch(cmds...)
		}
		prev := m.boothView.Snapshot().Phase
		var cmd tea.Cmd
		m.boothView, cmd = m.boothView.Update(boothview.SnapshotMsg{Snapshot: msg.snap})
		cmds = append(cmds, cmd, m.waitForSnapshot())
		if msg.snap.Phase == "welcome" && prev != "welcome" {
			cmds = append(cmds, tea.Tick(time.Second, func(time.Time) tea.Msg { return archiveRefreshMsg{} }))
		}
		return m, tea.Batch(cmds...)

	case archiveRefreshMsg:
		return m, m.archiveView.Reload()

	case operatorDoneMsg:
		if msg.err != nil {
			m.status = msg.action + " failed: " + msg.err.Error()
		} else {
			m.status = msg.action + " " + msg.detail
		}
		if msg.action == "archive:reindex" && msg.err == nil {
			return m, m.archiveView.Reload()
		}
		return m, nil

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case boothview.ActionDoneMsg:
		var cmd tea.Cmd
		m.boothView, cmd = m.boothView.Update(msg)
		return m, cmd

	case archiveview.SessionsLoadedMsg, archiveview.DetailLoadedMsg:
		var cmd tea.Cmd
		m.archiveView, cmd = m.archiveView.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if msg.String() == "ctrl+o" {
			return m, m.palette.Open()
		}
		if !m.yieldKeys() {
			switch msg.String() {
			case "tab":
				m.activeTab = (m.activeTab + 1) % tabCount
				return m, nil
			case "shift+tab":
				m.activeTab = (m.activeTab + tabCount - 1) % tabCount
				return m, nil
			case "?":
				m.showHelp = true
				return m, nil
			}
		}
	}

	// Everything else belongs to the active tab. Ticks go to both so spinners
	// keep running in the background.
	var tabCmd tea.Cmd
	switch m.activeTab {
	case tabBooth:
		m.boothView, tabCmd = m.boothView.Update(msg)
		if _, isKey := msg.(tea.KeyMsg); !isKey {
			var other tea.Cmd
			m.archiveView, other = m.archiveView.Update(msg)
			cmds = append(cmds, other)
		}
	case tabArchive:
		m.archiveView, tabCmd = m.archiveView.Update(msg)
		if _, isKey := msg.(tea.KeyMsg); !isKey {
			var other tea.Cmd
			m.boothView, other = m.boothView.Update(msg)
			cmds = append(cmds, other)
		}
	}
	cmds = append(cmds, tabCmd)
	return m, tea.Batch(cmds...)
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := max(m.height-lipgloss.Height(tabBar)-lipgloss.Height(statusBar), 1)

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center, m.palette.View())
	case m.activeTab == tabArchive:
		content = m.archiveView.View()
	default:
		content = m.boothView.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(" " + tabLabels[i] + " ")
		} else {
			parts[i] = theme.Muted.Render(" " + tabLabels[i] + " ")
		}
	}
	bar := "pixelbooth  " + strings.Join(parts, theme.Muted.Render(" │ "))
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	snap := m.boothView.Snapshot()
	left := m.status
	if snap.SessionID != "" {
		left = theme.Hot.Render("● "+snap.Phase) + "  " + left
	}
	right := theme.Muted.Render("?:help  tab:switch  ctrl+o:operator  ctrl+c:quit")
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── operator palette ─────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	switch parts[0] {
	case "reset":
		return m, m.operatorCmd("reset", func(ctx context.Context) (string, error) {
			return "done", m.kiosk.Reset(ctx)
		})
	case "dismiss":
		return m, m.operatorCmd("dismiss", func(ctx context.Context) (string, error) {
			return "done", m.kiosk.DismissError(ctx)
		})
	case "print":
		copies := 1
		if len(parts) >= 2 {
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				m.status = "usage: print <copies>"
				return m, nil
			}
			copies = n
		}
		return m, m.operatorCmd("print", func(ctx context.Context) (string, error) {
			return fmt.Sprintf("%d copies requested", copies), m.kiosk.Print(ctx, copies)
		})
	case "archive:reload":
		m.activeTab = tabArchive
		return m, m.archiveView.Reload()
	case "archive:reindex":
		if m.archive == nil {
			m.status = "session archive is not configured"
			return m, nil
		}
		return m, m.operatorCmd("archive:reindex", func(ctx context.Context) (string, error) {
			n, err := m.archive.Reindex(ctx)
			return fmt.Sprintf("%d sessions indexed", n), err
		})
	case "quit":
		return m, tea.Quit
	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// yieldKeys reports whether the active tab is taking free text, in which case
// global bindings other than ctrl+c and ctrl+o must not fire.
func (m Model) yieldKeys() bool {
	switch m.activeTab {
	case tabBooth:
		return m.boothView.Typing()
	case tabArchive:
		return m.archiveView.Filtering()
	}
	return false
}

func (m *Model) propagateSize() {
	sz := tea.WindowSizeMsg{Width: m.width, Height: max(m.height-3, 1)}
	m.boothView, _ = m.boothView.Update(sz)
	m.archiveView, _ = m.archiveView.Update(sz)
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) waitForSnapshot() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		return snapshotMsg{snap: snap, ok: ok}
	}
}

func (m Model) operatorCmd(action string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		detail, err := fn(context.Background())
		return operatorDoneMsg{action: action, detail: detail, err: err}
	}
}
