package app

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"serial-plotter.klederson.com/internal/config"
	"serial-plotter.klederson.com/internal/session"
	"serial-plotter.klederson.com/internal/transport"
	"serial-plotter.klederson.com/internal/ui"
)

type view int

const (
	viewGraph view = iota
	viewTerminal
	viewConfig
)

var viewNames = []string{"Graph", "Terminal", "Config"}

// shared holds state shared between the Bubble Tea model copies and main.go.
// Because Bubble Tea uses value receivers, pointer fields ensure all copies
// see the same underlying data.
type shared struct {
	inst    *Instance
	termSeq int
}

// AppModel is the root Bubble Tea model for a single plotter.
type AppModel struct {
	width  int
	height int

	view     view
	command  textinput.Model
	address  textinput.Model
	terminal viewport.Model
	ready    bool

	shared *shared
}

// New creates a plotter for cfg. Messages produced while loading the config
// (warnings, missing keys) are shown in the terminal view.
func New(cfg config.Config, dialer transport.Dialer, log zerolog.Logger, notes []string, opts ...session.Option) AppModel {
	inst := NewInstance(0, cfg, dialer, log, opts...)
	for _, n := range notes {
		inst.Session().Terminal().Notef("%s", n)
	}

	cmd := textinput.New()
	cmd.Prompt = "Send Command: "
	cmd.Placeholder = "h"
	cmd.SetValue("h")

	addr := textinput.New()
	addr.Prompt = "Address: "
	addr.Placeholder = "COM3, /dev/ttyUSB0 or Address AA:BB:CC:DD:EE:FF"
	addr.SetValue(cfg.Com)

	return AppModel{
		command: cmd,
		address: addr,
		shared:  &shared{inst: inst, termSeq: -1},
	}
}

// Attach connects transport events to the running program. Must be called
// before p.Run().
func (m *AppModel) Attach(p *tea.Program) {
	m.shared.inst.Attach(p)
}

// Close releases the transport and CSV log. Safe to call more than once.
func (m AppModel) Close() error {
	return m.shared.inst.Close()
}

func (m AppModel) Init() tea.Cmd {
	return tickCmd(m.refresh())
}

func (m AppModel) refresh() time.Duration {
	return time.Duration(m.shared.inst.Session().Config().Refresh) * time.Millisecond
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.shared.inst.Handle(msg) {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeTerminal()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		m.shared.inst.Refresh()
		m.syncTerminal()
		return m, tickCmd(m.refresh())
	}

	return m, nil
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	inst := m.shared.inst

	if m.command.Focused() || m.address.Focused() {
		switch msg.Type {
		case tea.KeyCtrlC:
			_ = inst.Close()
			return m, tea.Quit
		case tea.KeyEsc:
			m.command.Blur()
			m.address.Blur()
			return m, nil
		case tea.KeyEnter:
			if m.command.Focused() {
				_ = inst.Session().Send(m.command.Value())
				m.syncTerminal()
				return m, nil
			}
			m.address.Blur()
			return m, inst.ToggleConnect(m.address.Value())
		}

		var cmd tea.Cmd
		if m.command.Focused() {
			m.command, cmd = m.command.Update(msg)
		} else {
			m.address, cmd = m.address.Update(msg)
		}
		return m, cmd
	}

	switch msg.String() {
	case "q", "Q", "ctrl+c":
		_ = inst.Close()
		return m, tea.Quit

	case "c", "C":
		return m, inst.ToggleConnect(m.address.Value())

	case "w", "W":
		_ = inst.Session().ToggleLog()

	case "r", "R":
		inst.Session().Restart()

	case "v", "V":
		ctrl := inst.Session().Controller()
		ctrl.SetRaw(!ctrl.Raw())

	case "x", "X":
		inst.Session().Terminal().Clear()

	case "tab":
		m.view = (m.view + 1) % view(len(viewNames))

	case "shift+tab":
		m.view = (m.view + view(len(viewNames)) - 1) % view(len(viewNames))

	case "i", "I":
		m.view = viewTerminal
		cmd := m.command.Focus()
		return m, cmd

	case "a", "A":
		cmd := m.address.Focus()
		return m, cmd

	default:
		if m.view == viewTerminal {
			var cmd tea.Cmd
			m.terminal, cmd = m.terminal.Update(msg)
			return m, cmd
		}
	}

	m.syncTerminal()
	return m, nil
}

// bodyHeight is the space left for the active view.
func (m AppModel) bodyHeight() int {
	// menu, tabs, input line, status
	h := m.height - 4
	if h < 5 {
		h = 5
	}
	return h
}

func (m *AppModel) resizeTerminal() {
	w := max(m.width-4, 10)
	h := max(m.bodyHeight()-2, 3)
	if !m.ready {
		m.terminal = viewport.New(w, h)
		m.ready = true
	} else {
		m.terminal.Width = w
		m.terminal.Height = h
	}
	m.command.Width = max(m.width-20, 10)
	m.address.Width = max(m.width-20, 10)
	m.shared.termSeq = -1
	m.syncTerminal()
}

// syncTerminal copies new scrollback into the viewport, following the tail
// when the view was already at the bottom.
func (m *AppModel) syncTerminal() {
	if !m.ready {
		return
	}
	term := m.shared.inst.Session().Terminal()
	if term.Seq() == m.shared.termSeq {
		return
	}
	follow := m.terminal.AtBottom() || m.shared.termSeq < 0
	m.shared.termSeq = term.Seq()
	m.terminal.SetContent(ui.StyleTerminal.Render(term.String()))
	if follow {
		m.terminal.GotoBottom()
	}
}

func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing serial plotter..."
	}

	inst := m.shared.inst
	cfg := inst.Session().Config()
	st := inst.Status()

	menuBar := ui.RenderMenuBar(m.width, cfg.Title, ui.PlotterKeys, ui.RenderState(st.State))
	tabs := m.renderTabs()

	bodyH := m.bodyHeight()
	var body string
	switch m.view {
	case viewTerminal:
		body = ui.RenderPanel(m.width, bodyH, "", m.terminal.View(), m.command.Focused(), nil)
	case viewConfig:
		body = ui.RenderPanel(m.width, bodyH, "Config", cfg.JSON(), false, nil)
	default:
		graph := inst.RenderGraph(m.width-4, bodyH-2)
		body = ui.RenderPanel(m.width, bodyH, "", graph, false, inst.FrameColor())
	}

	input := m.address.View()
	if m.view == viewTerminal || m.command.Focused() {
		input = m.command.View()
	}

	statusBar := ui.RenderStatusBar(m.width, st)
	return ui.ComposeLayout(menuBar, lipgloss.JoinVertical(lipgloss.Left, tabs, body, input), statusBar)
}

func (m AppModel) renderTabs() string {
	var tabs []string
	for i, name := range viewNames {
		if view(i) == m.view {
			tabs = append(tabs, ui.StyleTabActive.Render(name))
		} else {
			tabs = append(tabs, ui.StyleTabInactive.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
