// Package launcher runs up to four plotter instances tiled in one terminal
// and applies connect, CSV and restart actions to all of them at once.
package launcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"serial-plotter.klederson.com/internal/app"
	"serial-plotter.klederson.com/internal/config"
	"serial-plotter.klederson.com/internal/session"
	"serial-plotter.klederson.com/internal/transport"
	"serial-plotter.klederson.com/internal/ui"
)

const defaultRefresh = 40 * time.Millisecond

// DialerFor builds the dialer for one instance's configuration.
type DialerFor func(cfg config.Config) transport.Dialer

type shared struct {
	instances []*app.Instance
	slots     []int // slot index per instance
	nextID    int   // instance IDs are never reused
	program   app.Sender
	last      string
}

// Model is the launcher's Bubble Tea model.
type Model struct {
	width  int
	height int

	slots   []textinput.Model
	editing int // slot being edited, -1 for none

	dialer DialerFor
	log    zerolog.Logger
	opts   []session.Option
	runner func(func())

	shared *shared
}

// New creates a launcher with slots prefilled from paths (at most
// config.MaxInstances are used).
func New(paths []string, dialer DialerFor, log zerolog.Logger, opts ...session.Option) Model {
	slots := make([]textinput.Model, config.MaxInstances)
	for i := range slots {
		ti := textinput.New()
		ti.Prompt = fmt.Sprintf("Config %d: ", i+1)
		ti.Placeholder = "path/to/config.json"
		if i < len(paths) {
			ti.SetValue(paths[i])
		}
		slots[i] = ti
	}
	return Model{
		slots:   slots,
		editing: -1,
		dialer:  dialer,
		log:     log,
		opts:    opts,
		shared:  &shared{},
	}
}

// Attach sets the program that transport events are sent to. Must be
// called before p.Run().
func (m *Model) Attach(p app.Sender) {
	m.shared.program = p
	for _, inst := range m.shared.instances {
		inst.Attach(p)
	}
}

// Instances returns the running instances in slot order.
func (m Model) Instances() []*app.Instance {
	return m.shared.instances
}

// Slots returns the slot index of each running instance.
func (m Model) Slots() []int {
	return m.shared.slots
}

// Close closes every instance's link and CSV log inline, for shutdown.
func (m Model) Close() error {
	m.closeAll()
	return nil
}

func (m Model) note(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	m.shared.last = msg
	m.log.Info().Msg(msg)
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.refresh())
}

// refresh is the smallest refresh interval of the running instances.
func (m Model) refresh() time.Duration {
	every := time.Duration(0)
	for _, inst := range m.shared.instances {
		d := time.Duration(inst.Session().Config().Refresh) * time.Millisecond
		if d > 0 && (every == 0 || d < every) {
			every = d
		}
	}
	if every == 0 {
		every = defaultRefresh
	}
	return every
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	for _, inst := range m.shared.instances {
		if inst.Handle(msg) {
			return m, nil
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.slots {
			m.slots[i].Width = max(m.width-20, 10)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case app.ConnectedMsg:
		// instance stopped while dialing
		if link := msg.Link; link != nil {
			return m, func() tea.Msg {
				_ = link.Close()
				return nil
			}
		}
		return m, nil

	case app.TickMsg:
		for _, inst := range m.shared.instances {
			inst.Refresh()
		}
		return m, tickCmd(m.refresh())
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing >= 0 {
		switch msg.Type {
		case tea.KeyCtrlC:
			m.closeAll()
			return m, tea.Quit
		case tea.KeyEnter, tea.KeyEsc:
			m.slots[m.editing].Blur()
			m.editing = -1
			return m, nil
		}
		var cmd tea.Cmd
		m.slots[m.editing], cmd = m.slots[m.editing].Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "Q", "ctrl+c":
		m.closeAll()
		return m, tea.Quit

	case "1", "2", "3", "4":
		m.editing = int(msg.Runes[0] - '1')
		cmd := m.slots[m.editing].Focus()
		return m, cmd

	case "s", "S":
		m.startAll()

	case "x", "X":
		m.stopAll()

	case "c", "C":
		return m, m.connectAll()

	case "w", "W":
		m.toggleCSVAll()

	case "r", "R":
		for _, inst := range m.shared.instances {
			inst.Session().Restart()
		}
		m.note("Restarted %d instance(s) at index 0", len(m.shared.instances))
	}
	return m, nil
}

// startAll creates an instance for every non-empty slot. Slots whose
// configuration does not validate are skipped.
func (m Model) startAll() {
	if len(m.shared.instances) > 0 {
		m.note("Instances already running, stop them first")
		return
	}

	for i, slot := range m.slots {
		path := strings.TrimSpace(slot.Value())
		if path == "" {
			continue
		}
		cfg, missing, loadErr := config.Resolve(path, config.Overrides{})
		if err := cfg.Validate(); err != nil {
			m.note("Config %d: %v", i+1, err)
			continue
		}

		id := m.shared.nextID
		m.shared.nextID++
		inst := app.NewInstance(id, cfg, m.dialer(cfg), m.log.With().Int("slot", i+1).Logger(), m.opts...)
		if m.runner != nil {
			inst.SetRunner(m.runner)
		}
		term := inst.Session().Terminal()
		if loadErr != nil {
			term.Notef("Using default configuration: %v", loadErr)
		}
		if len(missing) > 0 {
			term.Notef("Missing keys in %s: %s", path, strings.Join(missing, ", "))
		}
		if m.shared.program != nil {
			inst.Attach(m.shared.program)
		}
		m.shared.instances = append(m.shared.instances, inst)
		m.shared.slots = append(m.shared.slots, i)
	}
	m.note("Started %d instance(s)", len(m.shared.instances))
}

// stopAll drops every instance. Their links close off the update loop;
// results addressed to the dropped IDs are ignored.
func (m Model) stopAll() {
	for _, inst := range m.shared.instances {
		inst.Stop()
	}
	if n := len(m.shared.instances); n > 0 {
		m.note("Stopped %d instance(s)", n)
	}
	m.shared.instances = nil
	m.shared.slots = nil
}

func (m Model) closeAll() {
	for _, inst := range m.shared.instances {
		_ = inst.Close()
	}
	m.shared.instances = nil
	m.shared.slots = nil
}

// connectAll toggles every instance's connection to its configured port.
func (m Model) connectAll() tea.Cmd {
	var cmds []tea.Cmd
	for _, inst := range m.shared.instances {
		if cmd := inst.ToggleConnect(inst.Session().Config().Com); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// toggleCSVAll starts logging on every instance unless all of them are
// already logging, in which case it stops all. Every file is opened in
// this one update so the logs share a start time.
func (m Model) toggleCSVAll() {
	insts := m.shared.instances
	if len(insts) == 0 {
		return
	}

	allLogging := true
	for _, inst := range insts {
		if !inst.Session().Controller().Logging() {
			allLogging = false
			break
		}
	}

	for i, inst := range insts {
		var err error
		if allLogging {
			err = inst.Session().StopLog()
		} else {
			err = inst.Session().StartLog()
		}
		if err != nil {
			m.note("Instance %d: %v", m.shared.slots[i]+1, err)
		}
	}
	if allLogging {
		m.note("Stopped CSV on all instances")
	} else {
		m.note("Writing CSV on all instances")
	}
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing launcher..."
	}

	insts := m.shared.instances
	right := fmt.Sprintf("%d/%d running", len(insts), config.MaxInstances)
	menuBar := ui.RenderMenuBar(m.width, "Launcher", ui.LauncherKeys, right)

	var inputs []string
	if len(insts) == 0 || m.editing >= 0 {
		for _, s := range m.slots {
			inputs = append(inputs, s.View())
		}
	}

	bodyH := max(m.height-2-len(inputs), 3)
	var body string
	if len(insts) == 0 {
		body = ui.RenderPanel(m.width, bodyH, "", ui.StyleHelp.Render("Press 1-4 to edit a slot, S to start all"), false, nil)
	} else {
		rects := ui.Tile(ui.Rect{W: m.width, H: bodyH}, len(insts))
		panes := make([]string, len(rects))
		for i, r := range rects {
			panes[i] = renderPane(insts[i], m.shared.slots[i], r)
		}
		body = ui.ComposeTiles(rects, panes)
	}
	if len(inputs) > 0 {
		body = lipgloss.JoinVertical(lipgloss.Left, append(inputs, body)...)
	}

	statusBar := ui.StyleStatusBar.Width(m.width).Render(m.shared.last)
	return ui.ComposeLayout(menuBar, body, statusBar)
}

// renderPane draws one instance: its charts and a one line status.
func renderPane(inst *app.Instance, slot int, r ui.Rect) string {
	st := inst.Status()
	cfg := inst.Session().Config()

	line := ui.RenderState(st.State) + ui.StyleMenuLabel.Render(fmt.Sprintf(" %s idx %d/%d", st.Address, st.Cursor, st.Samples))
	if st.CSVPath != "" {
		line += " " + ui.StyleRecording.Render("● REC")
	}

	graph := inst.RenderGraph(max(r.W-2, 1), max(r.H-4, 1))
	title := fmt.Sprintf("%d: %s", slot+1, cfg.Title)
	return ui.RenderPanel(r.W, r.H, title, graph+"\n"+line, false, inst.FrameColor())
}

func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return app.TickMsg(t)
	})
}
