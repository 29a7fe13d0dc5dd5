package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServiceState is the dashboard's view of one supervised service.
type ServiceState string

const (
	StateStarting ServiceState = "starting"
	StateRunning  ServiceState = "running"
	StateStopped  ServiceState = "stopped"
	StateFailed   ServiceState = "failed"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	borderStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

type serviceRow struct {
	name  string
	port  int
	state ServiceState
}

type logMsg string

type stateMsg struct {
	name  string
	state ServiceState
}

type quitMsg struct{}

// Dashboard drives the optional TUI: a status header for the two services
// and the proxy, plus a scrolling log tail fed by the label writers.
type Dashboard struct {
	mu      sync.Mutex
	program *tea.Program
	model   *dashboardModel
}

// NewDashboard builds a dashboard for the given services. onQuit runs when
// the operator quits from inside the TUI and is expected to shut the
// supervisor down.
func NewDashboard(proxyAddr string, services []string, ports []int, onQuit func()) *Dashboard {
	rows := make([]serviceRow, len(services))
	for i, name := range services {
		rows[i] = serviceRow{name: name, port: ports[i], state: StateStarting}
	}
	model := &dashboardModel{
		proxyAddr: proxyAddr,
		services:  rows,
		logs:      NewLogBuffer(500),
		onQuit:    onQuit,
	}
	return &Dashboard{model: model}
}

// Run blocks until the TUI exits. Status lines are routed into the log tail
// for the duration.
func (d *Dashboard) Run() error {
	d.mu.Lock()
	d.program = tea.NewProgram(d.model, tea.WithAltScreen())
	d.mu.Unlock()

	SetSink(d.Append)
	defer SetSink(nil)

	_, err := d.program.Run()
	return err
}

// Append adds a log line to the tail.
func (d *Dashboard) Append(line string) {
	d.model.logs.Append(line)
	d.send(logMsg(line))
}

// SetState updates a service row. Before Run the model is written directly,
// so transitions that happen during startup are not lost.
func (d *Dashboard) SetState(name string, state ServiceState) {
	d.mu.Lock()
	if d.program == nil {
		for i := range d.model.services {
			if d.model.services[i].name == name {
				d.model.services[i].state = state
			}
		}
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	d.send(stateMsg{name: name, state: state})
}

// Quit tears the TUI down without going through the key handler.
func (d *Dashboard) Quit() {
	d.send(quitMsg{})
}

func (d *Dashboard) send(msg tea.Msg) {
	d.mu.Lock()
	p := d.program
	d.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type dashboardModel struct {
	proxyAddr string
	services  []serviceRow
	logs      *LogBuffer
	viewport  viewport.Model
	ready     bool
	width     int
	onQuit    func()
}

func (m *dashboardModel) Init() tea.Cmd {
	return nil
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.onQuit != nil {
				go m.onQuit()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		headerHeight := 5
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - 2
		}
		m.refreshLogs()

	case logMsg:
		m.refreshLogs()

	case stateMsg:
		for i := range m.services {
			if m.services[i].name == msg.name {
				m.services[i].state = msg.state
			}
		}

	case quitMsg:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *dashboardModel) refreshLogs() {
	if !m.ready {
		return
	}
	lines := m.logs.Last(500)
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m *dashboardModel) View() string {
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("devmux"))
	b.WriteString(faintStyle.Render("  proxy " + m.proxyAddr))
	b.WriteString("\n")

	for _, svc := range m.services {
		style := faintStyle
		switch svc.state {
		case StateRunning:
			style = runningStyle
		case StateFailed:
			style = failedStyle
		}
		b.WriteString(fmt.Sprintf("  %s %s :%d\n",
			style.Render("●"), svc.name, svc.port))
	}

	b.WriteString(faintStyle.Render("  q to quit") + "\n")
	b.WriteString(borderStyle.Width(m.width - 2).Render(m.viewport.View()))
	return b.String()
}
