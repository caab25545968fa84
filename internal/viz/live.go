package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/kmcsim/internal/experiment"
	"github.com/san-kum/kmcsim/internal/sim"
)

const (
	historyCapacity = 600
	sparkWidth      = 24
	tickRate        = time.Second / 30
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model drives a solver from the terminal, advancing it by dt of simulated
// time per tick until end.
type Model struct {
	solver   *sim.Solver
	name     string
	columns  []string
	history  [][]float64
	times    []float64
	dt, end  float64
	selected int
	running  bool
	showHelp bool
	err      error
}

func NewModel(s *sim.Solver, name string, dt, end float64) Model {
	m := Model{
		solver:  s,
		name:    name,
		columns: experiment.Columns(s),
		dt:      dt,
		end:     end,
		running: true,
	}
	m.history = make([][]float64, len(m.columns))
	m.record()
	return m
}

func (m Model) Init() tea.Cmd { return tick() }

// Update handles input events and advances the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "tab", "down", "j":
			m.cycle(1)
		case "shift+tab", "up", "k":
			m.cycle(-1)
		case "+", "=":
			m.dt *= 2
		case "-", "_":
			m.dt /= 2
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && !m.Done() {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) cycle(dir int) {
	if n := len(m.columns); n > 0 {
		m.selected = (m.selected + dir + n) % n
	}
}

// Done reports whether the end time was reached or the solver failed.
func (m Model) Done() bool {
	return m.err != nil || m.solver.Time() >= m.end
}

// Err is the error that stopped the solver, if any.
func (m Model) Err() error { return m.err }

func (m *Model) step() {
	next := min(m.solver.Time()+m.dt, m.end)
	if err := m.solver.Run(next); err != nil {
		m.err = err
		return
	}
	m.record()
}

func (m *Model) record() {
	row := experiment.Snapshot(m.solver)
	for i, v := range row {
		m.history[i] = append(m.history[i], v)
		if len(m.history[i]) > historyCapacity {
			m.history[i] = m.history[i][1:]
		}
	}
	m.times = append(m.times, m.solver.Time())
	if len(m.times) > historyCapacity {
		m.times = m.times[1:]
	}
}

// reset restores the initial conditions.
func (m *Model) reset() {
	if err := m.solver.Reset(); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.times = m.times[:0]
	for i := range m.history {
		m.history[i] = m.history[i][:0]
	}
	m.record()
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return "ERROR"
	case m.Done():
		return "DONE"
	case !m.running:
		return "PAUSED"
	}
	return "RUNNING"
}

// View renders the TUI interface.
func (m Model) View() string {
	if m.showHelp {
		return panelStyle().Render(helpText)
	}

	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(m.name)) + "\n")
	st := m.status()
	s.WriteString(statusStyle(st).Render(st) + "\n\n")
	if m.err != nil {
		s.WriteString(fg(CurrentTheme.Low).Render(m.err.Error()) + "\n\n")
	}

	t := m.solver.Time()
	s.WriteString(labelStyle().Render("Time") + valueStyle().Render(fmt.Sprintf("%.4g / %g s", t, m.end)) + "\n")
	s.WriteString(labelStyle().Render("Progress") + ProgressBar(t/m.end, 20) + "\n")
	s.WriteString(labelStyle().Render("Events") + valueStyle().Render(fmt.Sprintf("%d", m.solver.NSteps())) + "\n")
	s.WriteString(labelStyle().Render("Propensity") + valueStyle().Render(fmt.Sprintf("%.4g /s", m.solver.A0())) + "\n")
	s.WriteString(labelStyle().Render("Step") + valueStyle().Render(fmt.Sprintf("%g s", m.dt)) + "\n\n")

	for i, col := range m.columns {
		h := m.history[i]
		line := fmt.Sprintf("%-14s %8.0f ", col, h[len(h)-1])
		if i == m.selected {
			s.WriteString(selectedStyle().Render("> "+line) + Sparkline(h, sparkWidth) + "\n")
		} else {
			s.WriteString("  " + valueStyle().Render(line) + Sparkline(h, sparkWidth) + "\n")
		}
	}
	stats := panelStyle().Render(s.String())

	chart := ""
	if len(m.columns) == 0 {
		chart = "no species"
	} else if h := m.history[m.selected]; len(h) > 1 {
		chart = asciigraph.Plot(h,
			asciigraph.Height(12),
			asciigraph.Width(60),
			asciigraph.Caption(m.columns[m.selected]))
	}
	graph := panelStyle().Render(chart)

	footer := helpStyle().Render("SP:Pause R:Reset Tab:Species +/-:Step T:Theme ?:Help Q:Quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, stats, graph),
		footer)
}

const helpText = `KEYBOARD SHORTCUTS

  Space      Pause/Resume simulation
  R          Reset to initial conditions
  Tab/J      Next species
  Shift+Tab/K Previous species
  + / -      Double or halve the time step
  T          Cycle themes
  ?          Toggle this help
  Q          Quit`
