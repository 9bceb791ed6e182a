// Package latticetop is a small terminal dashboard over a running Pool's
// cell registry: a live table of cell id, name, and lifecycle state,
// refreshed on a timer. Grounded on kingrea-The-Lattice's bubbletea/
// lipgloss terminal-UI dependency pair, repurposed here from that repo's
// HR-module dashboard domain to rendering dataflow cell state.
package latticetop

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pumped-fn/lattice"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	footerStyle    = lipgloss.NewStyle().Faint(true)
)

type row struct {
	id    string
	name  string
	state lattice.State
}

type tickMsg time.Time

func tick(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	registry *lattice.CellRegistry
	interval time.Duration
	rows     []row
}

func (m model) Init() tea.Cmd {
	return tick(m.interval)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.rows = snapshot(m.registry)
		return m, tick(m.interval)
	}
	return m, nil
}

func (m model) View() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-36s %-20s %s", "ID", "NAME", "STATE")))
	sb.WriteString("\n")

	if len(m.rows) == 0 {
		sb.WriteString(pendingStyle.Render("(no cells registered)"))
		sb.WriteString("\n")
	}

	for _, r := range m.rows {
		style := pendingStyle
		switch r.state {
		case lattice.StateActive:
			style = activeStyle
		case lattice.StateCompleted:
			style = completedStyle
		}
		name := r.name
		if name == "" {
			name = "-"
		}
		sb.WriteString(style.Render(fmt.Sprintf("%-36s %-20s %s", r.id, name, r.state)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(footerStyle.Render("q to quit"))
	sb.WriteString("\n")
	return sb.String()
}

func snapshot(registry *lattice.CellRegistry) []row {
	var rows []row
	registry.Range(func(c lattice.AnyCell) bool {
		rows = append(rows, row{id: c.ID(), name: c.Name(), state: c.State()})
		return true
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	return rows
}

// Run blocks, rendering registry's cells every interval until the user
// quits. interval <= 0 defaults to 500ms.
func Run(registry *lattice.CellRegistry, interval time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	m := model{registry: registry, interval: interval, rows: snapshot(registry)}
	_, err := tea.NewProgram(m).Run()
	return err
}
