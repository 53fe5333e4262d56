// Command kvreactortop is a terminal dashboard that polls a running
// kvreactord's admin stats endpoint and renders store occupancy,
// executor scaling, live connections, and recently executed commands.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ravelin-io/kvreactor/internal/adminmcp"
)

func main() {
	addr := ":9878"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	m := &model{addr: addr, client: &http.Client{Timeout: 2 * time.Second}}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "kvreactortop: %v\n", err)
		os.Exit(1)
	}
}

type statsMsg adminmcp.DashboardStats
type errMsg struct{ err error }
type tickMsg time.Time

type model struct {
	addr   string
	client *http.Client

	stats   adminmcp.DashboardStats
	err     error
	width   int
	height  int
	fetched bool
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.Get("http://" + m.addr + "/stats")
		if err != nil {
			return errMsg{err}
		}
		defer resp.Body.Close()

		var stats adminmcp.DashboardStats
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return errMsg{err}
		}
		return statsMsg(stats)
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		return m, m.fetchCmd()

	case statsMsg:
		m.stats = adminmcp.DashboardStats(msg)
		m.err = nil
		m.fetched = true
		return m, tickCmd()

	case errMsg:
		m.err = msg.err
		return m, tickCmd()
	}
	return m, nil
}
