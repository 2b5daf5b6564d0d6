// Package live renders the in-terminal dashboard for a running
// simulation. It consumes the supervisor's snapshot stream and draws
// throughput, latency and per-endpoint panels on each frame.
package live

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trafficsim/internal/stats"
	"trafficsim/internal/tui/components"
	"trafficsim/internal/tui/styles"
)

// DoneMsg ends the dashboard when the run finishes on its own.
type DoneMsg struct{}

// Model is the bubbletea model for the live view. Quitting the view
// (q or ctrl+c) cancels the run through the stop callback.
type Model struct {
	Snap     stats.Snapshot
	Progress progress.Model

	RPSLine     components.Sparkline
	LatencyLine components.Sparkline

	Duration time.Duration
	Stop     func()

	lastTotal   uint64
	lastUpdate  time.Time
	hasDuration bool

	width  int
	height int
}

func NewModel(duration time.Duration, stop func()) Model {
	return Model{
		Progress:    progress.New(progress.WithDefaultGradient()),
		RPSLine:     components.NewSparkline(40, "RPS", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P99 (ms)", styles.Warn),
		Duration:    duration,
		Stop:        stop,
		lastUpdate:  time.Now(),
		hasDuration: duration > 0,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stats.Snapshot:
		now := time.Now()
		dt := now.Sub(m.lastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		// Instantaneous rate over the last interval, not the run average.
		m.RPSLine.Add(float64(msg.Total-m.lastTotal) / dt)
		m.LatencyLine.Add(msg.P99LatencyMs)

		m.Snap = msg
		m.lastTotal = msg.Total
		m.lastUpdate = now

		if m.hasDuration {
			pct := float64(msg.Elapsed) / float64(m.Duration)
			if pct > 1.0 {
				pct = 1.0
			}
			return m, m.Progress.SetPercent(pct)
		}
		return m, nil

	case DoneMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.Stop != nil {
				m.Stop()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.RPSLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(styles.Title.Render("traffic simulation"))
	s.WriteString("\n\n")

	errRate := 0.0
	if m.Snap.Total > 0 {
		errRate = float64(m.Snap.Failed) / float64(m.Snap.Total) * 100
	}
	errStyle := styles.Active
	if errRate > 5.0 {
		errStyle = styles.Error
	} else if errRate > 1.0 {
		errStyle = styles.Warn
	}

	col1 := fmt.Sprintf("TOTAL: %d\nRPS: %.1f", m.Snap.Total, m.Snap.RPS)
	col2 := fmt.Sprintf("OK: %d\nFAIL: %d", m.Snap.Success, m.Snap.Failed)
	col3 := fmt.Sprintf("ERR: %.2f%%\nUP: %s", errRate, m.Snap.Elapsed.Truncate(time.Second))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(errStyle.Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RPSLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %.0f ms",
		m.Snap.P50LatencyMs,
		m.Snap.P90LatencyMs,
		m.Snap.P99LatencyMs,
		m.Snap.MaxLatencyMs,
	)
	s.WriteString(styles.Box.Render(latencies))
	s.WriteString("\n\n")

	if panel := m.endpointPanel(); panel != "" {
		s.WriteString(panel)
		s.WriteString("\n\n")
	}

	if m.hasDuration {
		s.WriteString(m.Progress.View())
		s.WriteString("\n")
	}

	s.WriteString(styles.RenderKey("q", "stop and show final report"))
	return s.String()
}

func (m Model) endpointPanel() string {
	if len(m.Snap.TopEndpoints) == 0 {
		return ""
	}

	rows := make([]string, 0, len(m.Snap.TopEndpoints)+1)
	rows = append(rows, styles.Subtle.Render("top endpoints"))
	for _, hit := range m.Snap.TopEndpoints {
		rows = append(rows, fmt.Sprintf("%-40s %s",
			hit.Endpoint,
			styles.Value.Render(fmt.Sprintf("%d", hit.Count))))
	}

	if len(m.Snap.StatusCodes) > 0 {
		codes := make([]int, 0, len(m.Snap.StatusCodes))
		for code := range m.Snap.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		parts := make([]string, 0, len(codes))
		for _, code := range codes {
			st := styles.Value
			if code >= 400 {
				st = styles.Error
			}
			parts = append(parts, st.Render(fmt.Sprintf("%d: %d", code, m.Snap.StatusCodes[code])))
		}
		rows = append(rows, "", strings.Join(parts, "  "))
	}

	return styles.Box.Render(strings.Join(rows, "\n"))
}
