package main

import (
	"fmt"
	"strings"
)

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("kvreactortop — %s", m.addr)))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(badStyle.Render(fmt.Sprintf("fetch failed: %v", m.err)))
		b.WriteString("\n")
	}
	if !m.fetched {
		b.WriteString(labelStyle.Render("waiting for first sample..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(panelStyle.Render(m.renderStore()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.renderExecutor()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.renderConnections()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.renderRecent()))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("q to quit"))
	return b.String()
}

func (m *model) renderStore() string {
	s := m.stats.Store
	ratio := 0.0
	if s.MaxSize > 0 {
		ratio = float64(s.CurSize) / float64(s.MaxSize)
	}
	return fmt.Sprintf(
		"%s\n  entries: %d\n  occupancy: %s",
		titleStyle.Render("store"),
		s.Entries,
		occupancyStyle(ratio).Render(fmt.Sprintf("%d / %d bytes (%.1f%%)", s.CurSize, s.MaxSize, ratio*100)),
	)
}

func (m *model) renderExecutor() string {
	e := m.stats.Executor
	workerRatio := 0.0
	if e.HighWatermark > 0 {
		workerRatio = float64(e.CurWorkers) / float64(e.HighWatermark)
	}
	queueRatio := 0.0
	if e.MaxQueueSize > 0 {
		queueRatio = float64(e.QueueDepth) / float64(e.MaxQueueSize)
	}
	running := goodStyle.Render("running")
	if !e.Running {
		running = badStyle.Render("stopped")
	}
	return fmt.Sprintf(
		"%s (%s)\n  workers: %s\n  queue: %s",
		titleStyle.Render("executor"),
		running,
		occupancyStyle(workerRatio).Render(fmt.Sprintf("%d (low %d / high %d)", e.CurWorkers, e.LowWatermark, e.HighWatermark)),
		occupancyStyle(queueRatio).Render(fmt.Sprintf("%d / %d", e.QueueDepth, e.MaxQueueSize)),
	)
}

func (m *model) renderConnections() string {
	conns := m.stats.Connections
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("connections (%d)", len(conns))))
	limit := len(conns)
	if limit > 10 {
		limit = 10
	}
	for _, c := range conns[:limit] {
		b.WriteString(fmt.Sprintf("\n  %s  fd=%-4d state=%-8s pending=%dB", c.ID, c.RemoteFD, c.State, c.PendingWB))
	}
	if len(conns) > limit {
		b.WriteString(labelStyle.Render(fmt.Sprintf("\n  ... and %d more", len(conns)-limit)))
	}
	return b.String()
}

func (m *model) renderRecent() string {
	recent := m.stats.Recent
	var b strings.Builder
	b.WriteString(titleStyle.Render("recent commands"))
	start := 0
	if len(recent) > 8 {
		start = len(recent) - 8
	}
	for _, e := range recent[start:] {
		b.WriteString(fmt.Sprintf("\n  %s  %-7s %-20s -> %s", e.Timestamp.Format("15:04:05"), e.Command, e.Key, e.Result))
	}
	return b.String()
}
