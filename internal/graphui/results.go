package graphui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/sensorview/internal/render"
)

func (m *Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	switch {
	case key.Matches(msg, keys.Quit):
		return m, m.quit()
	case key.Matches(msg, keys.Table), key.Matches(msg, keys.Cancel):
		m.showTable = false
		return m, nil
	case key.Matches(msg, keys.Delete):
		m.deleteSelected()
		return m, nil
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m *Model) deleteSelected() {
	idx := m.results.Cursor()
	if idx < 0 || idx >= len(m.resultRefs) {
		m.notice = "no result selected"
		return
	}
	ref := m.resultRefs[idx]
	if err := m.ann.DeleteManualResult(ref.channel, ref.id); err != nil {
		m.setErr(err)
		return
	}
	m.refreshTable()
	if idx >= len(m.resultRefs) && idx > 0 {
		m.results.SetCursor(idx - 1)
	}
	m.notice = "result deleted"
}

// refreshTable reloads the max/min rows from the manager.
func (m *Model) refreshTable() {
	t := m.ann.Table()
	headers, rows := render.ResultRows(t, m.ds.Channels)
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		for j, cell := range row {
			widths[j] = maxInt(widths[j], lipgloss.Width(cell))
		}
		tableRows[i] = table.Row(row)
	}
	cols := make([]table.Column, len(headers))
	for i, h := range headers {
		cols[i] = table.Column{Title: h, Width: widths[i] + 1}
	}
	// Columns must be replaced before rows so the row renderer sees them.
	m.results.SetRows(nil)
	m.results.SetColumns(cols)
	m.results.SetRows(tableRows)

	m.resultRefs = m.resultRefs[:0]
	for _, r := range t.Results {
		m.resultRefs = append(m.resultRefs, resultRef{channel: r.Channel, id: r.ID})
	}
	// SetRows(nil) leaves the cursor at -1; move it back onto a row.
	if c := m.results.Cursor(); c < 0 {
		m.results.SetCursor(0)
	} else if c >= len(tableRows) {
		m.results.SetCursor(maxInt(0, len(tableRows)-1))
	}
}

func (m *Model) renderTable() string {
	t := m.ann.Table()
	lines := []string{titleStyle.Render("Results")}
	if t.HasResponse {
		lines = append(lines, fmt.Sprintf("Response time (ST-EN): %d s", t.ResponseSeconds))
	} else {
		lines = append(lines, "Response time (ST-EN): -")
	}
	headers, rows := render.PointRows(t)
	if len(rows) > 0 {
		lines = append(lines, "")
		lines = append(lines, render.FormatTable(headers, rows, map[int]bool{2: true})...)
	}
	lines = append(lines, "")
	if len(m.resultRefs) == 0 {
		lines = append(lines, footerStyle.Render("No max/min results."))
	} else {
		lines = append(lines, m.results.View())
	}
	return strings.Join(lines, "\n")
}

func resultTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}
