package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/sensorview/internal/annotate"
	"github.com/verte-zerg/sensorview/internal/model"
)

// FormatTable aligns headers and rows into text lines. Columns listed in
// rightAlignCols are right-aligned.
func FormatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i := 0; i < colCount; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

func padCell(value string, width int, rightAlign bool) string {
	valueWidth := runewidth.StringWidth(value)
	if valueWidth >= width {
		return value
	}
	padding := width - valueWidth
	if rightAlign {
		return strings.Repeat(" ", padding) + value
	}
	return value + strings.Repeat(" ", padding)
}

// PointRows returns the named point section of a results table.
func PointRows(t annotate.Table) ([]string, [][]string) {
	headers := []string{"Label", "Time", "Value"}
	rows := make([][]string, 0, len(t.Points))
	for _, p := range t.Points {
		rows = append(rows, []string{p.Label, p.Time.Format("2006-01-02 15:04:05"), formatValue(p.Value)})
	}
	return headers, rows
}

// ResultRows returns the max/min section of a results table.
func ResultRows(t annotate.Table, channels []model.Channel) ([]string, [][]string) {
	headers := []string{"Channel", "Start", "End", "Min", "Max", "Diff"}
	rows := make([][]string, 0, len(t.Results))
	for _, r := range t.Results {
		rows = append(rows, []string{
			channelName(channels, r.Channel),
			r.Start.Format("15:04:05"),
			r.End.Format("15:04:05"),
			formatValue(r.Min),
			formatValue(r.Max),
			formatValue(r.Diff),
		})
	}
	return headers, rows
}

// WriteResults prints the response time, the named points and the max/min
// results of a job.
func WriteResults(w io.Writer, t annotate.Table, channels []model.Channel) error {
	response := "-"
	if t.HasResponse {
		response = fmt.Sprintf("%d s", t.ResponseSeconds)
	}
	if _, err := fmt.Fprintf(w, "Response time (ST-EN): %s\n", response); err != nil {
		return err
	}

	right := map[int]bool{2: true}
	headers, rows := PointRows(t)
	if len(rows) > 0 {
		if _, err := fmt.Fprintln(w, "\nPoints"); err != nil {
			return err
		}
		for _, line := range FormatTable(headers, rows, right) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}

	right = map[int]bool{3: true, 4: true, 5: true}
	headers, rows = ResultRows(t, channels)
	if len(rows) > 0 {
		if _, err := fmt.Fprintln(w, "\nMax/min results"); err != nil {
			return err
		}
		for _, line := range FormatTable(headers, rows, right) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func channelName(channels []model.Channel, ch int) string {
	if ch >= 0 && ch < len(channels) {
		return channels[ch].Name
	}
	return fmt.Sprintf("#%d", ch)
}
