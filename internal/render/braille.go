package render

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/verte-zerg/sensorview/internal/minimap"
	"github.com/verte-zerg/sensorview/internal/viewport"
)

type ansiColor struct {
	name string
	code string
}

const (
	defaultPlotHeight   = 12
	minPlotWidth        = 10
	axisLabelWidth      = 8
	axisSeparator       = " │ "
	axisWidth           = axisLabelWidth + 3
	textHeaderRows      = 1
	textAxisRows        = 2
	textMinimapRows     = 2
	colorReset          = "\x1b[0m"
	shadeCode           = "\x1b[48;5;236m"
	windowCode          = "\x1b[7m"
	terminalWidthBackup = 80
)

// TextChromeRows is the number of lines PlotLines adds around the plot rows.
const TextChromeRows = textHeaderRows + textAxisRows + textMinimapRows

// Layer order is also color priority.
const (
	layerGuide = iota
	layerMarker
	layerData
	layerCount
)

var layerColors = [layerCount]ansiColor{
	{name: "yellow", code: "\x1b[33m"},
	{name: "magenta", code: "\x1b[35m"},
	{name: "cyan", code: "\x1b[36m"},
}

// Plot writes the scene as a braille text plot. Plot size comes from the
// scene's text layout.
func Plot(w io.Writer, s Scene, forceColor bool) error {
	for _, line := range PlotLines(s, shouldUseColor(w, forceColor)) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// PlotLines renders the scene into text lines: a header, the plot rows, a
// marker label row, a time axis and a two-row minimap.
func PlotLines(s Scene, useColor bool) []string {
	width := int(s.Layout.Plot.W / CellWidth)
	height := int(s.Layout.Plot.H / CellHeight)
	if width < minPlotWidth {
		width = minPlotWidth
	}
	if height < 1 {
		height = defaultPlotHeight
	}
	total := axisWidth + width

	layers := make([][][]uint8, layerCount)
	for i := range layers {
		layers[i] = makeCells(height, width)
	}
	dotsW, dotsH := width*2, height*4
	y := s.Y
	if !y.Valid() {
		y.Min, y.Max = 0, 100
	}
	dotX := func(t time.Time) int {
		return timeToDot(t, s.Start, s.End, dotsW)
	}

	prevX, prevY := -1, -1
	for _, p := range s.Visible() {
		px, py := dotX(p.Time), valueToRow(p.Value, y.Min, y.Max, dotsH)
		if prevX >= 0 {
			drawLine(prevX, prevY, px, py, func(dx, dy int) {
				setBrailleDot(layers[layerData], dx, dy)
			})
		} else {
			setBrailleDot(layers[layerData], px, py)
		}
		prevX, prevY = px, py
	}

	for _, m := range s.Markers {
		if !inWindow(m.Point.Time, s.Start, s.End) {
			continue
		}
		px, py := dotX(m.Point.Time), valueToRow(m.Point.Value, y.Min, y.Max, dotsH)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				setBrailleDot(layers[layerMarker], px+dx, py+dy)
			}
		}
	}
	if s.Pending != nil && inWindow(s.Pending.Time, s.Start, s.End) {
		px := dotX(s.Pending.Time)
		for dy := 0; dy < dotsH; dy += 2 {
			setBrailleDot(layers[layerMarker], px, dy)
		}
	}
	if s.Guide != nil && inWindow(s.Guide.Point.Time, s.Start, s.End) {
		px := dotX(s.Guide.Point.Time)
		for dy := 0; dy < dotsH; dy++ {
			setBrailleDot(layers[layerGuide], px, dy)
		}
	}

	shaded := make([]bool, width)
	for _, r := range s.Results {
		from, to := dotX(r.Start)/2, dotX(r.End)/2
		if r.End.Before(s.Start) || r.Start.After(s.End) {
			continue
		}
		for x := max(from, 0); x <= to && x < width; x++ {
			shaded[x] = true
		}
	}

	lines := make([]string, 0, height+textHeaderRows+textAxisRows+textMinimapRows)
	lines = append(lines, runewidth.Truncate(plotHeader(s, y), total, "…"))

	labels := makeAxisLabels(height, y)
	for row := 0; row < height; row++ {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("%*s%s", axisLabelWidth, labels[row], axisSeparator))
		for x := 0; x < width; x++ {
			mask, layer := composeCell(layers, x, row)
			ch := brailleFromMask(mask)
			switch {
			case !useColor:
				b.WriteRune(ch)
			case layer >= 0:
				if shaded[x] {
					b.WriteString(shadeCode)
				}
				b.WriteString(layerColors[layer].code)
				b.WriteRune(ch)
				b.WriteString(colorReset)
			case shaded[x]:
				b.WriteString(shadeCode)
				b.WriteRune(ch)
				b.WriteString(colorReset)
			default:
				b.WriteRune(ch)
			}
		}
		lines = append(lines, b.String())
	}

	lines = append(lines, markerRow(s, width))
	lines = append(lines, timeRow(s.Start, s.End, width))
	lines = append(lines, minimapRows(s, width, useColor)...)
	return lines
}

func plotHeader(s Scene, y viewport.YRange) string {
	name := s.Channel.Name
	if s.Unit != "" {
		name += " (" + s.Unit + ")"
	}
	parts := []string{}
	if s.Title != "" {
		parts = append(parts, s.Title)
	}
	if name != "" {
		parts = append(parts, name)
	}
	parts = append(parts, fmt.Sprintf("%s - %s", s.Start.Format("15:04:05"), s.End.Format("15:04:05")))
	parts = append(parts, fmt.Sprintf("y %s..%s", formatValue(y.Min), formatValue(y.Max)))
	if s.Guide != nil {
		parts = append(parts, s.Guide.Text)
	}
	return strings.Join(parts, "  ")
}

func markerRow(s Scene, width int) string {
	row := []rune(strings.Repeat(" ", width))
	for _, m := range s.Markers {
		if !inWindow(m.Point.Time, s.Start, s.End) {
			continue
		}
		col := timeToDot(m.Point.Time, s.Start, s.End, width*2) / 2
		for i, r := range m.Label {
			if col+i < width {
				row[col+i] = r
			}
		}
	}
	return strings.Repeat(" ", axisWidth) + strings.TrimRight(string(row), " ")
}

func timeRow(start, end time.Time, width int) string {
	left := start.Format("15:04:05")
	right := end.Format("15:04:05")
	gap := width - len(left) - len(right)
	if gap < 1 {
		return strings.Repeat(" ", axisWidth) + left
	}
	return strings.Repeat(" ", axisWidth) + left + strings.Repeat(" ", gap) + right
}

func minimapRows(s Scene, width int, useColor bool) []string {
	buckets := minimap.Overview(s.Series, s.Full, width)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range buckets {
		if b.Count == 0 {
			continue
		}
		lo = math.Min(lo, b.Min)
		hi = math.Max(hi, b.Max)
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 1
	}
	if hi-lo < 1e-9 {
		lo--
		hi++
	}

	wStart := timeToDot(s.Start, s.Full.Min, s.Full.Max, width*2) / 2
	wEnd := timeToDot(s.End, s.Full.Min, s.Full.Max, width*2) / 2

	var strip, handles strings.Builder
	strip.WriteString(strings.Repeat(" ", axisWidth))
	handles.WriteString(strings.Repeat(" ", axisWidth))
	for x, b := range buckets {
		var mask uint8
		if b.Count > 0 {
			top := valueToRow(b.Max, lo, hi, 4)
			bottom := valueToRow(b.Min, lo, hi, 4)
			for dy := top; dy <= bottom; dy++ {
				mask |= brailleDotMask(0, dy) | brailleDotMask(1, dy)
			}
		}
		ch := brailleFromMask(mask)
		inside := x >= wStart && x <= wEnd
		if useColor && inside {
			strip.WriteString(windowCode)
			strip.WriteRune(ch)
			strip.WriteString(colorReset)
		} else {
			strip.WriteRune(ch)
		}
		switch {
		case x == wStart:
			handles.WriteRune('[')
		case x == wEnd:
			handles.WriteRune(']')
		case inside:
			handles.WriteRune('─')
		default:
			handles.WriteRune(' ')
		}
	}
	return []string{strip.String(), strings.TrimRight(handles.String(), " ")}
}

func timeToDot(t, start, end time.Time, dots int) int {
	span := end.Sub(start)
	if span <= 0 || dots <= 1 {
		return 0
	}
	frac := float64(t.Sub(start)) / float64(span)
	x := int(math.Round(frac * float64(dots-1)))
	if x < 0 {
		return 0
	}
	if x >= dots {
		return dots - 1
	}
	return x
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisWidth
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

// TerminalWidth returns the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func makeAxisLabels(height int, y viewport.YRange) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = formatValue(y.Max)
	if height > 2 {
		labels[height/2] = formatValue((y.Min + y.Max) / 2)
	}
	if height > 1 {
		labels[height-1] = formatValue(y.Min)
	}
	return labels
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

func composeCell(layers [][][]uint8, x, y int) (uint8, int) {
	var mask uint8
	layer := -1
	for i, cells := range layers {
		if y < 0 || y >= len(cells) {
			continue
		}
		if x < 0 || x >= len(cells[y]) {
			continue
		}
		cellMask := cells[y][x]
		if cellMask == 0 {
			continue
		}
		if layer == -1 {
			layer = i
		}
		mask |= cellMask
	}
	return mask, layer
}

func valueToRow(v, minVal, maxVal float64, height int) int {
	if height <= 1 || maxVal <= minVal {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(height-1)))
	if row < 0 {
		row = 0
	}
	if row >= height {
		row = height - 1
	}
	return row
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) {
		return
	}
	if cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
