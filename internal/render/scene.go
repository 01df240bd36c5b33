// Package render draws a graph scene as a raster frame or as a braille text
// plot, and formats result tables.
package render

import (
	"time"

	"github.com/verte-zerg/sensorview/internal/model"
	"github.com/verte-zerg/sensorview/internal/viewport"
)

// Text cells map onto virtual pixels of this size so pixel thresholds keep
// their meaning in the terminal.
const (
	CellWidth  = 8
	CellHeight = 16
)

// Layout places the plot and the minimap strip in pixel space.
type Layout struct {
	Plot    viewport.Rect
	Minimap viewport.Rect
}

// Marker is a named point drawn on the plot.
type Marker struct {
	Label string
	Point model.Point
}

// Guide is the scrub guideline and its readout.
type Guide struct {
	Point model.Point
	Box   viewport.Rect
	Text  string
}

// Scene is everything a renderer needs for one frame. Renderers never
// mutate it.
type Scene struct {
	Title   string
	Status  string
	Channel model.Channel
	Unit    string

	Layout Layout
	Full   model.TimeWindow
	Start  time.Time
	End    time.Time
	Y      viewport.YRange

	Series   []model.Point
	Markers  []Marker
	Guide    *Guide
	Results  []model.ManualResult
	Pending  *model.Point
	Phases   []model.Phase
	Dragging string
}

// Frame returns the plot mapping of the scene.
func (s Scene) Frame() viewport.Frame {
	return viewport.Frame{Start: s.Start, End: s.End, Plot: s.Layout.Plot, Y: s.Y}
}

// Visible returns the series readings inside the visible window, plus one
// neighbour on each side so lines reach the plot edges.
func (s Scene) Visible() []model.Point {
	return visibleSlice(s.Series, s.Start, s.End)
}

func visibleSlice(series []model.Point, start, end time.Time) []model.Point {
	lo, hi := 0, len(series)
	for lo < len(series) && series[lo].Time.Before(start) {
		lo++
	}
	for hi > lo && series[hi-1].Time.After(end) {
		hi--
	}
	if lo > 0 {
		lo--
	}
	if hi < len(series) {
		hi++
	}
	return series[lo:hi]
}

// Image layout margins, in pixels.
const (
	imageAxisWidth     = 64
	imageHeaderHeight  = 22
	imageTimeAxis      = 20
	imageMinimapHeight = 48
	imageGap           = 10
	imagePadRight      = 12
)

// ImageLayout returns the layout of a raster frame of the given size.
func ImageLayout(width, height int) Layout {
	w, h := float64(width), float64(height)
	plotH := h - imageHeaderHeight - imageTimeAxis - imageGap - imageMinimapHeight - imageGap
	if plotH < 10 {
		plotH = 10
	}
	plotW := w - imageAxisWidth - imagePadRight
	if plotW < 10 {
		plotW = 10
	}
	return Layout{
		Plot: viewport.Rect{X: imageAxisWidth, Y: imageHeaderHeight, W: plotW, H: plotH},
		Minimap: viewport.Rect{
			X: imageAxisWidth,
			Y: imageHeaderHeight + plotH + imageTimeAxis + imageGap,
			W: plotW,
			H: imageMinimapHeight,
		},
	}
}

// TextLayout returns the virtual-pixel layout of a text plot with width
// columns and height rows of braille cells.
func TextLayout(width, height int) Layout {
	if width < minPlotWidth {
		width = minPlotWidth
	}
	if height < 1 {
		height = defaultPlotHeight
	}
	x := float64(axisWidth * CellWidth)
	return Layout{
		Plot: viewport.Rect{
			X: x,
			Y: float64(textHeaderRows * CellHeight),
			W: float64(width * CellWidth),
			H: float64(height * CellHeight),
		},
		Minimap: viewport.Rect{
			X: x,
			Y: float64((textHeaderRows + height + textAxisRows) * CellHeight),
			W: float64(width * CellWidth),
			H: float64(textMinimapRows * CellHeight),
		},
	}
}

// Guide readout box size, in pixels.
const (
	guideBoxWidth  = 168
	guideBoxHeight = 20
	guideBoxOffset = 6
)

// GuideBox places the readout box next to the guideline, flipping left when
// it would leave the plot.
func GuideBox(plot viewport.Rect, x float64) viewport.Rect {
	bx := x + guideBoxOffset
	if bx+guideBoxWidth > plot.X+plot.W {
		bx = x - guideBoxOffset - guideBoxWidth
	}
	if bx < plot.X {
		bx = plot.X
	}
	return viewport.Rect{X: bx, Y: plot.Y + guideBoxOffset, W: guideBoxWidth, H: guideBoxHeight}
}

// Readout formats the guideline label.
func Readout(p model.Point, unit string) string {
	text := p.Time.Format("15:04:05") + "  " + formatValue(p.Value)
	if unit != "" {
		text += " " + unit
	}
	return text
}
