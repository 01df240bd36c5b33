// Package minimap implements the full-range overview strip and the draggable
// rectangle that mirrors the visible window.
package minimap

import (
	"math"
	"time"

	"github.com/verte-zerg/sensorview/internal/viewport"
)

// Handle identifies the part of the window rectangle under the pointer.
type Handle int

const (
	HandleNone Handle = iota
	HandleLeft
	HandleRight
	HandleBody
)

func (h Handle) String() string {
	switch h {
	case HandleLeft:
		return "left"
	case HandleRight:
		return "right"
	case HandleBody:
		return "body"
	default:
		return "none"
	}
}

const (
	maxDeadZone  = 12.0
	deadZoneFrac = 0.2
)

// Navigator translates minimap gestures into viewport updates.
type Navigator struct {
	vp   *viewport.Viewport
	area viewport.Rect

	drag      Handle
	grab      time.Time
	origStart time.Time
	origEnd   time.Time
}

// New returns a navigator drawing into area.
func New(vp *viewport.Viewport, area viewport.Rect) *Navigator {
	return &Navigator{vp: vp, area: area}
}

// SetArea updates the minimap rectangle after a resize.
func (n *Navigator) SetArea(area viewport.Rect) {
	n.area = area
}

// Area returns the minimap rectangle.
func (n *Navigator) Area() viewport.Rect {
	return n.area
}

// Dragging returns the handle of the active drag, or HandleNone.
func (n *Navigator) Dragging() Handle {
	return n.drag
}

// Window returns the highlighted rectangle of the visible window.
func (n *Navigator) Window() viewport.Rect {
	start, end := n.vp.Visible()
	x0 := n.xAt(start)
	x1 := n.xAt(end)
	return viewport.Rect{X: x0, Y: n.area.Y, W: x1 - x0, H: n.area.H}
}

// DeadZone returns the edge grab tolerance for the current rectangle.
func (n *Navigator) DeadZone() float64 {
	return math.Min(maxDeadZone, n.Window().W*deadZoneFrac)
}

// HitTest classifies a position against the window rectangle.
func (n *Navigator) HitTest(p viewport.Vec) Handle {
	if !n.area.Contains(p) {
		return HandleNone
	}
	win := n.Window()
	dz := n.DeadZone()
	switch {
	case math.Abs(p.X-win.X) <= dz:
		return HandleLeft
	case math.Abs(p.X-(win.X+win.W)) <= dz:
		return HandleRight
	case p.X > win.X && p.X < win.X+win.W:
		return HandleBody
	default:
		return HandleNone
	}
}

// Press starts a drag on a handle, or navigates when the press lands outside
// the window rectangle. It returns false when p is outside the minimap.
func (n *Navigator) Press(p viewport.Vec) bool {
	if !n.area.Contains(p) {
		return false
	}
	h := n.HitTest(p)
	if h == HandleNone {
		n.vp.NavigateTo(n.TimeAt(p.X))
		return true
	}
	n.drag = h
	n.grab = n.TimeAt(p.X)
	n.origStart, n.origEnd = n.vp.Visible()
	return true
}

// Drag applies the active drag for the pointer at p.
func (n *Navigator) Drag(p viewport.Vec) {
	if n.drag == HandleNone {
		return
	}
	full := n.vp.Full()
	t := n.TimeAt(p.X)
	floor := viewport.MinDuration
	if span := full.Span(); span < floor {
		floor = span
	}
	switch n.drag {
	case HandleLeft:
		start := clampTime(t, full.Min, n.origEnd.Add(-floor))
		n.vp.SetWindow(start, n.origEnd)
	case HandleRight:
		end := clampTime(t, n.origStart.Add(floor), full.Max)
		n.vp.SetWindow(n.origStart, end)
	case HandleBody:
		delta := t.Sub(n.grab)
		start := n.origStart.Add(delta)
		end := n.origEnd.Add(delta)
		if start.Before(full.Min) {
			end = end.Add(full.Min.Sub(start))
			start = full.Min
		}
		if end.After(full.Max) {
			start = start.Add(-end.Sub(full.Max))
			end = full.Max
		}
		n.vp.SetWindow(start, end)
	}
}

// Release ends the active drag.
func (n *Navigator) Release() {
	n.drag = HandleNone
}

// TimeAt maps a minimap x coordinate to a timestamp of the full range.
func (n *Navigator) TimeAt(x float64) time.Time {
	full := n.vp.Full()
	if n.area.W <= 0 {
		return full.Min
	}
	frac := (x - n.area.X) / n.area.W
	frac = math.Max(0, math.Min(1, frac))
	return full.Min.Add(time.Duration(frac * float64(full.Span())))
}

func (n *Navigator) xAt(t time.Time) float64 {
	full := n.vp.Full()
	span := full.Span()
	if span <= 0 {
		return n.area.X
	}
	return n.area.X + float64(t.Sub(full.Min))/float64(span)*n.area.W
}

func clampTime(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}
