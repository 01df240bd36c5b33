// Package viewport owns the visible time window of a dataset and maps it to
// pixel space.
package viewport

import (
	"math"
	"time"

	"github.com/verte-zerg/sensorview/internal/model"
)

// MinDuration is the narrowest visible window.
const MinDuration = 60 * time.Second

// zoomEpsilon is the smallest duration change a zoom applies.
const zoomEpsilon = time.Millisecond

// Viewport is the mutable visible window over a fixed full range.
// Every mutation clamps; none fails.
type Viewport struct {
	full model.TimeWindow
	end  time.Time
	rng  time.Duration
}

// New returns a viewport showing the full window.
func New(full model.TimeWindow) *Viewport {
	if full.Max.Before(full.Min) {
		full.Min, full.Max = full.Max, full.Min
	}
	return &Viewport{full: full, end: full.Max, rng: model.RangeAll}
}

// Restore returns a viewport initialised from a saved state.
func Restore(full model.TimeWindow, state model.ViewportState) *Viewport {
	v := New(full)
	if state.Range == model.RangeAll {
		return v
	}
	d := v.normalize(state.Range)
	if d >= v.full.Span() {
		return v
	}
	end := state.End
	if end.IsZero() {
		end = v.full.Max
	}
	v.rng = d
	v.end = v.clampEnd(end, d)
	return v
}

// Full returns the dataset window.
func (v *Viewport) Full() model.TimeWindow {
	return v.full
}

// State returns the persisted form of the viewport.
func (v *Viewport) State() model.ViewportState {
	if v.rng == model.RangeAll {
		return model.ViewportState{Range: model.RangeAll}
	}
	_, end := v.Visible()
	return model.ViewportState{End: end, Range: v.rng}
}

// IsAll reports whether the full range is shown.
func (v *Viewport) IsAll() bool {
	return v.rng == model.RangeAll
}

// Duration returns the width of the visible window.
func (v *Viewport) Duration() time.Duration {
	start, end := v.Visible()
	return end.Sub(start)
}

// Visible returns the visible [start, end] window.
func (v *Viewport) Visible() (time.Time, time.Time) {
	if v.rng == model.RangeAll {
		return v.full.Min, v.full.Max
	}
	end := v.clampEnd(v.end, v.rng)
	return end.Add(-v.rng), end
}

// SetRange changes the window width, keeping the previous midpoint centred.
// A non-positive duration, or one covering the full span, shows everything.
func (v *Viewport) SetRange(d time.Duration) {
	start, end := v.Visible()
	mid := start.Add(end.Sub(start) / 2)
	if d <= model.RangeAll {
		v.showAll()
		return
	}
	d = v.normalize(d)
	if d >= v.full.Span() {
		v.showAll()
		return
	}
	v.rng = d
	v.end = v.clampEnd(mid.Add(d/2), d)
}

// Pan moves the window by delta. It does nothing while the full range is shown.
func (v *Viewport) Pan(delta time.Duration) {
	if v.rng == model.RangeAll {
		return
	}
	_, end := v.Visible()
	v.end = v.clampEnd(end.Add(delta), v.rng)
}

// Zoom divides the window duration by factor around center. The distance from
// center to the window end scales with the duration.
func (v *Viewport) Zoom(factor float64, center time.Time) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	start, end := v.Visible()
	d := end.Sub(start)
	if d <= 0 {
		return
	}
	nd := v.scaled(float64(d) / factor)
	if absDuration(nd-d) < zoomEpsilon {
		return
	}
	if nd >= v.full.Span()-zoomEpsilon {
		v.showAll()
		return
	}
	ratio := float64(nd) / float64(d)
	newEnd := center.Add(time.Duration(float64(end.Sub(center)) * ratio))
	v.rng = nd
	v.end = v.clampEnd(newEnd, nd)
}

// NavigateTo sets the window end directly.
func (v *Viewport) NavigateTo(end time.Time) {
	if v.rng == model.RangeAll {
		return
	}
	v.end = v.clampEnd(end, v.rng)
}

// SetWindow shows [start, end], widening to MinDuration from start when the
// requested window is narrower.
func (v *Viewport) SetWindow(start, end time.Time) {
	if end.Before(start) {
		start, end = end, start
	}
	d := end.Sub(start)
	if d < v.minDuration() {
		d = v.minDuration()
		end = start.Add(d)
	}
	d = v.normalize(d)
	if d >= v.full.Span() {
		v.showAll()
		return
	}
	v.rng = d
	v.end = v.clampEnd(end, d)
}

func (v *Viewport) showAll() {
	v.rng = model.RangeAll
	v.end = v.full.Max
}

// minDuration is MinDuration unless the dataset is shorter than that.
func (v *Viewport) minDuration() time.Duration {
	span := v.full.Span()
	if span < MinDuration {
		return span
	}
	return MinDuration
}

// scaled clamps a duration given in float nanoseconds before converting it,
// so extreme zoom factors cannot overflow time.Duration.
func (v *Viewport) scaled(ns float64) time.Duration {
	if span := v.full.Span(); ns >= float64(span) {
		return span
	}
	if lo := v.minDuration(); ns <= float64(lo) {
		return lo
	}
	return time.Duration(ns)
}

func (v *Viewport) normalize(d time.Duration) time.Duration {
	if d < v.minDuration() {
		d = v.minDuration()
	}
	if span := v.full.Span(); d > span {
		d = span
	}
	return d
}

func (v *Viewport) clampEnd(end time.Time, d time.Duration) time.Time {
	lo := v.full.Min.Add(d)
	if end.Before(lo) {
		return lo
	}
	if end.After(v.full.Max) {
		return v.full.Max
	}
	return end
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
