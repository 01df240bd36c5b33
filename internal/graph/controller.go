// Package graph drives one dataset and job: it feeds pointer and keyboard
// input through the gesture machine into the viewport, minimap and
// annotation manager, and builds the scene the renderers draw.
package graph

import (
	"fmt"
	"time"

	"github.com/verte-zerg/sensorview/internal/annotate"
	"github.com/verte-zerg/sensorview/internal/logging"
	"github.com/verte-zerg/sensorview/internal/minimap"
	"github.com/verte-zerg/sensorview/internal/model"
	"github.com/verte-zerg/sensorview/internal/pointer"
	"github.com/verte-zerg/sensorview/internal/render"
	"github.com/verte-zerg/sensorview/internal/snap"
	"github.com/verte-zerg/sensorview/internal/viewport"
)

// WheelStep is the zoom factor of one wheel notch.
const WheelStep = 1.25

// Controller is the interactive state of one graph. It is not safe for
// concurrent use.
type Controller struct {
	ds     *model.Dataset
	vp     *viewport.Viewport
	nav    *minimap.Navigator
	ptr    *pointer.Machine
	ann    *annotate.Manager
	layout render.Layout

	channel   int
	series    map[int][]model.Point
	yOverride *viewport.YRange
	title     string

	guide      *model.Point
	inMinimap  bool
	dragLabel  string
	dragTarget *model.Point
}

// New returns a controller showing the whole dataset on channel 0.
func New(ds *model.Dataset, ann *annotate.Manager, layout render.Layout, cfg pointer.Config) *Controller {
	vp := viewport.New(ds.Window())
	return &Controller{
		ds:     ds,
		vp:     vp,
		nav:    minimap.New(vp, layout.Minimap),
		ptr:    pointer.New(cfg),
		ann:    ann,
		layout: layout,
		series: map[int][]model.Point{},
	}
}

// Viewport returns the underlying viewport.
func (c *Controller) Viewport() *viewport.Viewport { return c.vp }

// Manager returns the annotation manager.
func (c *Controller) Manager() *annotate.Manager { return c.ann }

// Pointer returns the gesture machine.
func (c *Controller) Pointer() *pointer.Machine { return c.ptr }

// Navigator returns the minimap navigator.
func (c *Controller) Navigator() *minimap.Navigator { return c.nav }

// Channel returns the selected channel index.
func (c *Controller) Channel() int { return c.channel }

// Layout returns the current layout.
func (c *Controller) Layout() render.Layout { return c.layout }

// SetTitle sets the scene title.
func (c *Controller) SetTitle(title string) { c.title = title }

// SetLayout updates the layout after a resize.
func (c *Controller) SetLayout(layout render.Layout) {
	c.layout = layout
	c.nav.SetArea(layout.Minimap)
}

// SetYRange pins the value axis; nil returns to auto scaling.
func (c *Controller) SetYRange(y *viewport.YRange) {
	if y != nil && !y.Valid() {
		return
	}
	c.yOverride = y
}

// SelectChannel switches the plotted channel. Any pending selection is
// dropped by restarting max/min mode on the new channel.
func (c *Controller) SelectChannel(ch int) error {
	if !c.ds.HasChannel(ch) {
		return fmt.Errorf("%w: %d", annotate.ErrUnknownChannel, ch)
	}
	if ch == c.channel {
		return nil
	}
	c.channel = ch
	c.guide = nil
	if c.ann.Mode().Kind == annotate.ModeManualRange {
		return c.ann.StartRangeSelection(ch)
	}
	return nil
}

// NextChannel cycles to the following channel.
func (c *Controller) NextChannel() {
	if len(c.ds.Channels) == 0 {
		return
	}
	_ = c.SelectChannel((c.channel + 1) % len(c.ds.Channels))
}

// ToggleRangeMode enters or leaves max/min mode on the current channel.
func (c *Controller) ToggleRangeMode() error {
	if c.ann.Mode().Kind == annotate.ModeManualRange {
		c.ann.Cancel()
		return nil
	}
	return c.ann.StartRangeSelection(c.channel)
}

// RestoreView replaces the viewport with a saved state of the same dataset.
func (c *Controller) RestoreView(state model.ViewportState) {
	c.vp = viewport.Restore(c.vp.Full(), state)
	c.nav = minimap.New(c.vp, c.layout.Minimap)
}

// SetRange changes the visible duration; zero shows everything.
func (c *Controller) SetRange(d time.Duration) {
	c.vp.SetRange(d)
}

// PanFraction pans by a fraction of the visible duration.
func (c *Controller) PanFraction(frac float64) {
	c.vp.Pan(time.Duration(frac * float64(c.vp.Duration())))
}

// ZoomCenter zooms around the middle of the visible window.
func (c *Controller) ZoomCenter(factor float64) {
	start, end := c.vp.Visible()
	c.vp.Zoom(factor, start.Add(end.Sub(start)/2))
}

// Wheel zooms around x; negative dy (scroll up) zooms in.
func (c *Controller) Wheel(x float64, dy int) {
	if dy == 0 {
		return
	}
	factor := WheelStep
	if dy > 0 {
		factor = 1 / WheelStep
	}
	c.vp.Zoom(factor, c.frame().PixelToTime(x))
}

// PointerDown starts a gesture. Presses on the minimap go to the navigator.
func (c *Controller) PointerDown(p viewport.Vec) {
	if c.nav.Press(p) {
		c.inMinimap = true
		return
	}
	c.ptr.Down(p, c.pointerScene())
	if c.ptr.State() == pointer.DraggingMarker {
		c.dragLabel = c.ptr.Label()
		c.dragTarget = nil
	}
}

// PointerMove continues a gesture.
func (c *Controller) PointerMove(p viewport.Vec) {
	if c.inMinimap {
		c.nav.Drag(p)
		return
	}
	c.apply(c.ptr.Move(p))
}

// PointerUp ends a gesture, committing a click or a marker drop.
func (c *Controller) PointerUp(p viewport.Vec) error {
	if c.inMinimap {
		c.nav.Release()
		c.inMinimap = false
		return nil
	}
	err := c.apply(c.ptr.Up(p))
	c.dragLabel = ""
	c.dragTarget = nil
	return err
}

// PinchStart intercepts any gesture for a two-pointer zoom.
func (c *Controller) PinchStart(a, b viewport.Vec) {
	if c.inMinimap {
		c.nav.Release()
		c.inMinimap = false
	}
	c.dragLabel = ""
	c.dragTarget = nil
	c.ptr.PinchStart(a, b)
}

// PinchMove zooms by the change in finger distance.
func (c *Controller) PinchMove(a, b viewport.Vec) {
	c.apply(c.ptr.PinchMove(a, b))
}

// PinchEnd finishes a pinch.
func (c *Controller) PinchEnd() {
	c.ptr.PinchEnd()
}

func (c *Controller) apply(actions []pointer.Action) error {
	var firstErr error
	for _, a := range actions {
		var err error
		switch a.Kind {
		case pointer.ActPan:
			c.vp.Pan(-time.Duration(a.DeltaX * float64(c.frame().PerPixel())))
		case pointer.ActZoom:
			c.vp.Zoom(a.Factor, c.frame().PixelToTime(a.Pos.X))
		case pointer.ActScrub:
			c.MoveGuide(a.Pos.X)
		case pointer.ActDragMarker:
			if p, ok := c.nearestAt(a.Pos.X); ok {
				c.dragTarget = &p
			}
		case pointer.ActDropMarker:
			err = c.dropMarker(a.Label, a.Pos.X)
		case pointer.ActClick:
			err = c.Commit(a.Pos.X)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MoveGuide moves the guideline to the reading nearest to x.
func (c *Controller) MoveGuide(x float64) {
	if p, ok := c.nearestAt(x); ok {
		c.guide = &p
	}
}

// StepGuide moves the guideline by n readings, starting from the middle of
// the window when it is not set.
func (c *Controller) StepGuide(n int) {
	series := c.Series()
	if len(series) == 0 {
		return
	}
	if c.guide == nil {
		start, end := c.vp.Visible()
		if p, ok := snap.Nearest(series, start.Add(end.Sub(start)/2)); ok {
			c.guide = &p
		}
		return
	}
	idx := 0
	for i, p := range series {
		if p.Time.Equal(c.guide.Time) {
			idx = i
			break
		}
	}
	idx += n
	if idx < 0 {
		idx = 0
	}
	if idx >= len(series) {
		idx = len(series) - 1
	}
	p := series[idx]
	c.guide = &p
	start, end := c.vp.Visible()
	if p.Time.Before(start) || p.Time.After(end) {
		c.vp.NavigateTo(p.Time.Add(c.vp.Duration() / 2))
	}
}

// Guide returns the guideline reading.
func (c *Controller) Guide() (model.Point, bool) {
	if c.guide == nil {
		return model.Point{}, false
	}
	return *c.guide, true
}

// Commit handles a click at x according to the active mode: the guideline
// moves to the nearest reading, which then becomes a max/min boundary or a
// placement candidate.
func (c *Controller) Commit(x float64) error {
	p, ok := c.nearestAt(x)
	if !ok {
		return nil
	}
	c.guide = &p
	return c.CommitGuide()
}

// CommitGuide commits the current guideline reading according to the mode.
func (c *Controller) CommitGuide() error {
	if c.guide == nil {
		return nil
	}
	p := *c.guide
	mode := c.ann.Mode()
	switch mode.Kind {
	case annotate.ModeManualRange:
		res, err := c.ann.CompleteRangeSelection(p)
		if err != nil {
			return err
		}
		if res != nil {
			logging.Debugf("range result on channel %d: min=%g max=%g", res.Channel, res.Min, res.Max)
		}
		return nil
	case annotate.ModeSequential, annotate.ModeSingle:
		label, ok := c.ann.ExpectedLabel()
		if !ok {
			return nil
		}
		res := snap.Snap(c.Series(), c.ann.Sensor(), c.ann.Points(), label, p)
		logging.Debugf("snap %s: %s -> %s", label, p.Time.Format(time.RFC3339), res.Method)
		return c.ann.PlacePoint(label, res.Point)
	}
	return nil
}

func (c *Controller) dropMarker(label string, x float64) error {
	p, ok := c.nearestAt(x)
	if !ok {
		return nil
	}
	res := snap.Snap(c.Series(), c.ann.Sensor(), c.ann.Points(), label, p)
	return c.ann.SetPoint(label, res.Point)
}

// Series returns the non-missing readings of the selected channel.
func (c *Controller) Series() []model.Point {
	s, ok := c.series[c.channel]
	if !ok {
		s = c.ds.Series(c.channel)
		c.series[c.channel] = s
	}
	return s
}

func (c *Controller) nearestAt(x float64) (model.Point, bool) {
	return snap.Nearest(c.Series(), c.frame().PixelToTime(x))
}

// Frame returns the pixel mapping of the current view.
func (c *Controller) Frame() viewport.Frame {
	return c.frame()
}

func (c *Controller) frame() viewport.Frame {
	start, end := c.vp.Visible()
	y := viewport.ResolveYRange(c.yOverride, c.Series(), start, end)
	return c.vp.Frame(c.layout.Plot, y)
}
