package graph

import (
	"fmt"

	"github.com/verte-zerg/sensorview/internal/annotate"
	"github.com/verte-zerg/sensorview/internal/model"
	"github.com/verte-zerg/sensorview/internal/pointer"
	"github.com/verte-zerg/sensorview/internal/render"
)

// Scene builds the render state of the current view.
func (c *Controller) Scene() render.Scene {
	f := c.frame()
	job := c.ann.Job()

	var ch model.Channel
	if c.ds.HasChannel(c.channel) {
		ch = c.ds.Channels[c.channel]
	}
	s := render.Scene{
		Title:    c.title,
		Status:   c.status(job),
		Channel:  ch,
		Unit:     ch.Unit,
		Layout:   c.layout,
		Full:     c.vp.Full(),
		Start:    f.Start,
		End:      f.End,
		Y:        f.Y,
		Series:   c.Series(),
		Results:  job.Results[c.channel],
		Phases:   job.Phases,
		Dragging: c.dragLabel,
	}
	for _, label := range pointLabels(job) {
		p := job.Points[label]
		pt := model.Point{Time: p.Time, Value: p.Value}
		if label == c.dragLabel && c.dragTarget != nil {
			pt = *c.dragTarget
		}
		s.Markers = append(s.Markers, render.Marker{Label: label, Point: pt})
	}
	if c.guide != nil {
		x := f.TimeToPixel(c.guide.Time)
		s.Guide = &render.Guide{
			Point: *c.guide,
			Box:   render.GuideBox(c.layout.Plot, x),
			Text:  render.Readout(*c.guide, ch.Unit),
		}
	}
	if sel, ok := c.ann.Selection(); ok && sel.Start != nil && sel.Channel == c.channel {
		p := *sel.Start
		s.Pending = &p
	}
	return s
}

// pointerScene is the hit-test view of the scene.
func (c *Controller) pointerScene() pointer.Scene {
	f := c.frame()
	job := c.ann.Job()
	var ps pointer.Scene
	for _, label := range pointLabels(job) {
		p := job.Points[label]
		if p.Time.Before(f.Start) || p.Time.After(f.End) {
			continue
		}
		ps.Markers = append(ps.Markers, pointer.Marker{
			Label: label,
			Pos:   f.PointToPixel(model.Point{Time: p.Time, Value: p.Value}),
		})
	}
	if c.guide != nil {
		x := f.TimeToPixel(c.guide.Time)
		pos := f.PointToPixel(*c.guide)
		ps.HasGuide = true
		ps.GuideX = x
		ps.GuideBox = render.GuideBox(c.layout.Plot, x)
		ps.GuidePoint = &pos
	}
	return ps
}

func (c *Controller) status(job model.Job) string {
	mode := c.ann.Mode()
	status := mode.Kind.String()
	if label, ok := c.ann.ExpectedLabel(); ok {
		status += " " + label
	}
	if mode.Kind == annotate.ModeManualRange {
		if sel, ok := c.ann.Selection(); ok && sel.Start != nil {
			status += " (pick end)"
		} else {
			status += " (pick start)"
		}
	}
	if t := annotate.BuildTable(&job); t.HasResponse {
		status += fmt.Sprintf("  response %ds", t.ResponseSeconds)
	}
	return status
}

// pointLabels lists placed labels in sensor order, then any others.
func pointLabels(job model.Job) []string {
	t := annotate.BuildTable(&job)
	out := make([]string, 0, len(t.Points))
	for _, p := range t.Points {
		out = append(out, p.Label)
	}
	return out
}
