package minimap

import (
	"testing"
	"time"

	"github.com/verte-zerg/sensorview/internal/model"
	"github.com/verte-zerg/sensorview/internal/viewport"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sec(n int) time.Time {
	return epoch.Add(time.Duration(n) * time.Second)
}

// newNavigator returns a 1000s dataset on a 1000px strip: one pixel per second.
func newNavigator(t *testing.T) (*Navigator, *viewport.Viewport) {
	t.Helper()
	vp := viewport.New(model.TimeWindow{Min: sec(0), Max: sec(1000)})
	vp.SetWindow(sec(400), sec(600))
	return New(vp, viewport.Rect{X: 0, Y: 0, W: 1000, H: 40}), vp
}

func TestHitTestDeadZone(t *testing.T) {
	n, _ := newNavigator(t)
	if dz := n.DeadZone(); dz != 12 {
		t.Fatalf("expected dead zone 12, got %v", dz)
	}
	cases := []struct {
		x    float64
		want Handle
	}{
		{387, HandleNone},
		{390, HandleLeft},
		{410, HandleLeft},
		{500, HandleBody},
		{595, HandleRight},
		{612, HandleRight},
		{700, HandleNone},
	}
	for _, tc := range cases {
		if got := n.HitTest(viewport.Vec{X: tc.x, Y: 10}); got != tc.want {
			t.Fatalf("x=%v: expected %s, got %s", tc.x, tc.want, got)
		}
	}
	if got := n.HitTest(viewport.Vec{X: 500, Y: 90}); got != HandleNone {
		t.Fatalf("expected none outside the strip, got %s", got)
	}
}

func TestDeadZoneShrinksForNarrowWindow(t *testing.T) {
	n, vp := newNavigator(t)
	vp.SetWindow(sec(400), sec(460))
	if dz := n.DeadZone(); dz != 12 {
		t.Fatalf("expected 12 for 60px window, got %v", dz)
	}
	n.SetArea(viewport.Rect{X: 0, Y: 0, W: 500, H: 40})
	if dz := n.DeadZone(); dz != 6 {
		t.Fatalf("expected 20%% of 30px window, got %v", dz)
	}
}

func TestDragLeftEdgeKeepsEnd(t *testing.T) {
	n, vp := newNavigator(t)
	if !n.Press(viewport.Vec{X: 400, Y: 10}) || n.Dragging() != HandleLeft {
		t.Fatalf("expected left-edge drag")
	}
	n.Drag(viewport.Vec{X: 300, Y: 10})
	start, end := vp.Visible()
	if !start.Equal(sec(300)) || !end.Equal(sec(600)) {
		t.Fatalf("expected [300, 600], got [%v, %v]", start.Sub(epoch), end.Sub(epoch))
	}
	n.Drag(viewport.Vec{X: 590, Y: 10})
	start, end = vp.Visible()
	if !start.Equal(sec(540)) || !end.Equal(sec(600)) {
		t.Fatalf("expected floor at [540, 600], got [%v, %v]", start.Sub(epoch), end.Sub(epoch))
	}
	n.Release()
	if n.Dragging() != HandleNone {
		t.Fatalf("expected drag released")
	}
}

func TestDragRightEdgeKeepsStart(t *testing.T) {
	n, vp := newNavigator(t)
	n.Press(viewport.Vec{X: 600, Y: 10})
	n.Drag(viewport.Vec{X: 900, Y: 10})
	start, end := vp.Visible()
	if !start.Equal(sec(400)) || !end.Equal(sec(900)) {
		t.Fatalf("expected [400, 900], got [%v, %v]", start.Sub(epoch), end.Sub(epoch))
	}
}

func TestDragBodyTranslatesAndClamps(t *testing.T) {
	n, vp := newNavigator(t)
	n.Press(viewport.Vec{X: 500, Y: 10})
	if n.Dragging() != HandleBody {
		t.Fatalf("expected body drag, got %s", n.Dragging())
	}
	n.Drag(viewport.Vec{X: 550, Y: 10})
	start, end := vp.Visible()
	if !start.Equal(sec(450)) || !end.Equal(sec(650)) {
		t.Fatalf("expected [450, 650], got [%v, %v]", start.Sub(epoch), end.Sub(epoch))
	}
	n.Drag(viewport.Vec{X: 1000, Y: 10})
	start, end = vp.Visible()
	if !start.Equal(sec(800)) || !end.Equal(sec(1000)) {
		t.Fatalf("expected clamp to [800, 1000], got [%v, %v]", start.Sub(epoch), end.Sub(epoch))
	}
}

func TestPressOutsideWindowNavigates(t *testing.T) {
	n, vp := newNavigator(t)
	if !n.Press(viewport.Vec{X: 800, Y: 10}) {
		t.Fatalf("expected press to be consumed")
	}
	if n.Dragging() != HandleNone {
		t.Fatalf("navigation must not start a drag")
	}
	_, end := vp.Visible()
	if !end.Equal(sec(800)) {
		t.Fatalf("expected end at click time 800, got %v", end.Sub(epoch))
	}
	if n.Press(viewport.Vec{X: 800, Y: 100}) {
		t.Fatalf("press outside the strip must not be consumed")
	}
}

func TestOverviewBuckets(t *testing.T) {
	points := []model.Point{
		{Time: sec(0), Value: 1},
		{Time: sec(100), Value: 5},
		{Time: sec(600), Value: 3},
		{Time: sec(1000), Value: 9},
	}
	buckets := Overview(points, model.TimeWindow{Min: sec(0), Max: sec(1000)}, 2)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Min != 1 || buckets[0].Max != 5 || buckets[0].Count != 2 {
		t.Fatalf("unexpected first bucket %+v", buckets[0])
	}
	if buckets[1].Min != 3 || buckets[1].Max != 9 || buckets[1].Count != 2 {
		t.Fatalf("unexpected second bucket %+v", buckets[1])
	}
}
