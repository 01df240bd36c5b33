package pointer

import (
	"testing"

	"github.com/verte-zerg/sensorview/internal/viewport"
)

func vec(x, y float64) viewport.Vec {
	return viewport.Vec{X: x, Y: y}
}

func guideScene() Scene {
	pt := vec(300, 120)
	return Scene{
		Markers: []Marker{
			{Label: "ST", Pos: vec(100, 100)},
			{Label: "EN", Pos: vec(115, 100)},
		},
		HasGuide:   true,
		GuideX:     300,
		GuideBox:   viewport.Rect{X: 310, Y: 10, W: 80, H: 30},
		GuidePoint: &pt,
	}
}

func TestClassifyPriority(t *testing.T) {
	m := New(Config{})
	scene := guideScene()

	cases := []struct {
		p     viewport.Vec
		state State
		label string
	}{
		{vec(112, 104), DraggingMarker, "EN"},
		{vec(98, 90), DraggingMarker, "ST"},
		{vec(318, 400), Scrubbing, ""},
		{vec(405, 20), Scrubbing, ""},
		{vec(600, 300), Panning, ""},
	}
	for _, tc := range cases {
		state, label := m.Classify(tc.p, scene)
		if state != tc.state || label != tc.label {
			t.Fatalf("press at %+v: expected %s/%q, got %s/%q", tc.p, tc.state, tc.label, state, label)
		}
	}

	// A marker sitting on the guideline wins over scrubbing.
	scene.Markers = append(scene.Markers, Marker{Label: "Z1", Pos: vec(300, 200)})
	if state, label := m.Classify(vec(305, 205), scene); state != DraggingMarker || label != "Z1" {
		t.Fatalf("expected marker priority, got %s/%q", state, label)
	}
}

func TestSmallMovementIsClick(t *testing.T) {
	m := New(Config{})
	m.Down(vec(600, 300), guideScene())
	if acts := m.Move(vec(605, 303)); len(acts) != 0 {
		t.Fatalf("expected no pan below threshold, got %+v", acts)
	}
	acts := m.Up(vec(608, 304))
	if len(acts) != 1 || acts[0].Kind != ActClick {
		t.Fatalf("expected click, got %+v", acts)
	}
	if m.State() != Idle {
		t.Fatalf("expected idle after release, got %s", m.State())
	}
}

func TestPanCatchesUpAfterThreshold(t *testing.T) {
	m := New(Config{})
	m.Down(vec(600, 300), guideScene())
	if acts := m.Move(vec(610, 300)); len(acts) != 0 {
		t.Fatalf("expected held pan, got %+v", acts)
	}
	acts := m.Move(vec(620, 300))
	if len(acts) != 1 || acts[0].Kind != ActPan || acts[0].DeltaX != 20 {
		t.Fatalf("expected catch-up pan of 20, got %+v", acts)
	}
	acts = m.Move(vec(615, 300))
	if len(acts) != 1 || acts[0].DeltaX != -5 {
		t.Fatalf("expected pan of -5, got %+v", acts)
	}
	if acts := m.Up(vec(615, 300)); len(acts) != 0 {
		t.Fatalf("expected no click after a drag, got %+v", acts)
	}
}

func TestAccumulatorCountsTravelNotDisplacement(t *testing.T) {
	m := New(Config{})
	m.Down(vec(600, 300), guideScene())
	m.Move(vec(610, 300))
	m.Move(vec(600, 300))
	if acts := m.Up(vec(600, 300)); len(acts) != 0 {
		t.Fatalf("back-and-forth travel of 20px must not click, got %+v", acts)
	}
}

func TestScrubbingEmitsGuidePositions(t *testing.T) {
	m := New(Config{})
	m.Down(vec(302, 200), guideScene())
	if m.State() != Scrubbing {
		t.Fatalf("expected scrubbing, got %s", m.State())
	}
	acts := m.Move(vec(340, 200))
	if len(acts) != 1 || acts[0].Kind != ActScrub || acts[0].Pos.X != 340 {
		t.Fatalf("expected scrub to 340, got %+v", acts)
	}
}

func TestMarkerDragDrops(t *testing.T) {
	m := New(Config{})
	m.Down(vec(100, 100), guideScene())
	if m.Label() != "ST" {
		t.Fatalf("expected ST drag, got %q", m.Label())
	}
	acts := m.Move(vec(150, 100))
	if len(acts) != 1 || acts[0].Kind != ActDragMarker || acts[0].Label != "ST" {
		t.Fatalf("unexpected drag actions %+v", acts)
	}
	acts = m.Up(vec(160, 100))
	if len(acts) != 1 || acts[0].Kind != ActDropMarker || acts[0].Label != "ST" || acts[0].Pos.X != 160 {
		t.Fatalf("unexpected drop actions %+v", acts)
	}
}

func TestPinchInterceptsPanning(t *testing.T) {
	m := New(Config{})
	m.Down(vec(600, 300), guideScene())
	m.Move(vec(640, 300))
	m.PinchStart(vec(100, 100), vec(200, 100))
	if m.State() != Pinching {
		t.Fatalf("expected pinching, got %s", m.State())
	}
	if acts := m.Move(vec(700, 300)); len(acts) != 0 {
		t.Fatalf("single pointer moves must be ignored while pinching, got %+v", acts)
	}
	acts := m.PinchMove(vec(50, 100), vec(250, 100))
	if len(acts) != 1 || acts[0].Kind != ActZoom || acts[0].Factor != 2 || acts[0].Pos.X != 150 {
		t.Fatalf("expected zoom x2 at 150, got %+v", acts)
	}
	if acts := m.Up(vec(700, 300)); len(acts) != 0 {
		t.Fatalf("release while pinching must not click, got %+v", acts)
	}
	m.PinchEnd()
	if m.State() != Idle {
		t.Fatalf("expected idle after pinch, got %s", m.State())
	}
}
