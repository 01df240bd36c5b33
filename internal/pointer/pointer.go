// Package pointer classifies pointer sessions over the graph as panning,
// scrubbing, marker dragging, clicks or pinch zooms.
//
// The Machine never mutates the viewport. Each event returns the Actions the
// caller should apply.
package pointer

import (
	"math"

	"github.com/verte-zerg/sensorview/internal/viewport"
)

// State is the gesture currently in progress.
type State int

const (
	Idle State = iota
	Panning
	Scrubbing
	DraggingMarker
	Pinching
)

func (s State) String() string {
	switch s {
	case Panning:
		return "panning"
	case Scrubbing:
		return "scrubbing"
	case DraggingMarker:
		return "dragging-marker"
	case Pinching:
		return "pinching"
	default:
		return "idle"
	}
}

// Config holds the hit radii and the click threshold, in pixels.
type Config struct {
	MarkerRadius   float64
	GuideRadius    float64
	ClickThreshold float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{MarkerRadius: 20, GuideRadius: 20, ClickThreshold: 15}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MarkerRadius <= 0 {
		c.MarkerRadius = def.MarkerRadius
	}
	if c.GuideRadius <= 0 {
		c.GuideRadius = def.GuideRadius
	}
	if c.ClickThreshold <= 0 {
		c.ClickThreshold = def.ClickThreshold
	}
	return c
}

// Marker is a placed point in screen space.
type Marker struct {
	Label string
	Pos   viewport.Vec
}

// Scene is the hit-testable part of the current frame.
type Scene struct {
	Markers []Marker

	HasGuide   bool
	GuideX     float64
	GuideBox   viewport.Rect
	GuidePoint *viewport.Vec
}

// Kind tags an Action.
type Kind int

const (
	ActPan Kind = iota + 1
	ActScrub
	ActDragMarker
	ActDropMarker
	ActClick
	ActZoom
)

func (k Kind) String() string {
	switch k {
	case ActPan:
		return "pan"
	case ActScrub:
		return "scrub"
	case ActDragMarker:
		return "drag-marker"
	case ActDropMarker:
		return "drop-marker"
	case ActClick:
		return "click"
	case ActZoom:
		return "zoom"
	default:
		return "unknown"
	}
}

// Action is one instruction for the caller.
//
// ActPan carries DeltaX, the pointer movement in pixels (positive = right).
// ActZoom carries Factor (>1 zooms in) and the pinch centre in Pos.
// The other kinds carry the pointer position in Pos and, for marker
// actions, the Label.
type Action struct {
	Kind   Kind
	Pos    viewport.Vec
	DeltaX float64
	Factor float64
	Label  string
}

// Machine is the per-graph gesture state.
type Machine struct {
	cfg Config

	state State
	label string

	origin viewport.Vec
	last   viewport.Vec
	moved  float64
	armed  bool

	pinchDist float64
}

// New returns an idle machine. Zero config fields take the defaults.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg.normalized()}
}

// Config returns the effective thresholds.
func (m *Machine) Config() Config {
	return m.cfg
}

// State returns the current gesture.
func (m *Machine) State() State {
	return m.state
}

// Label returns the marker being dragged, if any.
func (m *Machine) Label() string {
	if m.state != DraggingMarker {
		return ""
	}
	return m.label
}

// Moved returns the accumulated pointer travel of the current gesture.
func (m *Machine) Moved() float64 {
	return m.moved
}

// Classify decides which gesture a press at p starts.
func (m *Machine) Classify(p viewport.Vec, scene Scene) (State, string) {
	best := ""
	bestDist := math.Inf(1)
	for _, mk := range scene.Markers {
		d := p.Dist(mk.Pos)
		if d <= m.cfg.MarkerRadius && d < bestDist {
			best, bestDist = mk.Label, d
		}
	}
	if best != "" {
		return DraggingMarker, best
	}
	if scene.HasGuide {
		if math.Abs(p.X-scene.GuideX) <= m.cfg.GuideRadius {
			return Scrubbing, ""
		}
		if scene.GuideBox.W > 0 && scene.GuideBox.Dist(p) <= m.cfg.GuideRadius {
			return Scrubbing, ""
		}
		if scene.GuidePoint != nil && viewport.Near(p, *scene.GuidePoint, m.cfg.GuideRadius) {
			return Scrubbing, ""
		}
	}
	return Panning, ""
}

// Down starts a single-pointer gesture. It is ignored while pinching.
func (m *Machine) Down(p viewport.Vec, scene Scene) {
	if m.state == Pinching {
		return
	}
	m.state, m.label = m.Classify(p, scene)
	m.origin = p
	m.last = p
	m.moved = 0
	m.armed = false
}

// Move advances the gesture. Panning is held back until the travel exceeds
// the click threshold, then catches up from the press position.
func (m *Machine) Move(p viewport.Vec) []Action {
	if m.state == Idle || m.state == Pinching {
		return nil
	}
	m.moved += p.Dist(m.last)
	prev := m.last
	m.last = p
	switch m.state {
	case Panning:
		if !m.armed {
			if m.moved < m.cfg.ClickThreshold {
				return nil
			}
			m.armed = true
			prev = m.origin
		}
		dx := p.X - prev.X
		if dx == 0 {
			return nil
		}
		return []Action{{Kind: ActPan, DeltaX: dx, Pos: p}}
	case Scrubbing:
		return []Action{{Kind: ActScrub, Pos: p}}
	case DraggingMarker:
		return []Action{{Kind: ActDragMarker, Label: m.label, Pos: p}}
	}
	return nil
}

// Up ends the gesture. Travel below the click threshold turns any gesture
// into a click.
func (m *Machine) Up(p viewport.Vec) []Action {
	state, label := m.state, m.label
	if state == Idle || state == Pinching {
		return nil
	}
	m.moved += p.Dist(m.last)
	moved := m.moved
	m.reset()
	if moved < m.cfg.ClickThreshold {
		return []Action{{Kind: ActClick, Pos: p}}
	}
	if state == DraggingMarker {
		return []Action{{Kind: ActDropMarker, Label: label, Pos: p}}
	}
	return nil
}

// PinchStart intercepts any single-pointer gesture in progress.
func (m *Machine) PinchStart(a, b viewport.Vec) {
	m.reset()
	m.state = Pinching
	m.pinchDist = a.Dist(b)
}

// PinchMove emits a zoom by the ratio of the new finger distance to the
// previous one, centred between the fingers.
func (m *Machine) PinchMove(a, b viewport.Vec) []Action {
	if m.state != Pinching {
		return nil
	}
	d := a.Dist(b)
	if m.pinchDist <= 0 || d <= 0 {
		m.pinchDist = d
		return nil
	}
	factor := d / m.pinchDist
	m.pinchDist = d
	if factor == 1 {
		return nil
	}
	center := viewport.Vec{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	return []Action{{Kind: ActZoom, Factor: factor, Pos: center}}
}

// PinchEnd returns the machine to Idle.
func (m *Machine) PinchEnd() {
	if m.state == Pinching {
		m.reset()
	}
}

// Cancel abandons any gesture without emitting actions.
func (m *Machine) Cancel() {
	m.reset()
}

func (m *Machine) reset() {
	m.state = Idle
	m.label = ""
	m.moved = 0
	m.armed = false
	m.pinchDist = 0
}
