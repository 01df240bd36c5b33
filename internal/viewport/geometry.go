package viewport

import (
	"math"
	"time"

	"github.com/verte-zerg/sensorview/internal/model"
)

// Default Y bounds for windows with fewer than two readings.
const (
	DefaultYMin = 0.0
	DefaultYMax = 100.0
)

const yPadding = 0.10

// Vec is a position in pixel space.
type Vec struct {
	X float64
	Y float64
}

// Dist returns the euclidean distance between two positions.
func (a Vec) Dist(b Vec) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Contains reports whether p lies inside r (edges included).
func (r Rect) Contains(p Vec) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Dist returns the distance from p to the nearest point of r; 0 inside.
func (r Rect) Dist(p Vec) float64 {
	dx := math.Max(math.Max(r.X-p.X, 0), p.X-(r.X+r.W))
	dy := math.Max(math.Max(r.Y-p.Y, 0), p.Y-(r.Y+r.H))
	return math.Hypot(dx, dy)
}

// Near reports whether p is within radius of q.
func Near(p, q Vec, radius float64) bool {
	return p.Dist(q) <= radius
}

// YRange is the value span mapped onto the plot height.
type YRange struct {
	Min float64
	Max float64
}

// Valid reports whether the range can be used for mapping.
func (y YRange) Valid() bool {
	return !math.IsNaN(y.Min) && !math.IsNaN(y.Max) && y.Max > y.Min
}

// AutoYRange computes padded bounds over the readings inside [start, end].
func AutoYRange(points []model.Point, start, end time.Time) YRange {
	count := 0
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	for _, p := range points {
		if p.Time.Before(start) || p.Time.After(end) {
			continue
		}
		count++
		minVal = math.Min(minVal, p.Value)
		maxVal = math.Max(maxVal, p.Value)
	}
	if count < 2 {
		return YRange{Min: DefaultYMin, Max: DefaultYMax}
	}
	if maxVal == minVal {
		return YRange{Min: minVal - 1, Max: maxVal + 1}
	}
	pad := (maxVal - minVal) * yPadding
	return YRange{Min: minVal - pad, Max: maxVal + pad}
}

// ResolveYRange returns override when it is usable and the auto range otherwise.
func ResolveYRange(override *YRange, points []model.Point, start, end time.Time) YRange {
	if override != nil && override.Valid() {
		return *override
	}
	return AutoYRange(points, start, end)
}

// Frame maps the visible window onto a plot rectangle.
type Frame struct {
	Start time.Time
	End   time.Time
	Plot  Rect
	Y     YRange
}

// Frame returns the mapping of the current window onto plot.
func (v *Viewport) Frame(plot Rect, y YRange) Frame {
	start, end := v.Visible()
	return Frame{Start: start, End: end, Plot: plot, Y: y}
}

// TimeToPixel maps a timestamp to an x coordinate.
func (f Frame) TimeToPixel(t time.Time) float64 {
	span := f.End.Sub(f.Start)
	if span <= 0 {
		return f.Plot.X
	}
	return f.Plot.X + float64(t.Sub(f.Start))/float64(span)*f.Plot.W
}

// PixelToTime maps an x coordinate, clamped to the plot, to a timestamp.
func (f Frame) PixelToTime(x float64) time.Time {
	if f.Plot.W <= 0 {
		return f.Start
	}
	x = clamp(x, f.Plot.X, f.Plot.X+f.Plot.W)
	frac := (x - f.Plot.X) / f.Plot.W
	return f.Start.Add(time.Duration(frac * float64(f.End.Sub(f.Start))))
}

// ValueToPixel maps a reading to a y coordinate; larger values are higher.
func (f Frame) ValueToPixel(v float64) float64 {
	y := f.yRange()
	return f.Plot.Y + (1-(v-y.Min)/(y.Max-y.Min))*f.Plot.H
}

// PixelToValue maps a y coordinate back to a reading.
func (f Frame) PixelToValue(py float64) float64 {
	y := f.yRange()
	if f.Plot.H <= 0 {
		return y.Min
	}
	frac := 1 - (py-f.Plot.Y)/f.Plot.H
	return y.Min + frac*(y.Max-y.Min)
}

// PointToPixel maps a sample to pixel space.
func (f Frame) PointToPixel(p model.Point) Vec {
	return Vec{X: f.TimeToPixel(p.Time), Y: f.ValueToPixel(p.Value)}
}

// PerPixel returns the time covered by one horizontal pixel.
func (f Frame) PerPixel() time.Duration {
	if f.Plot.W <= 0 {
		return 0
	}
	return time.Duration(float64(f.End.Sub(f.Start)) / f.Plot.W)
}

func (f Frame) yRange() YRange {
	if f.Y.Valid() {
		return f.Y
	}
	return YRange{Min: DefaultYMin, Max: DefaultYMax}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
