// Package snap turns a raw placement candidate into the sample a calibration
// point should sit on.
package snap

import (
	"sort"
	"time"

	"github.com/verte-zerg/sensorview/internal/model"
)

// Method records how a point was chosen.
type Method int

const (
	MethodNone Method = iota
	MethodNearest
	MethodCrossing
)

func (m Method) String() string {
	switch m {
	case MethodNearest:
		return "nearest"
	case MethodCrossing:
		return "crossing"
	default:
		return "none"
	}
}

// Response thresholds.
const (
	phHighTarget   = 9.7
	phLowTarget    = 4.3
	phNeutral      = 7.0
	doTarget       = 1.0
	spanTargetFrac = 0.9
)

// Result is a snapped point.
type Result struct {
	Point  model.Point
	Method Method
	Target float64
}

// Nearest returns the reading closest in time to t. Earlier readings win ties.
// series must be sorted by time and free of missing values.
func Nearest(series []model.Point, t time.Time) (model.Point, bool) {
	if len(series) == 0 {
		return model.Point{}, false
	}
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].Time.Before(t)
	})
	switch {
	case i == 0:
		return series[0], true
	case i == len(series):
		return series[len(series)-1], true
	}
	before, after := series[i-1], series[i]
	if t.Sub(before.Time) <= after.Time.Sub(t) {
		return before, true
	}
	return after, true
}

// Target returns the EN threshold for the sensor, given the value the
// candidate snapped to and the points placed so far.
func Target(sensor model.SensorType, value float64, points map[string]model.NamedPoint) (float64, bool) {
	switch sensor {
	case model.SensorPH:
		if value > phNeutral {
			return phHighTarget, true
		}
		return phLowTarget, true
	case model.SensorDO:
		return doTarget, true
	case model.SensorTurbidity, model.SensorChlorine, model.SensorDefault:
		s1, ok := points[model.LabelSpan1]
		if !ok || model.IsMissing(s1.Value) {
			return 0, false
		}
		return s1.Value * spanTargetFrac, true
	default:
		return 0, false
	}
}

// Snap resolves a candidate for label on series. Every label snaps to the
// nearest reading; EN additionally moves to the closest threshold crossing
// after ST when one exists.
func Snap(series []model.Point, sensor model.SensorType, points map[string]model.NamedPoint, label string, candidate model.Point) Result {
	nearest, ok := Nearest(series, candidate.Time)
	if !ok {
		return Result{Point: candidate, Method: MethodNone}
	}
	res := Result{Point: nearest, Method: MethodNearest}
	if label != model.LabelEnd {
		return res
	}
	target, ok := Target(sensor, nearest.Value, points)
	if !ok {
		return res
	}
	res.Target = target

	from := 0
	if st, ok := points[model.LabelStart]; ok {
		from = sort.Search(len(series), func(i int) bool {
			return !series[i].Time.Before(st.Time)
		})
	}
	hit, ok := closestCrossing(series[from:], target, candidate.Time)
	if !ok {
		return res
	}
	res.Point = hit
	res.Method = MethodCrossing
	return res
}

// closestCrossing scans consecutive pairs for a crossing of target and
// returns the second reading of the pair nearest to t.
func closestCrossing(series []model.Point, target float64, t time.Time) (model.Point, bool) {
	var (
		best  model.Point
		found bool
		gap   time.Duration
	)
	for i := 1; i < len(series); i++ {
		a, b := series[i-1].Value, series[i].Value
		if !crosses(a, b, target) {
			continue
		}
		d := absDuration(series[i].Time.Sub(t))
		if !found || d < gap {
			best, gap, found = series[i], d, true
		}
	}
	return best, found
}

func crosses(a, b, target float64) bool {
	return (a < target && b >= target) || (a > target && b <= target)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
