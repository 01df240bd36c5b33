// Package model defines shared data structures.
package model

import (
	"math"
	"sort"
	"time"
)

// RangeAll is the ViewportState range that shows the whole dataset.
const RangeAll time.Duration = 0

// Missing marks an absent reading in Sample.Values.
var Missing = math.NaN()

// IsMissing reports whether v is an absent reading.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Channel describes one column of a loaded dataset.
type Channel struct {
	ID   int
	Name string
	Unit string
}

// Sample is one row of readings; Values has one entry per channel.
type Sample struct {
	Time   time.Time
	Values []float64
}

// Point is a single (timestamp, value) pair on a channel.
type Point struct {
	Time  time.Time
	Value float64
}

// Dataset is the parsed, immutable input of a graph view.
type Dataset struct {
	Channels         []Channel
	Samples          []Sample
	MeasurementRange float64
}

// TimeWindow is the full timestamp span of a dataset.
type TimeWindow struct {
	Min time.Time
	Max time.Time
}

// Span returns Max-Min.
func (w TimeWindow) Span() time.Duration {
	return w.Max.Sub(w.Min)
}

// ViewportState is the persisted part of a viewport. Range == RangeAll shows
// the full window and End is ignored; a zero End means "not set yet".
type ViewportState struct {
	End   time.Time
	Range time.Duration
}

// NamedPoint is a labeled calibration point.
type NamedPoint struct {
	Label string
	Time  time.Time
	Value float64
}

// RangeSelection is the pending max/min selection of a channel.
type RangeSelection struct {
	Channel int
	Start   *Point
	End     *Point
}

// ManualResult is a completed max/min analysis over a time range.
type ManualResult struct {
	ID      string
	Channel int
	Start   time.Time
	End     time.Time
	Min     float64
	Max     float64
	Diff    float64
}

// Phase is a named time range reported by the phase analysis service.
type Phase struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Job owns every annotation made on a dataset.
type Job struct {
	ID         string
	Name       string
	Sensor     SensorType
	SourcePath string
	Points     map[string]NamedPoint
	Results    map[int][]ManualResult
	Phases     []Phase
	View       ViewportState
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ViewConfig defines graph view settings.
type ViewConfig struct {
	Sensor         SensorType
	Range          time.Duration
	Channel        int
	Width          int
	Height         int
	MarkerRadius   float64
	GuideRadius    float64
	ClickThreshold float64
	PhaseURL       string
	PhaseTimeout   time.Duration
}

// NewJob returns an empty job for the given sensor type.
func NewJob(id, name string, sensor SensorType) *Job {
	return &Job{
		ID:      id,
		Name:    name,
		Sensor:  sensor,
		Points:  map[string]NamedPoint{},
		Results: map[int][]ManualResult{},
	}
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() Job {
	out := *j
	out.Points = make(map[string]NamedPoint, len(j.Points))
	for k, v := range j.Points {
		out.Points[k] = v
	}
	out.Results = make(map[int][]ManualResult, len(j.Results))
	for ch, results := range j.Results {
		out.Results[ch] = append([]ManualResult(nil), results...)
	}
	out.Phases = append([]Phase(nil), j.Phases...)
	return out
}

// HasChannel reports whether ch indexes a channel of the dataset.
func (d *Dataset) HasChannel(ch int) bool {
	return ch >= 0 && ch < len(d.Channels)
}

// Window returns the min/max timestamp across all samples.
func (d *Dataset) Window() TimeWindow {
	if len(d.Samples) == 0 {
		return TimeWindow{}
	}
	w := TimeWindow{Min: d.Samples[0].Time, Max: d.Samples[0].Time}
	for _, s := range d.Samples[1:] {
		if s.Time.Before(w.Min) {
			w.Min = s.Time
		}
		if s.Time.After(w.Max) {
			w.Max = s.Time
		}
	}
	return w
}

// Series returns the non-missing readings of a channel ordered by time.
func (d *Dataset) Series(ch int) []Point {
	if !d.HasChannel(ch) {
		return nil
	}
	out := make([]Point, 0, len(d.Samples))
	for _, s := range d.Samples {
		if ch >= len(s.Values) || IsMissing(s.Values[ch]) {
			continue
		}
		out = append(out, Point{Time: s.Time, Value: s.Values[ch]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// SortSamples orders samples by timestamp, keeping equal timestamps stable.
func (d *Dataset) SortSamples() {
	sort.SliceStable(d.Samples, func(i, j int) bool {
		return d.Samples[i].Time.Before(d.Samples[j].Time)
	})
}
