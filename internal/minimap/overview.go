package minimap

import (
	"math"

	"github.com/verte-zerg/sensorview/internal/model"
)

// Bucket is the min/max envelope of the readings in one overview column.
type Bucket struct {
	Min   float64
	Max   float64
	Count int
}

// Overview reduces a channel to n min/max buckets across the full window.
// Empty buckets have Count == 0.
func Overview(points []model.Point, full model.TimeWindow, n int) []Bucket {
	if n <= 0 {
		return nil
	}
	out := make([]Bucket, n)
	for i := range out {
		out[i] = Bucket{Min: math.Inf(1), Max: math.Inf(-1)}
	}
	span := full.Span()
	for _, p := range points {
		idx := 0
		if span > 0 {
			idx = int(float64(p.Time.Sub(full.Min)) / float64(span) * float64(n))
		}
		if idx < 0 || idx > n {
			continue
		}
		if idx == n {
			idx = n - 1
		}
		b := &out[idx]
		b.Min = math.Min(b.Min, p.Value)
		b.Max = math.Max(b.Max, p.Value)
		b.Count++
	}
	for i := range out {
		if out[i].Count == 0 {
			out[i].Min, out[i].Max = 0, 0
		}
	}
	return out
}
