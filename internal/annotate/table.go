package annotate

import (
	"math"
	"sort"
	"time"

	"github.com/verte-zerg/sensorview/internal/model"
)

// Table is the derived results view of a job.
type Table struct {
	HasResponse     bool
	ResponseSeconds int
	Points          []model.NamedPoint
	Results         []model.ManualResult
}

// Table derives the results view: ST to EN response time in whole seconds,
// points in label order, results by channel in creation order.
func (m *Manager) Table() Table {
	return BuildTable(m.job)
}

// BuildTable derives the results view of any job.
func BuildTable(job *model.Job) Table {
	var t Table
	st, okST := job.Points[model.LabelStart]
	en, okEN := job.Points[model.LabelEnd]
	if okST && okEN {
		t.HasResponse = true
		t.ResponseSeconds = ResponseSeconds(st.Time, en.Time)
	}

	seen := map[string]bool{}
	for _, label := range job.Sensor.Labels() {
		if p, ok := job.Points[label]; ok {
			t.Points = append(t.Points, p)
			seen[label] = true
		}
	}
	// Points from an older label set still show, after the known ones.
	var extra []string
	for label := range job.Points {
		if !seen[label] {
			extra = append(extra, label)
		}
	}
	sort.Strings(extra)
	for _, label := range extra {
		t.Points = append(t.Points, job.Points[label])
	}

	channels := make([]int, 0, len(job.Results))
	for ch := range job.Results {
		channels = append(channels, ch)
	}
	sort.Ints(channels)
	for _, ch := range channels {
		t.Results = append(t.Results, job.Results[ch]...)
	}
	return t
}

// ResponseSeconds rounds the time from start to end to whole seconds.
func ResponseSeconds(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Seconds()))
}
