package annotate

import (
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/sensorview/internal/model"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return epoch.Add(time.Duration(sec) * time.Second)
}

func newDataset(values ...float64) *model.Dataset {
	ds := &model.Dataset{
		Channels: []model.Channel{{ID: 0, Name: "pH", Unit: "pH"}, {ID: 1, Name: "Temp", Unit: "C"}},
	}
	for i, v := range values {
		ds.Samples = append(ds.Samples, model.Sample{Time: at(i * 10), Values: []float64{v, 20}})
	}
	return ds
}

func newManager(t *testing.T, sensor model.SensorType, values ...float64) (*Manager, *[]model.Job) {
	t.Helper()
	m := New(newDataset(values...), model.NewJob("job-1", "test", sensor))
	var changes []model.Job
	m.OnChange(func(j model.Job) { changes = append(changes, j) })
	return m, &changes
}

func TestSequentialPlacementDeactivatesAfterLastLabel(t *testing.T) {
	m, _ := newManager(t, model.SensorDO, 1, 2, 3)
	m.ToggleSequentialPlacement()
	labels := model.SensorDO.Labels()
	for i, label := range labels {
		if m.Mode().Kind != ModeSequential || m.Mode().Index != i {
			t.Fatalf("step %d: expected sequential at %d, got %+v", i, i, m.Mode())
		}
		want, ok := m.ExpectedLabel()
		if !ok || want != label {
			t.Fatalf("step %d: expected label %s, got %s", i, label, want)
		}
		if err := m.PlacePoint(label, model.Point{Time: at(i), Value: float64(i)}); err != nil {
			t.Fatalf("place %s: %v", label, err)
		}
	}
	if m.Mode().Kind != ModeIdle {
		t.Fatalf("expected idle after %d labels, got %+v", len(labels), m.Mode())
	}
	if len(m.Job().Points) != len(labels) {
		t.Fatalf("expected %d points, got %d", len(labels), len(m.Job().Points))
	}
}

func TestSequentialIgnoresOtherLabelsForProgress(t *testing.T) {
	m, _ := newManager(t, model.SensorPH, 1)
	m.ToggleSequentialPlacement()
	if err := m.PlacePoint("S3", model.Point{Time: at(0), Value: 1}); err != nil {
		t.Fatalf("place: %v", err)
	}
	if m.Mode().Index != 0 {
		t.Fatalf("expected index to stay at 0, got %d", m.Mode().Index)
	}
	m.ToggleSequentialPlacement()
	if m.Mode().Kind != ModeIdle {
		t.Fatalf("expected toggle off, got %+v", m.Mode())
	}
}

func TestPlacePointValidatesLabelAndUpserts(t *testing.T) {
	m, changes := newManager(t, model.SensorSS, 1)
	err := m.PlacePoint("Z5", model.Point{Time: at(0), Value: 1})
	if !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel, got %v", err)
	}
	if len(*changes) != 0 {
		t.Fatalf("rejected placement must not notify")
	}
	_ = m.PlacePoint("M2", model.Point{Time: at(0), Value: 1})
	_ = m.PlacePoint("M2", model.Point{Time: at(5), Value: 4})
	p := m.Job().Points["M2"]
	if !p.Time.Equal(at(5)) || p.Value != 4 {
		t.Fatalf("expected upserted M2, got %+v", p)
	}
	if len(*changes) != 2 {
		t.Fatalf("expected 2 change notifications, got %d", len(*changes))
	}
}

func TestSinglePlacementExitsAfterLabel(t *testing.T) {
	m, _ := newManager(t, model.SensorPH, 1)
	if err := m.StartSinglePlacement("EN"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if label, _ := m.ExpectedLabel(); label != "EN" {
		t.Fatalf("expected EN, got %s", label)
	}
	_ = m.PlacePoint("EN", model.Point{Time: at(0), Value: 9.8})
	if m.Mode().Kind != ModeIdle {
		t.Fatalf("expected idle, got %+v", m.Mode())
	}
	if err := m.StartSinglePlacement("Q9"); !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestRangeSelectionComputesMinMaxDiff(t *testing.T) {
	m, changes := newManager(t, model.SensorPH, 2, 5, 1, 8)
	if err := m.StartRangeSelection(0); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := m.CompleteRangeSelection(model.Point{Time: at(20)})
	if err != nil || res != nil {
		t.Fatalf("first click: expected pending start, got %+v %v", res, err)
	}
	sel, ok := m.Selection()
	if !ok || sel.Start == nil || !sel.Start.Time.Equal(at(20)) {
		t.Fatalf("expected pending start at 20, got %+v", sel)
	}
	// Reverse order: second click before the first.
	res, err = m.CompleteRangeSelection(model.Point{Time: at(0)})
	if err != nil || res == nil {
		t.Fatalf("second click: %+v %v", res, err)
	}
	if res.Min != 1 || res.Max != 5 || res.Diff != 4 {
		t.Fatalf("expected {1,5,4}, got {%v,%v,%v}", res.Min, res.Max, res.Diff)
	}
	if !res.Start.Equal(at(0)) || !res.End.Equal(at(20)) || res.ID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if m.Mode().Kind != ModeManualRange {
		t.Fatalf("expected max/min mode to stay active")
	}
	if sel, _ := m.Selection(); sel.Start != nil {
		t.Fatalf("expected selection cleared after completion")
	}
	if len(*changes) != 1 {
		t.Fatalf("expected one notification, got %d", len(*changes))
	}
}

func TestRangeSelectionSkipsMissingAndDiscardsEmpty(t *testing.T) {
	m, _ := newManager(t, model.SensorPH, 3, model.Missing, 7)
	_ = m.StartRangeSelection(0)
	_, _ = m.CompleteRangeSelection(model.Point{Time: at(9)})
	res, err := m.CompleteRangeSelection(model.Point{Time: at(11)})
	if err != nil || res != nil {
		t.Fatalf("expected discarded selection, got %+v %v", res, err)
	}
	if len(m.Results(0)) != 0 {
		t.Fatalf("expected no results")
	}
	_, _ = m.CompleteRangeSelection(model.Point{Time: at(0)})
	res, _ = m.CompleteRangeSelection(model.Point{Time: at(20)})
	if res == nil || res.Min != 3 || res.Max != 7 {
		t.Fatalf("expected {3,7}, got %+v", res)
	}
}

func TestRangeSelectionRequiresModeAndChannel(t *testing.T) {
	m, _ := newManager(t, model.SensorPH, 1)
	if _, err := m.CompleteRangeSelection(model.Point{}); !errors.Is(err, ErrNotSelecting) {
		t.Fatalf("expected ErrNotSelecting, got %v", err)
	}
	if err := m.StartRangeSelection(5); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestModeSwitchClearsSelectionOnly(t *testing.T) {
	m, _ := newManager(t, model.SensorPH, 1, 2)
	_ = m.PlacePoint("Z1", model.Point{Time: at(0), Value: 1})
	_ = m.StartRangeSelection(0)
	_, _ = m.CompleteRangeSelection(model.Point{Time: at(0)})
	m.ToggleSequentialPlacement()
	if _, ok := m.Selection(); ok {
		t.Fatalf("expected selection cleared by mode switch")
	}
	if m.Mode().Kind != ModeSequential {
		t.Fatalf("expected exactly sequential mode, got %+v", m.Mode())
	}
	if _, ok := m.Job().Points["Z1"]; !ok {
		t.Fatalf("mode switch must keep committed points")
	}
	_ = m.StartSinglePlacement("S1")
	if m.Mode().Kind != ModeSingle || m.Mode().Index != 0 {
		t.Fatalf("expected single mode only, got %+v", m.Mode())
	}
	m.Cancel()
	if m.Mode() != (Mode{}) {
		t.Fatalf("expected idle, got %+v", m.Mode())
	}
}

func addResult(t *testing.T, m *Manager, from, to int) model.ManualResult {
	t.Helper()
	_, _ = m.CompleteRangeSelection(model.Point{Time: at(from)})
	res, err := m.CompleteRangeSelection(model.Point{Time: at(to)})
	if err != nil || res == nil {
		t.Fatalf("range %d-%d: %+v %v", from, to, res, err)
	}
	return *res
}

func TestDeletePreservesOrder(t *testing.T) {
	m, _ := newManager(t, model.SensorPH, 1, 2, 3, 4)
	_ = m.StartRangeSelection(0)
	a := addResult(t, m, 0, 10)
	b := addResult(t, m, 10, 20)
	c := addResult(t, m, 20, 30)
	if err := m.DeleteManualResult(0, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got := m.Results(0)
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != c.ID {
		t.Fatalf("expected [a c], got %+v", got)
	}
	if err := m.DeleteManualResult(0, b.ID); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
	if !m.UndoLastResult(0) {
		t.Fatalf("expected undo to remove c")
	}
	if got := m.Results(0); len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("expected [a], got %+v", got)
	}
	m.UndoLastResult(0)
	if m.UndoLastResult(0) {
		t.Fatalf("undo on empty channel must report false")
	}
}

func TestResetClearsEverything(t *testing.T) {
	m, _ := newManager(t, model.SensorPH, 1, 2)
	_ = m.PlacePoint("ST", model.Point{Time: at(0), Value: 1})
	m.SetPhases([]model.Phase{{Name: "rise", Start: at(0), End: at(10)}})
	m.SetError("boom")
	_ = m.StartRangeSelection(0)
	addResult(t, m, 0, 10)
	m.ResetAnalysis()
	job := m.Job()
	if len(job.Points) != 0 || len(job.Results) != 0 || len(job.Phases) != 0 || job.LastError != "" {
		t.Fatalf("expected empty job, got %+v", job)
	}
	if m.Mode().Kind != ModeIdle {
		t.Fatalf("expected idle after reset")
	}
}

func TestOnChangeReceivesCopy(t *testing.T) {
	m, changes := newManager(t, model.SensorPH, 1)
	_ = m.PlacePoint("Z1", model.Point{Time: at(0), Value: 1})
	(*changes)[0].Points["Z1"] = model.NamedPoint{Label: "Z1", Value: 99}
	if m.Job().Points["Z1"].Value != 1 {
		t.Fatalf("callback copy must not alias manager state")
	}
}
