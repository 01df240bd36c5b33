package graphui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/sensorview/internal/annotate"
	"github.com/verte-zerg/sensorview/internal/model"
	"github.com/verte-zerg/sensorview/internal/phase"
	"github.com/verte-zerg/sensorview/internal/pointer"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type memSaver struct {
	saves int
	last  model.Job
	err   error
}

func (s *memSaver) SaveJob(_ context.Context, job model.Job) error {
	s.saves++
	s.last = job
	return s.err
}

type stubAnalyzer struct {
	res phase.Response
	err error
}

func (a stubAnalyzer) Analyze(context.Context, phase.Request) (phase.Response, error) {
	return a.res, a.err
}

func newTestModel(t *testing.T, saver Saver, runner *phase.Runner) *Model {
	t.Helper()
	ds := &model.Dataset{Channels: []model.Channel{{ID: 0, Name: "pH", Unit: "pH"}, {ID: 1, Name: "Temp", Unit: "C"}}}
	for s := 0; s <= 1200; s += 5 {
		ds.Samples = append(ds.Samples, model.Sample{
			Time:   epoch.Add(time.Duration(s) * time.Second),
			Values: []float64{float64(s % 100), 20},
		})
	}
	ann := annotate.New(ds, model.NewJob("job", "test", model.SensorPH))
	opts := Options{Title: "test", Pointer: pointer.DefaultConfig(), Runner: runner}
	if saver != nil {
		opts.Saver = saver
	}
	m := NewModel(ds, ann, opts)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func click(m *Model, col, row int) {
	m.Update(tea.MouseMsg{X: col, Y: row, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m.Update(tea.MouseMsg{X: col, Y: row, Action: tea.MouseActionRelease, Button: tea.MouseButtonNone})
}

func TestCellToPixelCentres(t *testing.T) {
	p := cellToPixel(2, 3)
	if p.X != 20 || p.Y != 56 {
		t.Fatalf("expected (20, 56), got %+v", p)
	}
}

func TestSequentialClickPlacesAndSaves(t *testing.T) {
	saver := &memSaver{}
	m := newTestModel(t, saver, nil)
	m.Update(runes("s"))
	if m.ann.Mode().Kind != annotate.ModeSequential {
		t.Fatalf("expected sequential mode, got %v", m.ann.Mode().Kind)
	}
	click(m, 50, 5)
	if _, ok := m.ann.Job().Points["Z1"]; !ok {
		t.Fatalf("expected Z1 to be placed")
	}
	if label, _ := m.ann.ExpectedLabel(); label != "S1" {
		t.Fatalf("expected next label S1, got %q", label)
	}
	if saver.saves == 0 {
		t.Fatalf("expected the draft to be saved")
	}
}

func TestPresetKeysChangeRange(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.Update(runes("2"))
	if got := m.ctrl.Viewport().Duration(); got != 5*time.Minute {
		t.Fatalf("expected 5m, got %v", got)
	}
	m.Update(runes("6"))
	if !m.ctrl.Viewport().IsAll() {
		t.Fatalf("expected all range")
	}
}

func TestSinglePlacementPrompt(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.Update(runes("p"))
	if !m.prompt {
		t.Fatalf("expected label prompt")
	}
	m.Update(runes("s1"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	mode := m.ann.Mode()
	if mode.Kind != annotate.ModeSingle || mode.Label != "S1" {
		t.Fatalf("expected single S1, got %+v", mode)
	}

	m.Update(runes("p"))
	m.Update(runes("Q9"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.errMsg == "" {
		t.Fatalf("expected unknown label error")
	}
}

func TestRangeModeAndTableDelete(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.Update(runes("m"))
	click(m, 30, 5)
	click(m, 60, 5)
	if got := len(m.ann.Results(0)); got != 1 {
		t.Fatalf("expected one result, got %d", got)
	}
	m.Update(runes("t"))
	if !m.showTable || len(m.resultRefs) != 1 {
		t.Fatalf("expected table with one row, refs=%d", len(m.resultRefs))
	}
	if !strings.Contains(m.View(), "Diff") {
		t.Fatalf("expected results table in view")
	}
	m.Update(runes("x"))
	if got := len(m.ann.Results(0)); got != 0 {
		t.Fatalf("expected result deleted, got %d", got)
	}
	m.Update(runes("t"))
	if m.showTable {
		t.Fatalf("expected table closed")
	}
}

func TestTableDeleteOnFirstOpenSavesEachRemoval(t *testing.T) {
	saver := &memSaver{}
	m := newTestModel(t, saver, nil)
	m.Update(runes("m"))
	click(m, 30, 5)
	click(m, 60, 5)
	click(m, 35, 6)
	click(m, 55, 6)
	if got := len(m.ann.Results(0)); got != 2 {
		t.Fatalf("expected two results, got %d", got)
	}
	m.Update(runes("t"))
	if c := m.results.Cursor(); c != 0 {
		t.Fatalf("expected cursor on first row, got %d", c)
	}
	before := saver.saves
	m.Update(runes("x"))
	if got := len(m.ann.Results(0)); got != 1 {
		t.Fatalf("expected one result left, got %d (notice %q)", got, m.notice)
	}
	if c := m.results.Cursor(); c != 0 {
		t.Fatalf("expected cursor to stay on a row, got %d", c)
	}
	m.Update(runes("x"))
	if got := len(m.ann.Results(0)); got != 0 {
		t.Fatalf("expected all results deleted, got %d", got)
	}
	if saver.saves < before+2 {
		t.Fatalf("expected a save per deletion, saves went %d -> %d", before, saver.saves)
	}
	if len(saver.last.Results[0]) != 0 {
		t.Fatalf("expected saved job without results, got %+v", saver.last.Results)
	}
}

func TestPhaseAnalysisApplies(t *testing.T) {
	res := phase.Response{
		Points: map[string]phase.PointPayload{
			"Z1": {Timestamp: epoch.Add(100 * time.Second), Value: 0},
			"Q7": {Timestamp: epoch.Add(200 * time.Second), Value: 0},
		},
	}
	m := newTestModel(t, nil, phase.NewRunner(stubAnalyzer{res: res}))
	_, cmd := m.Update(runes("a"))
	if cmd == nil || !m.analyzing {
		t.Fatalf("expected analysis command")
	}
	if !strings.Contains(m.renderFooter(), "analyzing") {
		t.Fatalf("expected busy flag in footer")
	}
	if _, again := m.Update(runes("a")); again != nil {
		t.Fatalf("expected second analysis to be refused")
	}
	m.Update(cmd())
	if m.analyzing {
		t.Fatalf("expected busy flag cleared")
	}
	if _, ok := m.ann.Job().Points["Z1"]; !ok {
		t.Fatalf("expected Z1 from analysis")
	}
	if !strings.Contains(m.notice, "Q7") {
		t.Fatalf("expected skipped label notice, got %q", m.notice)
	}
}

func TestPhaseFailureBecomesJobError(t *testing.T) {
	m := newTestModel(t, nil, phase.NewRunner(stubAnalyzer{err: errors.New("boom")}))
	_, cmd := m.Update(runes("a"))
	m.Update(cmd())
	if got := m.ann.Job().LastError; !strings.Contains(got, "boom") {
		t.Fatalf("expected job error, got %q", got)
	}
	if len(m.ann.Job().Points) != 0 {
		t.Fatalf("expected annotations untouched")
	}
	if !strings.Contains(m.renderFooter(), "boom") {
		t.Fatalf("expected error in footer")
	}
}

func TestQuitSavesView(t *testing.T) {
	saver := &memSaver{}
	m := newTestModel(t, saver, nil)
	m.Update(runes("3"))
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if saver.last.View.Range != 10*time.Minute {
		t.Fatalf("expected saved range 10m, got %v", saver.last.View.Range)
	}
}

func TestSavedViewIsRestored(t *testing.T) {
	ds := &model.Dataset{Channels: []model.Channel{{Name: "pH"}}}
	for s := 0; s <= 1200; s += 5 {
		ds.Samples = append(ds.Samples, model.Sample{Time: epoch.Add(time.Duration(s) * time.Second), Values: []float64{1}})
	}
	job := model.NewJob("job", "test", model.SensorPH)
	job.View = model.ViewportState{End: epoch.Add(600 * time.Second), Range: 5 * time.Minute}
	m := NewModel(ds, annotate.New(ds, job), Options{Range: time.Minute, Pointer: pointer.DefaultConfig()})
	start, end := m.ctrl.Viewport().Visible()
	if !start.Equal(epoch.Add(300*time.Second)) || !end.Equal(epoch.Add(600*time.Second)) {
		t.Fatalf("expected restored window, got [%v, %v]", start, end)
	}
}

func TestFooterShowsModeAndLabel(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.Update(runes("s"))
	out := m.renderFooter()
	for _, want := range []string{"sequential", "next Z1", "channel pH"} {
		if !strings.Contains(out, want) {
			t.Fatalf("footer missing %q: %s", want, out)
		}
	}
}
