// Package annotate holds the calibration points, max/min results and
// placement modes of one job.
package annotate

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/sensorview/internal/logging"
	"github.com/verte-zerg/sensorview/internal/model"
)

var (
	ErrUnknownLabel   = errors.New("unknown label")
	ErrUnknownChannel = errors.New("unknown channel")
	ErrResultNotFound = errors.New("result not found")
	ErrNotSelecting   = errors.New("range selection is not active")
	ErrMissingReading = errors.New("point has no reading")
)

// ModeKind tags a Mode.
type ModeKind int

const (
	ModeIdle ModeKind = iota
	ModeManualRange
	ModeSequential
	ModeSingle
)

func (k ModeKind) String() string {
	switch k {
	case ModeManualRange:
		return "max/min"
	case ModeSequential:
		return "sequential"
	case ModeSingle:
		return "single"
	default:
		return "idle"
	}
}

// Mode is the single active interaction mode. Channel is set for
// ModeManualRange, Index for ModeSequential and Label for ModeSingle.
type Mode struct {
	Kind    ModeKind
	Channel int
	Index   int
	Label   string
}

// Manager mutates a job in response to placement and selection commands.
// It is not safe for concurrent use.
type Manager struct {
	ds  *model.Dataset
	job *model.Job

	mode      Mode
	selection *model.RangeSelection

	onChange func(model.Job)
	now      func() time.Time
	newID    func() string
}

// New returns an idle manager over job. A nil job starts a fresh one.
func New(ds *model.Dataset, job *model.Job) *Manager {
	if job == nil {
		job = model.NewJob(uuid.New().String(), "", model.SensorDefault)
	}
	if job.Points == nil {
		job.Points = map[string]model.NamedPoint{}
	}
	if job.Results == nil {
		job.Results = map[int][]model.ManualResult{}
	}
	return &Manager{
		ds:    ds,
		job:   job,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// OnChange registers the callback invoked with a copy of the job after every
// committed mutation.
func (m *Manager) OnChange(fn func(model.Job)) {
	m.onChange = fn
}

// Job returns a copy of the job.
func (m *Manager) Job() model.Job {
	return m.job.Clone()
}

// Sensor returns the job's sensor type.
func (m *Manager) Sensor() model.SensorType {
	return m.job.Sensor
}

// Points returns the named point map. Callers must not modify it.
func (m *Manager) Points() map[string]model.NamedPoint {
	return m.job.Points
}

// Dataset returns the dataset the manager annotates.
func (m *Manager) Dataset() *model.Dataset {
	return m.ds
}

// Mode returns the active mode.
func (m *Manager) Mode() Mode {
	return m.mode
}

// Selection returns the pending range selection, if any.
func (m *Manager) Selection() (model.RangeSelection, bool) {
	if m.selection == nil {
		return model.RangeSelection{}, false
	}
	return *m.selection, true
}

// ExpectedLabel returns the next label of sequential placement.
func (m *Manager) ExpectedLabel() (string, bool) {
	switch m.mode.Kind {
	case ModeSequential:
		labels := m.job.Sensor.Labels()
		if m.mode.Index < len(labels) {
			return labels[m.mode.Index], true
		}
	case ModeSingle:
		return m.mode.Label, true
	}
	return "", false
}

// PlacePoint upserts a named point and advances the placement mode.
func (m *Manager) PlacePoint(label string, p model.Point) error {
	if err := m.setPoint(label, p); err != nil {
		return err
	}
	switch m.mode.Kind {
	case ModeSequential:
		labels := m.job.Sensor.Labels()
		if m.mode.Index < len(labels) && labels[m.mode.Index] == label {
			m.mode.Index++
		}
		if m.mode.Index >= len(labels) {
			logging.Debugf("sequential placement complete")
			m.setMode(Mode{Kind: ModeIdle})
		}
	case ModeSingle:
		if m.mode.Label == label {
			m.setMode(Mode{Kind: ModeIdle})
		}
	}
	m.changed()
	return nil
}

// SetPoint upserts a named point without touching the mode.
func (m *Manager) SetPoint(label string, p model.Point) error {
	if err := m.setPoint(label, p); err != nil {
		return err
	}
	m.changed()
	return nil
}

func (m *Manager) setPoint(label string, p model.Point) error {
	if !m.job.Sensor.HasLabel(label) {
		return fmt.Errorf("%w %q for sensor %s", ErrUnknownLabel, label, m.job.Sensor)
	}
	if model.IsMissing(p.Value) {
		return fmt.Errorf("%w: %s", ErrMissingReading, label)
	}
	m.job.Points[label] = model.NamedPoint{Label: label, Time: p.Time, Value: p.Value}
	logging.Debugf("placed %s at %s = %g", label, p.Time.Format(time.RFC3339), p.Value)
	return nil
}

// RemovePoint deletes a named point. Unknown labels are ignored.
func (m *Manager) RemovePoint(label string) {
	if _, ok := m.job.Points[label]; !ok {
		return
	}
	delete(m.job.Points, label)
	m.changed()
}

// StartRangeSelection enters max/min mode on a channel.
func (m *Manager) StartRangeSelection(ch int) error {
	if !m.hasChannel(ch) {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}
	m.setMode(Mode{Kind: ModeManualRange, Channel: ch})
	m.selection = &model.RangeSelection{Channel: ch}
	return nil
}

// CompleteRangeSelection records a boundary click. The first click stores the
// start and returns nil. The second computes the result over the non-missing
// readings between both clicks; an empty range is discarded and returns nil.
// Max/min mode stays active for the next selection.
func (m *Manager) CompleteRangeSelection(p model.Point) (*model.ManualResult, error) {
	if m.mode.Kind != ModeManualRange || m.selection == nil {
		return nil, ErrNotSelecting
	}
	sel := m.selection
	if sel.Start == nil {
		start := p
		sel.Start = &start
		return nil, nil
	}
	end := p
	sel.End = &end

	from, to := sel.Start.Time, sel.End.Time
	if to.Before(from) {
		from, to = to, from
	}
	lo, hi, n := math.Inf(1), math.Inf(-1), 0
	for _, pt := range m.ds.Series(sel.Channel) {
		if pt.Time.Before(from) || pt.Time.After(to) {
			continue
		}
		lo = math.Min(lo, pt.Value)
		hi = math.Max(hi, pt.Value)
		n++
	}
	m.selection = &model.RangeSelection{Channel: sel.Channel}
	if n == 0 {
		logging.Debugf("range selection on channel %d captured no readings", sel.Channel)
		return nil, nil
	}

	res := model.ManualResult{
		ID:      m.newID(),
		Channel: sel.Channel,
		Start:   from,
		End:     to,
		Min:     lo,
		Max:     hi,
		Diff:    hi - lo,
	}
	m.job.Results[sel.Channel] = append(m.job.Results[sel.Channel], res)
	m.changed()
	return &res, nil
}

// DeleteManualResult removes one result, keeping the order of the rest.
func (m *Manager) DeleteManualResult(ch int, id string) error {
	if !m.hasChannel(ch) {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}
	results := m.job.Results[ch]
	for i, r := range results {
		if r.ID != id {
			continue
		}
		m.job.Results[ch] = append(results[:i:i], results[i+1:]...)
		if len(m.job.Results[ch]) == 0 {
			delete(m.job.Results, ch)
		}
		m.changed()
		return nil
	}
	return fmt.Errorf("%w: %s", ErrResultNotFound, id)
}

// UndoLastResult removes the newest result of a channel. It reports whether
// anything was removed.
func (m *Manager) UndoLastResult(ch int) bool {
	results := m.job.Results[ch]
	if len(results) == 0 {
		return false
	}
	if len(results) == 1 {
		delete(m.job.Results, ch)
	} else {
		m.job.Results[ch] = results[:len(results)-1 : len(results)-1]
	}
	m.changed()
	return true
}

// Results returns the results of a channel in creation order.
func (m *Manager) Results(ch int) []model.ManualResult {
	return append([]model.ManualResult(nil), m.job.Results[ch]...)
}

// ResetAnalysis clears every point, result, phase and error.
func (m *Manager) ResetAnalysis() {
	m.job.Points = map[string]model.NamedPoint{}
	m.job.Results = map[int][]model.ManualResult{}
	m.job.Phases = nil
	m.job.LastError = ""
	m.setMode(Mode{Kind: ModeIdle})
	m.changed()
}

// ToggleSequentialPlacement starts guided placement from the first label, or
// stops it when active.
func (m *Manager) ToggleSequentialPlacement() {
	if m.mode.Kind == ModeSequential {
		m.setMode(Mode{Kind: ModeIdle})
		return
	}
	m.setMode(Mode{Kind: ModeSequential})
}

// StartSinglePlacement arms placement of one label.
func (m *Manager) StartSinglePlacement(label string) error {
	if !m.job.Sensor.HasLabel(label) {
		return fmt.Errorf("%w %q for sensor %s", ErrUnknownLabel, label, m.job.Sensor)
	}
	m.setMode(Mode{Kind: ModeSingle, Label: label})
	return nil
}

// Cancel returns to idle.
func (m *Manager) Cancel() {
	m.setMode(Mode{Kind: ModeIdle})
}

// SetPhases replaces the phases reported by the analysis service.
func (m *Manager) SetPhases(phases []model.Phase) {
	m.job.Phases = append([]model.Phase(nil), phases...)
	m.changed()
}

// SetError records a job-level error message; empty clears it.
func (m *Manager) SetError(msg string) {
	if m.job.LastError == msg {
		return
	}
	m.job.LastError = msg
	m.changed()
}

// SetView records the viewport state stored with the job. It does not count
// as an annotation change.
func (m *Manager) SetView(state model.ViewportState) {
	m.job.View = state
}

func (m *Manager) setMode(mode Mode) {
	m.mode = mode
	m.selection = nil
}

func (m *Manager) hasChannel(ch int) bool {
	return m.ds != nil && m.ds.HasChannel(ch)
}

func (m *Manager) changed() {
	m.job.UpdatedAt = m.now()
	if m.onChange != nil {
		m.onChange(m.job.Clone())
	}
}
