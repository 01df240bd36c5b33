// Package graphui provides the Bubble Tea graph interface.
package graphui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/sensorview/internal/annotate"
	"github.com/verte-zerg/sensorview/internal/graph"
	"github.com/verte-zerg/sensorview/internal/logging"
	"github.com/verte-zerg/sensorview/internal/model"
	"github.com/verte-zerg/sensorview/internal/phase"
	"github.com/verte-zerg/sensorview/internal/pointer"
	"github.com/verte-zerg/sensorview/internal/render"
	"github.com/verte-zerg/sensorview/internal/viewport"
)

// Footer lines: status, message, help.
const footerRows = 3

var (
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	modeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	busyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4DA3FF"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// Saver persists job drafts.
type Saver interface {
	SaveJob(ctx context.Context, job model.Job) error
}

// Options configures a graph UI.
type Options struct {
	Title   string
	Range   time.Duration
	Channel int
	Pointer pointer.Config
	Saver   Saver
	Runner  *phase.Runner
}

type phaseResultMsg struct {
	res phase.Response
	err error
}

type resultRef struct {
	channel int
	id      string
}

// Model implements the Bubble Tea graph UI.
type Model struct {
	ds     *model.Dataset
	ctrl   *graph.Controller
	ann    *annotate.Manager
	saver  Saver
	runner *phase.Runner

	width  int
	height int

	pressed   bool
	analyzing bool

	help       help.Model
	prompt     bool
	labelInput textinput.Model

	showTable  bool
	results    table.Model
	resultRefs []resultRef

	notice  string
	errMsg  string
	saveErr string
}

// NewModel constructs a graph UI over ds and the job held by ann. A saved
// view on the job wins over opts.Range.
func NewModel(ds *model.Dataset, ann *annotate.Manager, opts Options) *Model {
	layout := render.TextLayout(render.PlotWidthFor(80), 12)
	ctrl := graph.New(ds, ann, layout, opts.Pointer)
	ctrl.SetTitle(opts.Title)
	if ds.HasChannel(opts.Channel) {
		_ = ctrl.SelectChannel(opts.Channel)
	}
	job := ann.Job()
	if job.View.Range != model.RangeAll || !job.View.End.IsZero() {
		ctrl.RestoreView(job.View)
	} else {
		ctrl.SetRange(opts.Range)
	}

	m := &Model{
		ds:     ds,
		ctrl:   ctrl,
		ann:    ann,
		saver:  opts.Saver,
		runner: opts.Runner,
		help:   help.New(),
	}
	m.labelInput = textinput.New()
	m.labelInput.Prompt = "Label: "
	m.labelInput.CharLimit = 8
	m.labelInput.Cursor.SetMode(cursor.CursorBlink)
	m.results = table.New(table.WithFocused(true))
	m.results.SetStyles(resultTableStyles())
	ann.OnChange(m.save)
	return m
}

// Controller returns the graph controller.
func (m *Model) Controller() *graph.Controller {
	return m.ctrl
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.MouseMsg:
		if m.prompt || m.showTable {
			return m, nil
		}
		m.handleMouse(msg)
		return m, nil
	case phaseResultMsg:
		m.applyPhase(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, m.quit()
		}
		if m.prompt {
			return m.updatePrompt(msg)
		}
		if m.showTable {
			return m.updateTable(msg)
		}
		return m.updateGraph(msg)
	}
	return m, nil
}

func (m *Model) updateGraph(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	switch {
	case key.Matches(msg, keys.Quit):
		return m, m.quit()
	case key.Matches(msg, keys.PanLeft):
		m.ctrl.PanFraction(-0.1)
	case key.Matches(msg, keys.PanRight):
		m.ctrl.PanFraction(0.1)
	case key.Matches(msg, keys.ZoomIn):
		m.ctrl.ZoomCenter(graph.WheelStep)
	case key.Matches(msg, keys.ZoomOut):
		m.ctrl.ZoomCenter(1 / graph.WheelStep)
	case key.Matches(msg, keys.Preset):
		m.ctrl.SetRange(time.Duration(presetRanges[msg.String()]) * time.Second)
	case key.Matches(msg, keys.NextChan):
		m.ctrl.NextChannel()
	case key.Matches(msg, keys.GuideLeft):
		m.ctrl.StepGuide(-1)
	case key.Matches(msg, keys.GuideRight):
		m.ctrl.StepGuide(1)
	case key.Matches(msg, keys.Commit):
		m.setErr(m.ctrl.CommitGuide())
	case key.Matches(msg, keys.Sequential):
		m.ann.ToggleSequentialPlacement()
	case key.Matches(msg, keys.Single):
		m.prompt = true
		m.labelInput.SetValue("")
		return m, m.labelInput.Focus()
	case key.Matches(msg, keys.MaxMin):
		m.setErr(m.ctrl.ToggleRangeMode())
	case key.Matches(msg, keys.Undo):
		if !m.ann.UndoLastResult(m.ctrl.Channel()) {
			m.notice = "nothing to undo"
		}
	case key.Matches(msg, keys.Delete):
		m.notice = "open the results table (t) to delete a result"
	case key.Matches(msg, keys.Reset):
		m.ann.ResetAnalysis()
		m.notice = "analysis reset"
	case key.Matches(msg, keys.Analyze):
		return m, m.startAnalysis()
	case key.Matches(msg, keys.Table):
		m.showTable = true
		m.refreshTable()
	case key.Matches(msg, keys.Cancel):
		m.ann.Cancel()
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.updateLayout()
	}
	return m, nil
}

func (m *Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = false
		m.labelInput.Blur()
		return m, nil
	case tea.KeyEnter:
		label := strings.ToUpper(strings.TrimSpace(m.labelInput.Value()))
		m.prompt = false
		m.labelInput.Blur()
		if label == "" {
			return m, nil
		}
		m.setErr(m.ann.StartSinglePlacement(label))
		return m, nil
	}
	var cmd tea.Cmd
	m.labelInput, cmd = m.labelInput.Update(msg)
	return m, cmd
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	p := cellToPixel(msg.X, msg.Y)
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.ctrl.Wheel(p.X, -1)
	case msg.Button == tea.MouseButtonWheelDown:
		m.ctrl.Wheel(p.X, 1)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.pressed = true
		m.ctrl.PointerDown(p)
	case msg.Action == tea.MouseActionMotion && m.pressed:
		m.ctrl.PointerMove(p)
	case msg.Action == tea.MouseActionRelease && m.pressed:
		m.pressed = false
		m.setErr(m.ctrl.PointerUp(p))
	}
}

// cellToPixel maps a terminal cell to the virtual pixel at its centre.
func cellToPixel(col, row int) viewport.Vec {
	return viewport.Vec{
		X: float64(col*render.CellWidth) + render.CellWidth/2,
		Y: float64(row*render.CellHeight) + render.CellHeight/2,
	}
}

func (m *Model) startAnalysis() tea.Cmd {
	if m.runner == nil {
		m.errMsg = phase.ErrNoEndpoint.Error()
		return nil
	}
	if m.analyzing || m.runner.Busy() {
		m.notice = "analysis already running"
		return nil
	}
	m.analyzing = true
	req := phase.NewRequest(m.ds, m.ctrl.Channel(), m.ann.Sensor())
	runner := m.runner
	logging.Debugf("phase analysis: %d samples on channel %d", len(req.Samples), m.ctrl.Channel())
	return func() tea.Msg {
		res, err := runner.Run(context.Background(), req)
		return phaseResultMsg{res: res, err: err}
	}
}

func (m *Model) applyPhase(msg phaseResultMsg) {
	if errors.Is(msg.err, phase.ErrBusy) {
		m.notice = "analysis already running"
		return
	}
	m.analyzing = false
	if msg.err != nil {
		m.ann.SetError(msg.err.Error())
		return
	}
	skipped, err := phase.Apply(m.ann, msg.res)
	if err != nil {
		m.ann.SetError(err.Error())
		return
	}
	m.notice = "analysis applied"
	if len(skipped) > 0 {
		m.notice = fmt.Sprintf("analysis applied, skipped %s", strings.Join(skipped, ","))
	}
}

func (m *Model) save(job model.Job) {
	if m.saver == nil {
		return
	}
	job.View = m.ctrl.Viewport().State()
	if err := m.saver.SaveJob(context.Background(), job); err != nil {
		m.saveErr = fmt.Sprintf("failed to save job: %v", err)
		logging.Debugf("%s", m.saveErr)
		return
	}
	m.saveErr = ""
}

func (m *Model) quit() tea.Cmd {
	m.ann.SetView(m.ctrl.Viewport().State())
	m.save(m.ann.Job())
	return tea.Quit
}

func (m *Model) setErr(err error) {
	if err == nil {
		m.errMsg = ""
		return
	}
	m.errMsg = err.Error()
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.help.Width = m.width
	rows := m.height - footerRows - render.TextChromeRows
	if m.help.ShowAll {
		rows -= len(keys.FullHelp()[0]) - 1
	}
	if rows < 3 {
		rows = 3
	}
	m.ctrl.SetLayout(render.TextLayout(render.PlotWidthFor(m.width), rows))
	m.results.SetWidth(m.width)
	m.results.SetHeight(maxInt(3, m.height-footerRows-4))
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(footer)
	var body string
	if m.showTable {
		body = m.renderTable()
	} else {
		body = strings.Join(render.PlotLines(m.ctrl.Scene(), os.Getenv("NO_COLOR") == ""), "\n")
	}
	return fitLines(body, m.width, bodyHeight) + "\n" + footer
}

func (m *Model) renderFooter() string {
	mode := m.ann.Mode()
	parts := []string{modeStyle.Render(mode.Kind.String())}
	if label, ok := m.ann.ExpectedLabel(); ok {
		parts = append(parts, "next "+label)
	}
	if m.ds.HasChannel(m.ctrl.Channel()) {
		parts = append(parts, "channel "+m.ds.Channels[m.ctrl.Channel()].Name)
	}
	if d := m.ctrl.Viewport().Duration(); m.ctrl.Viewport().IsAll() {
		parts = append(parts, "range all")
	} else {
		parts = append(parts, "range "+d.String())
	}
	if m.analyzing {
		parts = append(parts, busyStyle.Render("analyzing…"))
	}
	status := footerStyle.Render(strings.Join(parts, "  "))

	var message string
	switch {
	case m.prompt:
		message = m.labelInput.View()
	case m.errMsg != "":
		message = errorStyle.Render(m.errMsg)
	case m.saveErr != "":
		message = errorStyle.Render(m.saveErr)
	case m.ann.Job().LastError != "":
		message = errorStyle.Render("analysis: " + m.ann.Job().LastError)
	case m.notice != "":
		message = noticeStyle.Render(m.notice)
	}
	return strings.Join([]string{
		truncateLine(status, m.width),
		truncateLine(message, m.width),
		m.help.View(keys),
	}, "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}
