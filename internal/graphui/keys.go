package graphui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PanLeft    key.Binding
	PanRight   key.Binding
	ZoomIn     key.Binding
	ZoomOut    key.Binding
	Preset     key.Binding
	NextChan   key.Binding
	GuideLeft  key.Binding
	GuideRight key.Binding
	Commit     key.Binding
	Sequential key.Binding
	Single     key.Binding
	MaxMin     key.Binding
	Undo       key.Binding
	Delete     key.Binding
	Reset      key.Binding
	Analyze    key.Binding
	Table      key.Binding
	Cancel     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	PanLeft: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "pan left"),
	),
	PanRight: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "pan right"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "zoom out"),
	),
	Preset: key.NewBinding(
		key.WithKeys("1", "2", "3", "4", "5", "6"),
		key.WithHelp("1-6", "1m/5m/10m/30m/1h/all"),
	),
	NextChan: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next channel"),
	),
	GuideLeft: key.NewBinding(
		key.WithKeys(","),
		key.WithHelp(",", "guide back"),
	),
	GuideRight: key.NewBinding(
		key.WithKeys("."),
		key.WithHelp(".", "guide forward"),
	),
	Commit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "commit guide"),
	),
	Sequential: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "sequential placement"),
	),
	Single: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "place label"),
	),
	MaxMin: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "max/min mode"),
	),
	Undo: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "undo result"),
	),
	Delete: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "delete result"),
	),
	Reset: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "reset analysis"),
	),
	Analyze: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "phase analysis"),
	),
	Table: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "results"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel mode"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Sequential, k.MaxMin, k.Analyze, k.Table, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PanLeft, k.PanRight, k.ZoomIn, k.ZoomOut, k.Preset},
		{k.NextChan, k.GuideLeft, k.GuideRight, k.Commit, k.Cancel},
		{k.Sequential, k.Single, k.MaxMin, k.Undo, k.Delete},
		{k.Reset, k.Analyze, k.Table, k.Help, k.Quit},
	}
}

// presetRanges maps the 1-6 keys to visible durations; zero shows all.
var presetRanges = map[string]int{
	"1": 60,
	"2": 5 * 60,
	"3": 10 * 60,
	"4": 30 * 60,
	"5": 60 * 60,
	"6": 0,
}
