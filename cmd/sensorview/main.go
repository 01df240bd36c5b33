// Package main provides the CLI entrypoint for sensorview.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/sensorview/internal/annotate"
	"github.com/verte-zerg/sensorview/internal/config"
	"github.com/verte-zerg/sensorview/internal/csvdata"
	"github.com/verte-zerg/sensorview/internal/graph"
	"github.com/verte-zerg/sensorview/internal/graphui"
	"github.com/verte-zerg/sensorview/internal/logging"
	"github.com/verte-zerg/sensorview/internal/model"
	"github.com/verte-zerg/sensorview/internal/phase"
	"github.com/verte-zerg/sensorview/internal/pointer"
	"github.com/verte-zerg/sensorview/internal/render"
	"github.com/verte-zerg/sensorview/internal/store"
)

const (
	defaultRange          = "all"
	defaultWidth          = 1200
	defaultHeight         = 600
	defaultRows           = 12
	defaultMarkerRadius   = 20.0
	defaultGuideRadius    = 20.0
	defaultClickThreshold = 15.0
	defaultPhaseTimeout   = "30s"
	defaultOutput         = "frame.png"
)

var (
	debugLog     string
	debugCleanup func()

	viewSensor         string
	viewRange          string
	viewChannel        int
	viewName           string
	viewFresh          bool
	viewMarkerRadius   float64
	viewGuideRadius    float64
	viewClickThreshold float64
	viewPhaseURL       string
	viewPhaseTimeout   string

	renderSensor  string
	renderRange   string
	renderChannel int
	renderWidth   int
	renderHeight  int
	renderRows    int
	renderOutput  string
	renderText    bool
	renderColor   bool
	renderJob     string

	resultsJob string

	jobsDelete string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sensorview",
		Short:         "Sensor response graph viewer and annotator",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cleanup, err := logging.Setup(debugLog)
			if err != nil {
				return err
			}
			debugCleanup = cleanup
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if debugCleanup != nil {
				debugCleanup()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&debugLog, "debug", "", "write debug log to file")

	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newJobsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <file.csv>",
		Short: "Open the interactive graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runViewCmd,
	}
	cmd.Flags().StringVar(&viewSensor, "sensor", "", "sensor type: ph, ss, do, turbidity, chlorine, default (guessed when empty)")
	cmd.Flags().StringVar(&viewRange, "range", defaultRange, "initial visible range (e.g. 5m, 1h, all)")
	cmd.Flags().IntVar(&viewChannel, "channel", 0, "initial channel index")
	cmd.Flags().StringVar(&viewName, "name", "", "job name (default: file name)")
	cmd.Flags().BoolVar(&viewFresh, "new", false, "start a new job instead of resuming the saved one")
	cmd.Flags().Float64Var(&viewMarkerRadius, "marker-radius", defaultMarkerRadius, "marker grab radius in pixels")
	cmd.Flags().Float64Var(&viewGuideRadius, "guide-radius", defaultGuideRadius, "guideline grab radius in pixels")
	cmd.Flags().Float64Var(&viewClickThreshold, "click-threshold", defaultClickThreshold, "movement in pixels before a press becomes a drag")
	cmd.Flags().StringVar(&viewPhaseURL, "phase-url", "", "phase analysis service URL")
	cmd.Flags().StringVar(&viewPhaseTimeout, "phase-timeout", defaultPhaseTimeout, "phase analysis request timeout")
	return cmd
}

func runViewCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "sensor", &viewSensor, fileCfg.View.Sensor)
	applyStringConfig(cmd, "range", &viewRange, fileCfg.View.Range)
	applyIntConfig(cmd, "channel", &viewChannel, fileCfg.View.Channel)
	applyFloatConfig(cmd, "marker-radius", &viewMarkerRadius, fileCfg.Pointer.MarkerRadius)
	applyFloatConfig(cmd, "guide-radius", &viewGuideRadius, fileCfg.Pointer.GuideRadius)
	applyFloatConfig(cmd, "click-threshold", &viewClickThreshold, fileCfg.Pointer.ClickThreshold)
	applyStringConfig(cmd, "phase-url", &viewPhaseURL, fileCfg.Phase.URL)
	applyStringConfig(cmd, "phase-timeout", &viewPhaseTimeout, fileCfg.Phase.Timeout)

	cfg, err := buildViewConfig(viewSensor, viewRange, viewChannel)
	if err != nil {
		return err
	}
	cfg.MarkerRadius = viewMarkerRadius
	cfg.GuideRadius = viewGuideRadius
	cfg.ClickThreshold = viewClickThreshold
	cfg.PhaseURL = viewPhaseURL
	timeout, err := time.ParseDuration(viewPhaseTimeout)
	if err != nil {
		return fmt.Errorf("invalid --phase-timeout value: %w", err)
	}
	cfg.PhaseTimeout = timeout
	if err := validateViewConfig(cfg); err != nil {
		return err
	}

	source, ds, err := loadDataset(args[0])
	if err != nil {
		return err
	}
	if !ds.HasChannel(cfg.Channel) {
		return fmt.Errorf("--channel must be between 0 and %d", len(ds.Channels)-1)
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	job, resumed, err := resolveJob(ctx, st, ds, source, cfg.Sensor, viewFresh)
	if err != nil {
		return err
	}
	if viewName != "" {
		job.Name = viewName
	}
	if resumed {
		logErrf("resuming job %s (%s)\n", job.ID, job.Sensor)
	}

	ann := annotate.New(ds, job)
	runner := phase.NewRunner(phase.NewClient(cfg.PhaseURL, cfg.PhaseTimeout))
	ui := graphui.NewModel(ds, ann, graphui.Options{
		Title:   job.Name,
		Range:   cfg.Range,
		Channel: cfg.Channel,
		Pointer: pointer.Config{
			MarkerRadius:   cfg.MarkerRadius,
			GuideRadius:    cfg.GuideRadius,
			ClickThreshold: cfg.ClickThreshold,
		},
		Saver:  st,
		Runner: runner,
	})
	if !resumed {
		if err := st.SaveJob(ctx, ann.Job()); err != nil {
			logErrf("failed to save job: %v\n", err)
		}
	}
	program := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <file.csv>",
		Short: "Render a graph frame to PNG or text",
		Args:  cobra.ExactArgs(1),
		RunE:  runRenderCmd,
	}
	cmd.Flags().StringVar(&renderSensor, "sensor", "", "sensor type for a new job (guessed when empty)")
	cmd.Flags().StringVar(&renderRange, "range", defaultRange, "visible range (e.g. 5m, 1h, all)")
	cmd.Flags().IntVar(&renderChannel, "channel", 0, "channel index")
	cmd.Flags().IntVar(&renderWidth, "width", defaultWidth, "image width in pixels")
	cmd.Flags().IntVar(&renderHeight, "height", defaultHeight, "image height in pixels")
	cmd.Flags().IntVar(&renderRows, "rows", defaultRows, "plot rows for --text")
	cmd.Flags().StringVarP(&renderOutput, "output", "o", defaultOutput, "PNG output path")
	cmd.Flags().BoolVar(&renderText, "text", false, "print a braille plot instead of writing a PNG")
	cmd.Flags().BoolVar(&renderColor, "color", false, "force ANSI colors for --text")
	cmd.Flags().StringVar(&renderJob, "job", "", "job id whose annotations are drawn (default: saved job of the file)")
	return cmd
}

func runRenderCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "sensor", &renderSensor, fileCfg.View.Sensor)
	applyStringConfig(cmd, "range", &renderRange, fileCfg.View.Range)
	applyIntConfig(cmd, "channel", &renderChannel, fileCfg.View.Channel)
	applyIntConfig(cmd, "width", &renderWidth, fileCfg.View.Width)
	applyIntConfig(cmd, "height", &renderHeight, fileCfg.View.Height)

	cfg, err := buildViewConfig(renderSensor, renderRange, renderChannel)
	if err != nil {
		return err
	}
	cfg.Width = renderWidth
	cfg.Height = renderHeight
	if err := validateRenderConfig(cfg, renderRows, renderOutput, renderText); err != nil {
		return err
	}

	source, ds, err := loadDataset(args[0])
	if err != nil {
		return err
	}
	if !ds.HasChannel(cfg.Channel) {
		return fmt.Errorf("--channel must be between 0 and %d", len(ds.Channels)-1)
	}

	job := renderJobFor(cmd.Context(), ds, source, cfg.Sensor, renderJob)
	ann := annotate.New(ds, job)
	ctrl := graph.New(ds, ann, render.ImageLayout(cfg.Width, cfg.Height), pointer.DefaultConfig())
	ctrl.SetTitle(job.Name)
	if err := ctrl.SelectChannel(cfg.Channel); err != nil {
		return err
	}
	if cmd.Flags().Changed("range") || job.View.Range == model.RangeAll {
		ctrl.SetRange(cfg.Range)
	} else {
		ctrl.RestoreView(job.View)
	}

	if renderText {
		ctrl.SetLayout(render.TextLayout(render.PlotWidthFor(render.TerminalWidth()), renderRows))
		return render.Plot(cmd.OutOrStdout(), ctrl.Scene(), renderColor)
	}
	img := render.Frame(ctrl.Scene(), cfg.Width, cfg.Height)
	if err := render.SavePNG(renderOutput, img); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	logErrf("wrote %s\n", renderOutput)
	return nil
}

// renderJobFor returns the stored job to draw, or a fresh one when the
// store has none. Store failures only cost the annotations.
func renderJobFor(ctx context.Context, ds *model.Dataset, source string, sensor model.SensorType, id string) *model.Job {
	if ctx == nil {
		ctx = context.Background()
	}
	fresh := newJob(ds, source, sensor)
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		logErrf("failed to open db: %v\n", err)
		return fresh
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	var job model.Job
	if id != "" {
		job, err = st.LoadJob(ctx, id)
	} else {
		job, err = st.FindJobBySource(ctx, source)
	}
	if err != nil {
		if id != "" || !errors.Is(err, store.ErrJobNotFound) {
			logErrf("failed to load job: %v\n", err)
		}
		return fresh
	}
	return &job
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results [file.csv]",
		Short: "Print the results table of a stored job",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runResultsCmd,
	}
	cmd.Flags().StringVar(&resultsJob, "job", "", "job id")
	return cmd
}

func runResultsCmd(cmd *cobra.Command, args []string) error {
	if resultsJob == "" && len(args) == 0 {
		return fmt.Errorf("--job or a CSV file is required")
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	var job model.Job
	if resultsJob != "" {
		job, err = st.LoadJob(ctx, resultsJob)
	} else {
		var source string
		source, err = filepath.Abs(args[0])
		if err == nil {
			job, err = st.FindJobBySource(ctx, source)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	var channels []model.Channel
	if job.SourcePath != "" {
		if ds, lerr := csvdata.Load(job.SourcePath); lerr == nil {
			channels = ds.Channels
		} else {
			logging.Debugf("channel names unavailable: %v", lerr)
		}
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "Job %s  %s  sensor=%s\n", job.ID, job.Name, job.Sensor); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if job.LastError != "" {
		if _, err := fmt.Fprintf(out, "Last error: %s\n", job.LastError); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if err := render.WriteResults(out, annotate.BuildTable(&job), channels); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List stored jobs",
		Args:  cobra.NoArgs,
		RunE:  runJobsCmd,
	}
	cmd.Flags().StringVar(&jobsDelete, "delete", "", "delete the job with this id")
	return cmd
}

func runJobsCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	if jobsDelete != "" {
		if err := st.DeleteJob(ctx, jobsDelete); err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		logErrf("deleted job %s\n", jobsDelete)
		return nil
	}

	jobs, err := st.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(jobs) == 0 {
		logErrln("No jobs saved yet. Start one with: sensorview view <file.csv>")
		return nil
	}
	for _, line := range render.FormatTable(jobHeaders, jobRows(jobs), map[int]bool{3: true, 4: true}) {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

var jobHeaders = []string{"ID", "Name", "Sensor", "Points", "Results", "Updated", "Source"}

func jobRows(jobs []store.JobSummary) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			j.Name,
			string(j.Sensor),
			fmt.Sprintf("%d", j.Points),
			fmt.Sprintf("%d", j.Results),
			j.UpdatedAt.Local().Format("2006-01-02 15:04"),
			j.SourcePath,
		})
	}
	return rows
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func loadDataset(path string) (string, *model.Dataset, error) {
	source, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	ds, err := csvdata.Load(source)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	logging.Debugf("loaded %s: %d channels, %d samples", source, len(ds.Channels), len(ds.Samples))
	return source, ds, nil
}

// resolveJob resumes the job saved for source unless fresh is set. An empty
// sensor means "keep the saved one" or, for a new job, guess from the data.
func resolveJob(ctx context.Context, st *store.Store, ds *model.Dataset, source string, sensor model.SensorType, fresh bool) (*model.Job, bool, error) {
	if !fresh {
		job, err := st.FindJobBySource(ctx, source)
		switch {
		case err == nil:
			if sensor != "" && sensor != job.Sensor {
				logErrf("saved job uses sensor %s; ignoring --sensor %s (use --new to start over)\n", job.Sensor, sensor)
			}
			return &job, true, nil
		case !errors.Is(err, store.ErrJobNotFound):
			return nil, false, fmt.Errorf("failed to load job: %w", err)
		}
	}
	return newJob(ds, source, sensor), false, nil
}

func newJob(ds *model.Dataset, source string, sensor model.SensorType) *model.Job {
	if sensor == "" {
		sensor = csvdata.GuessSensor(ds)
	}
	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	job := model.NewJob(uuid.New().String(), name, sensor)
	job.SourcePath = source
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	return job
}

// buildViewConfig parses the flags shared by view and render. An empty
// sensor stays empty so callers can resume or guess.
func buildViewConfig(sensor, rng string, channel int) (model.ViewConfig, error) {
	var cfg model.ViewConfig
	if strings.TrimSpace(sensor) != "" {
		st, err := model.ParseSensorType(sensor)
		if err != nil {
			return cfg, fmt.Errorf("invalid --sensor value: %w", err)
		}
		cfg.Sensor = st
	}
	d, err := config.ParseRange(rng)
	if err != nil {
		return cfg, fmt.Errorf("invalid --range value: %w", err)
	}
	cfg.Range = d
	cfg.Channel = channel
	return cfg, nil
}

func validateViewConfig(cfg model.ViewConfig) error {
	if cfg.Channel < 0 {
		return fmt.Errorf("--channel must be >= 0")
	}
	if cfg.MarkerRadius <= 0 {
		return fmt.Errorf("--marker-radius must be > 0")
	}
	if cfg.GuideRadius <= 0 {
		return fmt.Errorf("--guide-radius must be > 0")
	}
	if cfg.ClickThreshold < 0 {
		return fmt.Errorf("--click-threshold must be >= 0")
	}
	if cfg.PhaseTimeout <= 0 {
		return fmt.Errorf("--phase-timeout must be > 0")
	}
	return nil
}

func validateRenderConfig(cfg model.ViewConfig, rows int, output string, text bool) error {
	if cfg.Channel < 0 {
		return fmt.Errorf("--channel must be >= 0")
	}
	if text {
		if rows <= 0 {
			return fmt.Errorf("--rows must be > 0")
		}
		return nil
	}
	if cfg.Width <= 0 {
		return fmt.Errorf("--width must be > 0")
	}
	if cfg.Height <= 0 {
		return fmt.Errorf("--height must be > 0")
	}
	if output == "" {
		return fmt.Errorf("--output must not be empty")
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# sensorview configuration
# Uncomment a value to enable it. CLI flags override config values.

[view]
# sensor = "ph"             # ph, ss, do, turbidity, chlorine, default (guessed when unset)
# range = %q              # Initial visible range (1m, 5m, 10m, 30m, 1h, all)
# channel = 0               # Initial channel index
# width = %d              # render: image width in pixels
# height = %d              # render: image height in pixels

[pointer]
# marker-radius = %.0f        # Marker grab radius in pixels
# guide-radius = %.0f         # Guideline grab radius in pixels
# click-threshold = %.0f      # Movement in pixels before a press becomes a drag

[phase]
# url = "http://localhost:8080/analyze"   # Phase analysis service
# timeout = %q           # Request timeout
`,
		defaultRange,
		defaultWidth,
		defaultHeight,
		defaultMarkerRadius,
		defaultGuideRadius,
		defaultClickThreshold,
		defaultPhaseTimeout,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
