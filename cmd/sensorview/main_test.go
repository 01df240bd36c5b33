package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/sensorview/internal/config"
	"github.com/verte-zerg/sensorview/internal/model"
	"github.com/verte-zerg/sensorview/internal/store"
)

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	var cfg config.FileConfig
	if _, err := toml.Decode(defaultConfigTemplate(), &cfg); err != nil {
		t.Fatalf("template does not decode: %v", err)
	}
	if cfg.View.Range != nil || cfg.Phase.URL != nil {
		t.Fatalf("template should leave every value commented out")
	}
}

func TestApplyConfigRespectsChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	var rng string
	var width int
	cmd.Flags().StringVar(&rng, "range", "all", "")
	cmd.Flags().IntVar(&width, "width", 10, "")
	if err := cmd.Flags().Set("width", "42"); err != nil {
		t.Fatalf("set: %v", err)
	}
	fileRange, fileWidth := "5m", 99
	applyStringConfig(cmd, "range", &rng, &fileRange)
	applyIntConfig(cmd, "width", &width, &fileWidth)
	if rng != "5m" {
		t.Fatalf("expected config range, got %q", rng)
	}
	if width != 42 {
		t.Fatalf("expected flag width to win, got %d", width)
	}
}

func TestBuildViewConfig(t *testing.T) {
	cfg, err := buildViewConfig("pH", "10m", 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.Sensor != model.SensorPH || cfg.Range != 10*time.Minute || cfg.Channel != 1 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	cfg, err = buildViewConfig("", "all", 0)
	if err != nil || cfg.Sensor != "" || cfg.Range != model.RangeAll {
		t.Fatalf("expected empty sensor and all range, got %+v, %v", cfg, err)
	}
	if _, err := buildViewConfig("ozone", "all", 0); err == nil {
		t.Fatalf("expected sensor error")
	}
}

func TestValidateRenderConfig(t *testing.T) {
	cfg := model.ViewConfig{Width: 0, Height: 100}
	err := validateRenderConfig(cfg, 12, "out.png", false)
	if err == nil || !strings.Contains(err.Error(), "--width must be > 0") {
		t.Fatalf("expected width error, got %v", err)
	}
	if err := validateRenderConfig(cfg, 12, "", true); err != nil {
		t.Fatalf("text mode ignores image size: %v", err)
	}
}

func TestResolveJobResumesBySource(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		_ = st.Close()
	}()
	ds := &model.Dataset{Channels: []model.Channel{{Name: "Turbidity", Unit: "NTU"}}}
	ctx := context.Background()

	job, resumed, err := resolveJob(ctx, st, ds, "/data/run1.csv", "", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resumed || job.Sensor != model.SensorTurbidity || job.Name != "run1" {
		t.Fatalf("expected new guessed job, got %+v resumed=%v", job, resumed)
	}
	if err := st.SaveJob(ctx, *job); err != nil {
		t.Fatalf("save: %v", err)
	}

	again, resumed, err := resolveJob(ctx, st, ds, "/data/run1.csv", model.SensorPH, false)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if !resumed || again.ID != job.ID || again.Sensor != model.SensorTurbidity {
		t.Fatalf("expected resumed job %s, got %+v", job.ID, again)
	}

	fresh, resumed, err := resolveJob(ctx, st, ds, "/data/run1.csv", model.SensorPH, true)
	if err != nil {
		t.Fatalf("resolve fresh: %v", err)
	}
	if resumed || fresh.ID == job.ID || fresh.Sensor != model.SensorPH {
		t.Fatalf("expected fresh pH job, got %+v", fresh)
	}
}
