// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	View    ViewConfig    `toml:"view"`
	Pointer PointerConfig `toml:"pointer"`
	Phase   PhaseConfig   `toml:"phase"`
}

// ViewConfig maps graph view settings.
type ViewConfig struct {
	Sensor  *string `toml:"sensor"`
	Range   *string `toml:"range"`
	Width   *int    `toml:"width"`
	Height  *int    `toml:"height"`
	Channel *int    `toml:"channel"`
}

// PointerConfig maps pointer gesture thresholds, in virtual pixels.
type PointerConfig struct {
	MarkerRadius   *float64 `toml:"marker-radius"`
	GuideRadius    *float64 `toml:"guide-radius"`
	ClickThreshold *float64 `toml:"click-threshold"`
}

// PhaseConfig maps the phase analysis service settings.
type PhaseConfig struct {
	URL     *string `toml:"url"`
	Timeout *string `toml:"timeout"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func (c FileConfig) validate() error {
	if c.View.Range != nil {
		if _, err := ParseRange(*c.View.Range); err != nil {
			return fmt.Errorf("invalid view.range: %w", err)
		}
	}
	if c.Phase.Timeout != nil {
		if _, err := time.ParseDuration(*c.Phase.Timeout); err != nil {
			return fmt.Errorf("invalid phase.timeout: %w", err)
		}
	}
	return nil
}

// ParseRange parses a viewport range. "all" and "" select the whole dataset
// (zero duration); anything else is a Go duration such as "5m".
func ParseRange(raw string) (time.Duration, error) {
	switch raw {
	case "", "all":
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("range must not be negative")
	}
	return d, nil
}
