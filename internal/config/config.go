// Package config handles scenetool configuration loading and management.
package config

import (
	"fmt"
	"time"

	"github.com/Faultbox/scenebake/pkg/export"
	smath "github.com/Faultbox/scenebake/pkg/math"
)

// Config holds all scenetool settings.
type Config struct {
	Export  ExportConfig  `yaml:"export"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// ExportConfig holds defaults for baking scenes. A manifest's export section
// overrides these per scene.
type ExportConfig struct {
	Format        string  `yaml:"format"`  // glb, obj or stl
	UpAxis        string  `yaml:"up_axis"` // Y, Z, -Y or -Z
	Helpers       bool    `yaml:"helpers"` // add axis and grid geometry
	HelperSize    float32 `yaml:"helper_size"`
	GridDivisions int     `yaml:"grid_divisions"`
	Optimize      string  `yaml:"optimize"`   // none, weld or full
	OutputDir     string  `yaml:"output_dir"` // used when a manifest names no output
}

// WatchConfig holds file watcher settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Format:        string(export.FormatGLB),
			UpAxis:        string(smath.UpY),
			Helpers:       false,
			HelperSize:    export.DefaultHelperSize,
			GridDivisions: export.DefaultGridDivisions,
			Optimize:      string(export.OptimizeNone),
			OutputDir:     "out",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Options converts the export settings into exporter options.
func (c ExportConfig) Options() (export.Options, error) {
	format, err := export.ParseFormat(c.Format)
	if err != nil {
		return export.Options{}, fmt.Errorf("export.format: %w", err)
	}
	axis, err := smath.ParseUpAxis(c.UpAxis)
	if err != nil {
		return export.Options{}, fmt.Errorf("export.up_axis: %w", err)
	}
	level, err := export.ParseOptimize(c.Optimize)
	if err != nil {
		return export.Options{}, fmt.Errorf("export.optimize: %w", err)
	}
	return export.Options{
		Format:         format,
		IncludeHelpers: c.Helpers,
		UpAxis:         axis,
		HelperSize:     c.HelperSize,
		GridDivisions:  c.GridDivisions,
		Optimize:       level,
	}, nil
}

// Validate reports settings that would make every bake fail.
func (c *Config) Validate() error {
	if _, err := c.Export.Options(); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce: must not be negative, got %s", c.Watch.Debounce)
	}
	return nil
}
