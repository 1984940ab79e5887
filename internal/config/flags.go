package config

import (
	"flag"
	"time"
)

// Flags holds the command-line overrides shared by scenetool subcommands.
// Only flags the user actually set override the config file.
type Flags struct {
	fs *flag.FlagSet

	config   string
	debug    bool
	logFile  string
	format   string
	upAxis   string
	helpers  bool
	optimize string
	debounce time.Duration
}

// BindFlags registers the config flags on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.config, "config", "", "Path to config file")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.logFile, "log-file", "", "Also write logs to this file")
	fs.StringVar(&f.format, "format", "", "Output format: glb, obj or stl")
	fs.StringVar(&f.upAxis, "up", "", "Source up axis: Y, Z, -Y or -Z")
	fs.BoolVar(&f.helpers, "helpers", false, "Add axis and grid helper geometry")
	fs.StringVar(&f.optimize, "optimize", "", "Mesh cleanup: none, weld or full")
	fs.DurationVar(&f.debounce, "debounce", 0, "Watch debounce interval")
	return f
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	return f.config
}

// Apply copies every flag that was set on the command line into cfg.
// Call it again after layering in a manifest so flags stay on top.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "debug":
			if f.debug {
				cfg.Logging.Level = "debug"
			}
		case "log-file":
			cfg.Logging.LogFile = f.logFile
		case "format":
			cfg.Export.Format = f.format
		case "up":
			cfg.Export.UpAxis = f.upAxis
		case "helpers":
			cfg.Export.Helpers = f.helpers
		case "optimize":
			cfg.Export.Optimize = f.optimize
		case "debounce":
			cfg.Watch.Debounce = f.debounce
		}
	})
}
