// scenetool bakes scene manifests into GLB, OBJ or STL files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/scenebake/internal/assets"
	"github.com/Faultbox/scenebake/internal/config"
	"github.com/Faultbox/scenebake/internal/logger"
	"github.com/Faultbox/scenebake/internal/manifest"
	"github.com/Faultbox/scenebake/internal/watch"
	"github.com/Faultbox/scenebake/pkg/export"
	"github.com/Faultbox/scenebake/pkg/scene"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "bake", "b":
		err = cmdBake(args, os.Stdout)
	case "info", "i":
		err = cmdInfo(args, os.Stdout)
	case "watch", "w":
		err = cmdWatch(args, os.Stdout)
	case "config":
		err = cmdConfig(args, os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	logger.Sync()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `scenetool - scene baking utility

Usage:
  scenetool <command> [options]

Commands:
  bake [-o output] <scene.yaml|toml>   Export the scene once
  info <scene.yaml|toml>               Show placements and stats without writing
  watch [-o output] <scene.yaml|toml>  Re-export whenever the scene or its files change
  config [-save path]                  Print or save the effective configuration

Options (bake, info, watch, config):
  -config path    Config file (default ./scenetool.yaml)
  -format fmt     glb, obj or stl
  -up axis        Source up axis: Y, Z, -Y or -Z
  -helpers        Add axis and grid helper geometry
  -debug          Enable debug logging
  -log-file path  Also write logs to a rotating file
  -debounce dur   Watch debounce interval

Examples:
  scenetool bake level1.yaml
  scenetool bake -format obj -o out/level1.obj level1.yaml
  scenetool watch -up Z props.toml`)
}

// job is a configured bake of one manifest.
type job struct {
	cfg      *config.Config
	flags    *config.Flags
	path     string
	outFlag  string // -o, overrides the manifest
	output   string
	manifest *manifest.Manifest
	opts     export.Options
	assets   *assets.Manager // reused across watch rebuilds
}

// newJob parses the common flags, loads config and initializes logging.
// The manifest is loaded separately so watch can reload it.
func newJob(name string, args []string) (*job, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	flags := config.BindFlags(fs)
	output := fs.String("o", "", "Output file (default from manifest or config)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < 1 {
		return nil, fmt.Errorf("usage: scenetool %s [options] <scene.yaml|toml>", name)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, err
	}

	return &job{
		cfg:     cfg,
		flags:   flags,
		path:    fs.Arg(0),
		outFlag: *output,
		assets:  assets.NewManager(),
	}, nil
}

// load reads the manifest and layers its export section between the config
// file and the command-line flags.
func (j *job) load() error {
	m, err := manifest.Load(j.path)
	if err != nil {
		return err
	}

	cfg := *j.cfg
	output := m.Configure(&cfg.Export)
	j.flags.Apply(&cfg)
	if j.outFlag != "" {
		output = j.outFlag
	}

	opts, err := cfg.Export.Options()
	if err != nil {
		return err
	}
	j.manifest, j.output, j.opts = m, output, opts
	return nil
}

// apply registers the manifest into a fresh registry.
func (j *job) apply() (*scene.Registry, []string, error) {
	reg := scene.NewRegistry()
	roots, err := j.manifest.ApplyFrom(reg, j.assets)
	if err != nil {
		return nil, nil, err
	}
	return reg, roots, nil
}

func cmdBake(args []string, out io.Writer) error {
	j, err := newJob("bake", args)
	if err != nil {
		return err
	}
	if err := j.load(); err != nil {
		return err
	}
	reg, roots, err := j.apply()
	if err != nil {
		return err
	}

	exp := export.NewExporter(reg, logger.Named("export"))
	res, err := exp.Export(roots, j.output, j.opts)
	if res != nil {
		printWarnings(res.Warnings)
	}
	if err != nil {
		return err
	}

	printResult(out, res)
	return nil
}

func cmdInfo(args []string, out io.Writer) error {
	j, err := newJob("info", args)
	if err != nil {
		return err
	}
	if err := j.load(); err != nil {
		return err
	}
	reg, roots, err := j.apply()
	if err != nil {
		return err
	}

	exp := export.NewExporter(reg, logger.Named("export"))
	b, err := exp.Build(roots, j.opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Manifest:    %s\n", j.manifest.Path())
	fmt.Fprintf(out, "Output:      %s (%s, up %s, optimize %s)\n", j.output, j.opts.Format, j.opts.UpAxis, j.opts.Optimize)
	fmt.Fprintf(out, "Fingerprint: %s\n", reg.Fingerprint(roots, j.opts.Key()))
	meshes, nodes := reg.Len()
	fmt.Fprintf(out, "Registered:  %d meshes, %d nodes\n", meshes, nodes)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Placements:")
	for _, p := range b.Placements {
		t := p.World.TransformPoint([3]float32{})
		fmt.Fprintf(out, "  %-16s %-16s %6d tris  at (%.3g, %.3g, %.3g)\n",
			p.RootID, p.MeshID, len(p.Mesh.Triangles), t[0], t[1], t[2])
	}
	fmt.Fprintln(out)
	printStats(out, b.Stats)
	printWarnings(b.Warnings)
	return nil
}

func cmdWatch(args []string, out io.Writer) error {
	j, err := newJob("watch", args)
	if err != nil {
		return err
	}
	log := logger.Named("watch")

	var last string
	rebuild := func(context.Context) error {
		if err := j.load(); err != nil {
			return err
		}
		reg, roots, err := j.apply()
		if err != nil {
			return err
		}

		fp := reg.Fingerprint(roots, j.opts.Key(), j.output)
		if fp == last {
			log.Debug("scene unchanged, skipping export")
			return nil
		}

		res, err := export.NewExporter(reg, logger.Named("export")).Export(roots, j.output, j.opts)
		if res != nil {
			printWarnings(res.Warnings)
		}
		if isNothing(err) {
			// Keep watching; the scene may gain geometry on the next save.
			log.Warn("nothing to export", zap.String("manifest", j.path))
			last = ""
			return nil
		}
		if err != nil {
			return err
		}
		last = fp
		printResult(out, res)
		return nil
	}

	files := func() []string {
		if j.manifest == nil {
			return []string{j.path}
		}
		return j.manifest.Files()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("watching", zap.String("manifest", j.path), zap.Duration("debounce", j.cfg.Watch.Debounce))
	w := &watch.Watcher{
		Files:    files,
		Rebuild:  rebuild,
		Debounce: j.cfg.Watch.Debounce,
		Log:      log,
	}
	return w.Run(ctx)
}

func cmdConfig(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	flags := config.BindFlags(fs)
	save := fs.String("save", "", "Write the effective config to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	if *save != "" {
		if err := cfg.SaveTo(*save); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %s\n", *save)
		return nil
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func printResult(out io.Writer, res *export.Result) {
	for _, f := range res.Files {
		fmt.Fprintf(out, "Wrote %s\n", f)
	}
	printStats(out, res.Stats)
}

func printStats(out io.Writer, s export.Stats) {
	size := s.Bounds.Size()
	fmt.Fprintf(out, "Primitives: %d\n", s.Primitives)
	fmt.Fprintf(out, "Vertices:   %d\n", s.Vertices)
	fmt.Fprintf(out, "Triangles:  %d\n", s.Triangles)
	fmt.Fprintf(out, "Materials:  %d\n", s.Materials)
	fmt.Fprintf(out, "Size:       %.3g x %.3g x %.3g\n", size[0], size[1], size[2])
}

func printWarnings(err error) {
	for _, w := range multierr.Errors(err) {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", w)
	}
}

// isNothing reports whether err means the scene had no geometry.
func isNothing(err error) bool {
	return errors.Is(err, export.ErrNothingToExport)
}
