package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"assetmanifest/internal/config"
	"assetmanifest/internal/core"
	"assetmanifest/internal/dag"
	"assetmanifest/internal/host"
	"assetmanifest/internal/manifest"
	"assetmanifest/internal/round"
	"assetmanifest/internal/state"
)

const (
	ExitSuccess           = 0
	ExitBuildFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// InvocationError carries the exit code for a failure detected before any
// build work starts.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var inv *InvocationError
	if errors.As(err, &inv) {
		return inv.ExitCode
	}
	if errors.Is(err, manifest.ErrInvalidConfig) {
		return ExitConfigError
	}
	var se *manifest.StageError
	switch {
	case errors.Is(err, core.ErrPassFailed),
		errors.Is(err, core.ErrInvalidPass),
		errors.Is(err, dag.ErrInvalidGraph),
		errors.Is(err, dag.ErrCycleFound),
		errors.Is(err, round.ErrRoundIncomplete),
		errors.As(err, &se):
		return ExitBuildFailure
	}
	return ExitInternalError
}

// globalOptions are the root command's persistent flags.
type globalOptions struct {
	workDir    string
	configPath string
	verbose    bool
}

// buildFlags are shared by build and watch. Values only override the
// configuration file when the flag was set.
type buildFlags struct {
	stats       []string
	fileName    string
	basePath    string
	publicPath  string
	naming      string
	template    string
	filter      string
	sort        string
	reduce      string
	format      string
	outputDir   string
	cacheFile   string
	precompress bool
	harvest     bool
	dryRun      bool
	noHistory   bool
	debounce    time.Duration
}

func (g *globalOptions) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.workDir, "workdir", "C", "", "Working directory (default: current directory)")
	fs.StringVarP(&g.configPath, "config", "c", "", "Configuration file (default: discover assetmanifest.{yaml,yml,json,jsonc} in workdir)")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
}

func (b *buildFlags) register(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&b.stats, "stats", "s", nil, "Stats file of one build pass, as PATH or ID=PATH (repeatable)")
	fs.StringVar(&b.fileName, "file-name", "", "Manifest file name relative to the output directory")
	fs.StringVar(&b.basePath, "base-path", "", "Prefix for manifest keys")
	fs.StringVar(&b.publicPath, "public-path", "", "Prefix for manifest values")
	fs.StringVar(&b.naming, "naming", "", "Key naming: chunk|template")
	fs.StringVar(&b.template, "template", "", "Output filename template for template naming")
	fs.StringVar(&b.filter, "filter", "", "Filter: all|initial|chunks")
	fs.StringVar(&b.sort, "sort", "", "Sort: none|key|reverse")
	fs.StringVar(&b.reduce, "reduce", "", "Reduce: object|list|detailed")
	fs.StringVar(&b.format, "format", "", "Manifest encoding: json|cbor")
	fs.StringVar(&b.outputDir, "output-dir", "", "Directory the manifest is written to (default: first target's output directory)")
	fs.StringVar(&b.cacheFile, "cache-file", "", "Persist a shared manifest cache at this path (deprecated)")
	fs.BoolVar(&b.precompress, "precompress", false, "Also write a gzip copy of the manifest")
	fs.BoolVar(&b.harvest, "harvest", false, "Add undeclared files found in the output directory")
	fs.BoolVar(&b.dryRun, "dry-run", false, "Print the manifest instead of writing it")
	fs.BoolVar(&b.noHistory, "no-history", false, "Do not record round history under .assetmanifest")
}

// resolveWorkDir returns an absolute, cleaned working directory.
func (g *globalOptions) resolveWorkDir() (string, error) {
	wd := g.workDir
	if wd == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		wd = cwd
	}
	abs, err := filepath.Abs(wd)
	if err != nil {
		return "", invalidInvocationf("--workdir: %v", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", invalidInvocationf("--workdir %q is not a directory", wd)
	}
	return filepath.Clean(abs), nil
}

// loadConfig reads --config, or the discovered file in workDir, or the
// defaults.
func (g *globalOptions) loadConfig(workDir string) (*config.Config, error) {
	path := g.configPath
	if path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
	} else {
		found, err := config.Discover(workDir)
		if err != nil {
			return nil, err
		}
		path = found
	}
	if path == "" {
		cfg := config.Default()
		cfg.Dir = workDir
		return cfg, nil
	}
	return config.Load(path)
}

// apply copies explicitly set flags onto cfg. Paths given on the command
// line are relative to workDir.
func (b *buildFlags) apply(fs *pflag.FlagSet, cfg *config.Config, workDir string) {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("file-name", &cfg.FileName, b.fileName)
	set("base-path", &cfg.BasePath, b.basePath)
	set("public-path", &cfg.PublicPath, b.publicPath)
	set("naming", &cfg.Naming, b.naming)
	set("template", &cfg.Template, b.template)
	set("filter", &cfg.Filter, b.filter)
	set("sort", &cfg.Sort, b.sort)
	set("reduce", &cfg.Reduce, b.reduce)
	set("format", &cfg.Format, b.format)
	if fs.Changed("output-dir") {
		cfg.OutputDir = absUnder(workDir, b.outputDir)
	}
	if fs.Changed("cache-file") {
		cfg.CacheFile = absUnder(workDir, b.cacheFile)
	}
	if fs.Changed("precompress") {
		cfg.Precompress = b.precompress
	}
	if fs.Changed("harvest") {
		cfg.Harvest = b.harvest
	}
}

// targets returns the --stats targets, or the configured ones.
func (b *buildFlags) targets(cfg *config.Config, workDir string) ([]host.Target, error) {
	var out []host.Target
	if len(b.stats) > 0 {
		for _, arg := range b.stats {
			id, path := "", arg
			if i := strings.IndexByte(arg, '='); i >= 0 {
				id, path = arg[:i], arg[i+1:]
			}
			if path == "" {
				return nil, invalidInvocationf("--stats %q: missing path", arg)
			}
			out = append(out, host.Target{ID: id, StatsPath: absUnder(workDir, path)})
		}
	} else {
		for _, t := range cfg.Targets {
			out = append(out, host.Target{ID: t.ID, StatsPath: cfg.Resolve(t.Stats)})
		}
	}
	if len(out) == 0 {
		return nil, invalidInvocationf("no stats files: pass --stats or list targets in the configuration")
	}
	for _, t := range out {
		if _, err := os.Stat(t.StatsPath); err != nil {
			return nil, invalidInvocationf("stats file %q: %v", t.StatsPath, err)
		}
	}
	return out, nil
}

// hostOptions turns the merged configuration into builder options.
func (b *buildFlags) hostOptions(cfg *config.Config, workDir string) (host.Options, error) {
	if err := cfg.Validate(); err != nil {
		return host.Options{}, err
	}
	mc, err := cfg.Manifest()
	if err != nil {
		return host.Options{}, err
	}
	names, fromStats, err := cfg.Names()
	if err != nil {
		return host.Options{}, err
	}
	opts := host.Options{
		Manifest:          mc,
		Names:             names,
		TemplateFromStats: fromStats,
		OutputDir:         cfg.Resolve(cfg.OutputDir),
		Harvest:           cfg.Harvest,
		DryRun:            b.dryRun,
		CacheFile:         cfg.Resolve(cfg.CacheFile),
	}
	if !b.noHistory {
		store, err := state.NewStore(workDir)
		if err != nil {
			return host.Options{}, err
		}
		opts.Store = store
	}
	return opts, nil
}

func absUnder(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, filepath.FromSlash(p))
}
