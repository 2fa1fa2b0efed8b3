// Package config loads assetmanifest configuration files.
//
// A configuration file is YAML (assetmanifest.yaml) or JSON with optional
// comments and trailing commas (assetmanifest.json, assetmanifest.jsonc).
// Both decode through the same YAML decoder, so key order in the seed is
// preserved either way.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"assetmanifest/internal/core"
	"assetmanifest/internal/manifest"
)

// FileNames are the configuration files Discover looks for, in order.
var FileNames = []string{
	"assetmanifest.yaml",
	"assetmanifest.yml",
	"assetmanifest.json",
	"assetmanifest.jsonc",
}

// Naming modes.
const (
	NamingChunk    = "chunk"
	NamingTemplate = "template"
)

// Config is the file-level configuration.
type Config struct {
	// FileName is the manifest path relative to the output directory.
	// Default: manifest.json
	FileName string `yaml:"fileName"`

	BasePath   string `yaml:"basePath"`
	PublicPath string `yaml:"publicPath"`

	// Seed is the initial manifest value, any YAML/JSON value.
	Seed *yaml.Node `yaml:"seed"`

	// Naming selects how chunk files are keyed: "chunk" or "template".
	// Default: chunk
	Naming string `yaml:"naming"`

	// Template is the output filename template used by template naming.
	// Empty means the template reported in the first target's stats.
	Template string `yaml:"template"`

	// Filter, Sort, Reduce and Format name entries of Stages.
	// Defaults: all, none, object, json
	Filter string `yaml:"filter"`
	Sort   string `yaml:"sort"`
	Reduce string `yaml:"reduce"`
	Format string `yaml:"format"`

	Precompress     bool `yaml:"precompress"`
	WriteToFileEmit bool `yaml:"writeToFileEmit"`
	Harvest         bool `yaml:"harvest"`

	// OutputDir overrides where the manifest is written.
	OutputDir string `yaml:"outputDir"`

	// CacheFile enables the deprecated shared cache, persisted at this
	// path.
	CacheFile string `yaml:"cacheFile"`

	Targets []Target `yaml:"targets"`

	// Dir is the directory of the loaded file; relative paths resolve
	// against it.
	Dir string `yaml:"-"`
}

// Target is one stats file taking part in every round.
type Target struct {
	ID    string `yaml:"id"`
	Stats string `yaml:"stats"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		FileName: manifest.DefaultFileName,
		Naming:   NamingChunk,
		Filter:   "all",
		Sort:     "none",
		Reduce:   "object",
		Format:   "json",
	}
}

// Discover returns the first configuration file found in dir, or "" if
// there is none.
func Discover(dir string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", err
		}
	}
	return "", nil
}

// Load reads the configuration file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", manifest.ErrInvalidConfig, path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes data over the defaults. ext selects the syntax: ".json"
// and ".jsonc" are stripped of comments first; anything else is YAML.
// Unknown keys are rejected.
func Parse(data []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", manifest.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks stage names and required fields.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.FileName) == "" {
		errs = append(errs, errors.New("fileName must not be empty"))
	}
	switch c.Naming {
	case NamingChunk, NamingTemplate:
	default:
		errs = append(errs, fmt.Errorf("naming %q is not one of chunk, template", c.Naming))
	}
	if c.Template != "" {
		if _, err := core.NewTemplateNames(c.Template); err != nil {
			errs = append(errs, err)
		}
	}
	if _, ok := Stages.Filters[c.Filter]; !ok {
		errs = append(errs, fmt.Errorf("unknown filter %q", c.Filter))
	}
	if _, ok := Stages.Sorts[c.Sort]; !ok {
		errs = append(errs, fmt.Errorf("unknown sort %q", c.Sort))
	}
	if _, ok := Stages.Reduces[c.Reduce]; !ok {
		errs = append(errs, fmt.Errorf("unknown reduce %q", c.Reduce))
	}
	if _, ok := Stages.Formats[c.Format]; !ok {
		errs = append(errs, fmt.Errorf("unknown format %q", c.Format))
	}
	for i, t := range c.Targets {
		if strings.TrimSpace(t.Stats) == "" {
			errs = append(errs, fmt.Errorf("targets[%d].stats is required", i))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", manifest.ErrInvalidConfig, errors.Join(errs...))
}

// Resolve makes p absolute relative to the configuration file's
// directory. Empty and absolute paths are returned unchanged.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, filepath.FromSlash(p))
}

// Manifest builds the pipeline configuration.
func (c *Config) Manifest() (manifest.Config, error) {
	if err := c.Validate(); err != nil {
		return manifest.Config{}, err
	}
	seed, err := SeedValue(c.Seed)
	if err != nil {
		return manifest.Config{}, fmt.Errorf("%w: seed: %w", manifest.ErrInvalidConfig, err)
	}
	reduce := Stages.Reduces[c.Reduce]
	if seed == nil && c.Reduce == "list" {
		seed = []any{}
	}
	return manifest.Config{
		FileName:        c.FileName,
		BasePath:        c.BasePath,
		PublicPath:      c.PublicPath,
		Seed:            seed,
		Filter:          Stages.Filters[c.Filter],
		Sort:            Stages.Sorts[c.Sort],
		Reduce:          reduce,
		Serialize:       Stages.Formats[c.Format],
		Precompress:     c.Precompress,
		WriteToFileEmit: c.WriteToFileEmit,
	}, nil
}

// Names returns the name resolver for the configured naming mode. When
// fromStats is true the caller must take the template from the stats.
func (c *Config) Names() (names core.NameResolver, fromStats bool, err error) {
	if c.Naming != NamingTemplate {
		return core.ChunkNames{}, false, nil
	}
	if c.Template == "" {
		return nil, true, nil
	}
	tn, err := core.NewTemplateNames(c.Template)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", manifest.ErrInvalidConfig, err)
	}
	return tn, false, nil
}
