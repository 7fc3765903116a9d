// Package config loads routemap settings from .routemap.yaml or
// .routemap.toml files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultMaxFileSize is the largest file analyzed unless configured otherwise.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// FileNames are the config files Find looks for, in order.
var FileNames = []string{".routemap.yaml", ".routemap.yml", ".routemap.toml"}

// Formats are the accepted output formats.
var Formats = []string{"toon", "json", "yaml"}

// ErrUnknownFormat is returned for a config file with an unrecognized extension.
var ErrUnknownFormat = errors.New("unknown config file format")

// Config holds every setting that can come from a file. Flags override it.
type Config struct {
	Include      []string `yaml:"include" toml:"include"`
	Exclude      []string `yaml:"exclude" toml:"exclude"`
	Languages    []string `yaml:"languages" toml:"languages"`
	MaxFileSize  int64    `yaml:"max_file_size" toml:"max_file_size"`
	MaxFiles     int      `yaml:"max_files" toml:"max_files"`
	Workers      int      `yaml:"workers" toml:"workers"`
	Format       string   `yaml:"format" toml:"format"`
	SkipTests    bool     `yaml:"skip_tests" toml:"skip_tests"`
	AppFactories []string `yaml:"app_factories" toml:"app_factories"`
	RepoID       string   `yaml:"repo_id" toml:"repo_id"`
	DocsFile     string   `yaml:"docs_file" toml:"docs_file"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		MaxFileSize: DefaultMaxFileSize,
		Workers:     runtime.GOMAXPROCS(0),
		Format:      "toon",
		DocsFile:    "API.md",
	}
}

// Find returns the first config file present in root.
func Find(root string) (string, bool) {
	for _, name := range FileNames {
		p := filepath.Join(root, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Load reads the config file at path on top of Default. The format is chosen
// by extension.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	if err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and glob syntax.
func (c Config) Validate() error {
	var errs []error
	if c.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("max_file_size must be >= 0, got %d", c.MaxFileSize))
	}
	if c.MaxFiles < 0 {
		errs = append(errs, fmt.Errorf("max_files must be >= 0, got %d", c.MaxFiles))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.Format != "" && !contains(Formats, c.Format) {
		errs = append(errs, fmt.Errorf("format must be one of %s, got %q", strings.Join(Formats, ", "), c.Format))
	}
	for _, p := range append(append([]string{}, c.Include...), c.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("invalid glob %q", p))
		}
	}
	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
