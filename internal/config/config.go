package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/eac3fix/internal/common"
	"example.com/eac3fix/internal/eac3"
)

// DefaultPath is consulted when no --config flag is given. A missing file at
// this path is not an error.
const DefaultPath = "eac3fix.yaml"

// Config holds the settings shared by every eac3fix command.
type Config struct {
	OutputSuffix string           `yaml:"outputSuffix"`
	OutputDir    string           `yaml:"outputDir"`
	Audit        bool             `yaml:"audit"`
	Summary      bool             `yaml:"summary"`
	Concurrency  int              `yaml:"concurrency"`
	Color        *bool            `yaml:"color"`
	Logs         common.LogConfig `yaml:"logs"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// ColorEnabled reports whether coloured console output is wanted.
func (c Config) ColorEnabled() bool {
	return c.Color == nil || *c.Color
}

// Load reads the YAML file at path. When path is DefaultPath and the file does
// not exist the defaults are returned. Relative paths inside the file are
// resolved against its directory.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
			return Default(), nil
		}
		return Config{}, err
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	cfg.OutputDir = resolvePath(cfg.OutputDir)
	cfg.Logs.Directory = resolvePath(cfg.Logs.Directory)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.OutputSuffix == "" {
		c.OutputSuffix = eac3.DefaultOutputSuffix
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.Logs.MaxSizeMB <= 0 {
		c.Logs.MaxSizeMB = 25
	}
	if c.Logs.MaxAgeDays <= 0 {
		c.Logs.MaxAgeDays = 7
	}
	if c.Logs.MaxBackups <= 0 {
		c.Logs.MaxBackups = 5
	}
}

// Validate rejects settings that would make the output collide with the input.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.OutputSuffix, ".") {
		return fmt.Errorf("outputSuffix %q must start with '.'", c.OutputSuffix)
	}
	if strings.ContainsAny(c.OutputSuffix, `/\`) {
		return fmt.Errorf("outputSuffix %q must not contain a path separator", c.OutputSuffix)
	}
	if strings.EqualFold(c.OutputSuffix, ".eac3") {
		return errors.New("outputSuffix .eac3 would overwrite the input")
	}
	return nil
}
