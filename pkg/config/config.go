// Package config handles ember.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up next to a program.
const FileName = "ember.toml"

// Config is the full ember.toml contents.
type Config struct {
	VM    VM    `toml:"vm"`
	Image Image `toml:"image"`
	Log   Log   `toml:"log"`

	// Dir is the directory the file was loaded from (set at load time).
	Dir string `toml:"-"`
}

// VM tunes the execution engine.
type VM struct {
	MaxCallDepth int  `toml:"max-call-depth"`
	Trace        bool `toml:"trace"`
}

// Image configures compiled image output.
type Image struct {
	Output string `toml:"output"`
}

// Log configures diagnostic logging.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no ember.toml exists.
func Default() *Config {
	return &Config{
		VM:    VM{MaxCallDepth: 1024},
		Image: Image{Output: "out.evm"},
	}
}

// Load parses ember.toml from the given directory, filling unset fields
// with defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if cfg.VM.MaxCallDepth <= 0 {
		cfg.VM.MaxCallDepth = Default().VM.MaxCallDepth
	}

	cfg.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return cfg, nil
}

// FindAndLoad walks up from startDir looking for ember.toml. It returns the
// defaults when no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// OutputPath resolves the image output path against the config directory.
func (c *Config) OutputPath() string {
	if c.Dir == "" || filepath.IsAbs(c.Image.Output) {
		return c.Image.Output
	}
	return filepath.Join(c.Dir, c.Image.Output)
}
