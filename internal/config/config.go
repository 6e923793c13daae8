// Package config loads the calyx.yaml file shared by the calyx tools.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/tliron/commonlog"
	"gopkg.in/yaml.v3"

	"calyx/internal/interp"
	"calyx/internal/ir"
	"calyx/internal/optimizer"
	"calyx/internal/regalloc"
)

const (
	Filename = "calyx.yaml"
	// SchemaVersion is written into new configuration files
	SchemaVersion = "1.0.0"
	// SupportedVersions is the range of schema versions this build reads
	SupportedVersions = ">= 1.0.0, < 2.0.0"
)

var log = commonlog.GetLogger("calyx.config")

// Config is the contents of calyx.yaml
type Config struct {
	Version   string          `yaml:"version"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Registers RegisterConfig  `yaml:"registers"`
	Interp    InterpConfig    `yaml:"interp"`
	Log       LogConfig       `yaml:"log"`
}

type OptimizerConfig struct {
	MaxIterations int      `yaml:"maxIterations,omitempty"`
	Passes        []string `yaml:"passes,omitempty"`
}

// RegisterConfig sets the population of each register class
type RegisterConfig struct {
	GPR int `yaml:"gpr,omitempty"`
	FPR int `yaml:"fpr,omitempty"`
}

type InterpConfig struct {
	MaxSteps int `yaml:"maxSteps,omitempty"`
	MaxDepth int `yaml:"maxDepth,omitempty"`
}

type LogConfig struct {
	// Verbosity follows commonlog: 0 is errors only, each step adds a level
	Verbosity int    `yaml:"verbosity,omitempty"`
	File      string `yaml:"file,omitempty"`
}

// Default returns the configuration used when no file is present
func Default() Config {
	var c Config
	c.normalize()
	return c
}

func (c *Config) normalize() {
	if c.Version == "" {
		c.Version = SchemaVersion
	}
	if c.Optimizer.MaxIterations <= 0 {
		c.Optimizer.MaxIterations = optimizer.DefaultMaxIterations
	}
	if len(c.Optimizer.Passes) == 0 {
		c.Optimizer.Passes = append([]string(nil), optimizer.PassNames...)
	}
	if c.Registers.GPR <= 0 {
		c.Registers.GPR = regalloc.DefaultPopulation
	}
	if c.Registers.FPR <= 0 {
		c.Registers.FPR = regalloc.DefaultPopulation
	}
	if c.Interp.MaxSteps <= 0 {
		c.Interp.MaxSteps = interp.DefaultMaxSteps
	}
	if c.Interp.MaxDepth <= 0 {
		c.Interp.MaxDepth = interp.DefaultMaxDepth
	}
}

// Validate checks the schema version and the pass names
func (c *Config) Validate() error {
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("version %q: %w", c.Version, err)
	}
	supported, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	if !supported.Check(v) {
		return fmt.Errorf("schema version %s is not supported (want %s)", v, SupportedVersions)
	}
	for _, name := range c.Optimizer.Passes {
		if _, err := optimizer.PassByName(name); err != nil {
			return fmt.Errorf("optimizer.passes: %w", err)
		}
	}
	return nil
}

// Parse decodes configuration data. name is only used in error messages.
func Parse(data []byte, name string) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", name, err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

// Load reads a configuration file
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	c, err := Parse(data, path)
	if err != nil {
		return Config{}, err
	}
	log.Infof("loaded %s (schema %s)", path, c.Version)
	return c, nil
}

// Find looks for calyx.yaml in dir and its parents and loads the first one.
// Without a file the defaults are returned.
func Find(dir string) (Config, string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return Config{}, "", err
	}
	for {
		path := filepath.Join(dir, Filename)
		if _, err := os.Stat(path); err == nil {
			c, err := Load(path)
			return c, path, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), "", nil
		}
		dir = parent
	}
}

// Write stores c as YAML at path
func Write(path string, c Config) error {
	c.normalize()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Pipeline builds the configured optimization pipeline
func (c *Config) Pipeline() (*optimizer.Pipeline, error) {
	p := optimizer.NewPipeline(c.Optimizer.MaxIterations)
	for _, name := range c.Optimizer.Passes {
		pass, err := optimizer.PassByName(name)
		if err != nil {
			return nil, err
		}
		p.AddPass(pass)
	}
	return p, nil
}

// InterpOptions returns the interpreter limits
func (c *Config) InterpOptions() interp.Options {
	return interp.Options{MaxSteps: c.Interp.MaxSteps, MaxDepth: c.Interp.MaxDepth}
}

// RegisterSpace classifies the variables of fn with the configured populations
func (c *Config) RegisterSpace(fn *ir.Function) (*regalloc.ExampleRegSpace, error) {
	return regalloc.NewExampleRegSpace(fn, c.Registers.GPR, c.Registers.FPR)
}

// Configure sets up commonlog. A positive verbosity overrides the file.
func (c *Config) Configure(verbosity int) {
	if verbosity <= 0 {
		verbosity = c.Log.Verbosity
	}
	var path *string
	if c.Log.File != "" {
		path = &c.Log.File
	}
	commonlog.Configure(verbosity, path)
}
