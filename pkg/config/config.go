// Package config provides configuration loading and management for tractxform.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"tractspace/pkg/affine"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Transform parameters
	Transform struct {
		// Affine holds the four rows of the 4x4 affine applied to the streamlines
		Affine [][]float64 `yaml:"affine"`

		// Lazy defers the affine until the streamlines are iterated
		Lazy bool `yaml:"lazy"`

		// ToWorld brings the streamlines to RAS+mm after the affine is applied
		ToWorld bool `yaml:"toWorld"`

		// AffineToRASMM is the affine that brings the generated streamlines to RAS+mm
		AffineToRASMM [][]float64 `yaml:"affineToRasmm"`
	} `yaml:"transform"`

	// Synthetic dataset parameters
	Synthetic struct {
		// NumStreamlines is the number of streamlines to generate
		NumStreamlines int `yaml:"numStreamlines"`

		// MinPoints and MaxPoints bound the number of points per streamline
		MinPoints int `yaml:"minPoints"`
		MaxPoints int `yaml:"maxPoints"`

		// Seed makes the generated dataset reproducible
		Seed int64 `yaml:"seed"`

		// PointScalars lists the names of per-point scalars to generate
		PointScalars []string `yaml:"pointScalars"`

		// StreamlineScalars lists the names of per-streamline scalars to generate
		StreamlineScalars []string `yaml:"streamlineScalars"`
	} `yaml:"synthetic"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Identity transform applied eagerly
	cfg.Transform.Affine = affine.Rows(affine.Identity())
	cfg.Transform.Lazy = false
	cfg.Transform.ToWorld = false
	cfg.Transform.AffineToRASMM = affine.Rows(affine.Identity())

	// Set default synthetic dataset parameters
	cfg.Synthetic.NumStreamlines = 1000
	cfg.Synthetic.MinPoints = 10
	cfg.Synthetic.MaxPoints = 100
	cfg.Synthetic.Seed = 1
	cfg.Synthetic.PointScalars = []string{"fa"}
	cfg.Synthetic.StreamlineScalars = []string{"weight"}

	// Set default output parameters
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// Validate checks that the affines are 4x4 and that the synthetic dataset
// parameters make sense.
func (c *Config) Validate() error {
	if _, err := c.Affine(); err != nil {
		return err
	}
	if _, err := c.AffineToRASMM(); err != nil {
		return err
	}
	if c.Synthetic.NumStreamlines < 0 {
		return fmt.Errorf("synthetic.numStreamlines must not be negative, got %d", c.Synthetic.NumStreamlines)
	}
	if c.Synthetic.MinPoints < 0 || c.Synthetic.MaxPoints < c.Synthetic.MinPoints {
		return fmt.Errorf("synthetic point range [%d, %d] is invalid",
			c.Synthetic.MinPoints, c.Synthetic.MaxPoints)
	}
	return nil
}

// Affine returns the configured transform as a 4x4 matrix.
func (c *Config) Affine() (*mat.Dense, error) {
	a, err := affine.FromRows(c.Transform.Affine)
	if err != nil {
		return nil, fmt.Errorf("transform.affine: %w", err)
	}
	return a, nil
}

// AffineToRASMM returns the configured affine to RAS+mm as a 4x4 matrix.
func (c *Config) AffineToRASMM() (*mat.Dense, error) {
	a, err := affine.FromRows(c.Transform.AffineToRASMM)
	if err != nil {
		return nil, fmt.Errorf("transform.affineToRasmm: %w", err)
	}
	return a, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
