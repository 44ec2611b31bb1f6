// Package config holds the tunables of a context-filtering run and loads
// them from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration is returned for out-of-range tunables. It is reported
// before any geometry is processed.
var ErrConfiguration = errors.New("invalid configuration")

const (
	// DefaultMinVF is the default Pass-1 majorized view factor threshold.
	DefaultMinVF = 0.01

	// MaxRays is the number of canonical rays per face pair.
	MaxRays = 9

	// DefaultErosion is how far ray endpoints are pulled in, in metres.
	DefaultErosion = 0.05
)

// Config is the set of run parameters.
type Config struct {
	// MinVFCriterion is the Pass-1 threshold. Lower keeps more buildings.
	MinVFCriterion float64 `yaml:"min_vf_criterion" json:"min_vf_criterion"`

	// RayCount is how many of the canonical rays Pass-2 fires, 1..9.
	RayCount int `yaml:"ray_count" json:"ray_count"`

	// ExcludeSelfIntersection pulls ray endpoints in by Erosion.
	ExcludeSelfIntersection bool    `yaml:"exclude_self_intersection" json:"exclude_self_intersection"`
	Erosion                 float64 `yaml:"erosion" json:"erosion"`

	// Workers bounds the number of targets filtered concurrently.
	// Zero means one per CPU.
	Workers int `yaml:"workers" json:"workers"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		MinVFCriterion:          DefaultMinVF,
		RayCount:                MaxRays,
		ExcludeSelfIntersection: true,
		Erosion:                 DefaultErosion,
		Workers:                 0,
	}
}

// Validate checks every tunable and returns an error wrapping
// ErrConfiguration for the first one out of range.
func (c Config) Validate() error {
	if err := CheckMinVF(c.MinVFCriterion); err != nil {
		return err
	}
	if err := CheckRayCount(c.RayCount); err != nil {
		return err
	}
	if c.Erosion < 0 {
		return fmt.Errorf("%w: erosion %g must not be negative", ErrConfiguration, c.Erosion)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d must not be negative", ErrConfiguration, c.Workers)
	}
	return nil
}

// CheckMinVF rejects non-positive thresholds.
func CheckMinVF(v float64) error {
	if !(v > 0) {
		return fmt.Errorf("%w: min_vf_criterion %g must be positive", ErrConfiguration, v)
	}
	return nil
}

// CheckRayCount rejects ray counts outside [1, MaxRays].
func CheckRayCount(n int) error {
	if n < 1 || n > MaxRays {
		return fmt.Errorf("%w: ray_count %d must be in [1,%d]", ErrConfiguration, n, MaxRays)
	}
	return nil
}

// EffectiveWorkers resolves the zero value of Workers.
func (c Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}
