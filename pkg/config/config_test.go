package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min vf", func(c *Config) { c.MinVFCriterion = 0 }},
		{"negative min vf", func(c *Config) { c.MinVFCriterion = -0.5 }},
		{"zero rays", func(c *Config) { c.RayCount = 0 }},
		{"ten rays", func(c *Config) { c.RayCount = 10 }},
		{"negative erosion", func(c *Config) { c.Erosion = -1 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfiguration) {
				t.Errorf("Validate() = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestParseKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("ray_count: 3\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.RayCount != 3 {
		t.Errorf("RayCount = %d, want 3", cfg.RayCount)
	}
	if cfg.MinVFCriterion != DefaultMinVF {
		t.Errorf("MinVFCriterion = %g, want default %g", cfg.MinVFCriterion, DefaultMinVF)
	}
	if !cfg.ExcludeSelfIntersection {
		t.Error("ExcludeSelfIntersection lost its default")
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Parse(nil) = %+v, want defaults", cfg)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "rays: 3\n"},
		{"out of range", "ray_count: 12\n"},
		{"bad threshold", "min_vf_criterion: 0\n"},
		{"not yaml", "ray_count: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.src)); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.src)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "umbra.yaml")
	src := "min_vf_criterion: 0.005\nworkers: 2\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinVFCriterion != 0.005 || cfg.Workers != 2 {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.EffectiveWorkers() != 2 {
		t.Errorf("EffectiveWorkers() = %d, want 2", cfg.EffectiveWorkers())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file succeeded")
	}
}
