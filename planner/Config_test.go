package planner

import (
	"path/filepath"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero horizon", func(c *Config) { c.Horizon = 0 }},
		{"zero iterations", func(c *Config) { c.NumIterations = 0 }},
		{"zero particles", func(c *Config) { c.NumParticles = 0 }},
		{"zero samples", func(c *Config) { c.NumSamples = 0 }},
		{"zero elites", func(c *Config) { c.NumElites = 0 }},
		{"more elites than samples", func(c *Config) {
			c.NumElites = c.NumSamples + 1
		}},
		{"negative momentum", func(c *Config) { c.Momentum = -0.1 }},
		{"momentum of one", func(c *Config) { c.Momentum = 1.0 }},
		{"zero epsilon", func(c *Config) { c.Epsilon = 0 }},
		{"epsilon above one", func(c *Config) { c.Epsilon = 1.5 }},
		{"zero initial variance", func(c *Config) { c.InitVar = 0 }},
		{"discount above one", func(c *Config) { c.Gamma = 1.1 }},
		{"negative cost discount", func(c *Config) { c.CostGamma = -0.1 }},
		{"negative penalty weight", func(c *Config) {
			c.VarPenaltyWeight = -1
		}},
		{"empty action range", func(c *Config) {
			c.ActionMin, c.ActionMax = 1, -1
		}},
	}

	for _, test := range tests {
		c := testConfig()
		test.modify(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%v: expected validation error", test.name)
		}
	}

	if err := testConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	c := testConfig()
	c.Horizon = 12
	c.CostLimit = 3.5
	c.ActionMin = -0.75

	path := filepath.Join(t.TempDir(), "planner.yaml")
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != c {
		t.Errorf("round trip changed config:\nsaved:  %+v\nloaded: %+v",
			c, loaded)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	c := testConfig()
	c.Horizon = -1

	path := filepath.Join(t.TempDir(), "planner.yaml")
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation error loading invalid config")
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error loading missing file")
	}
}
