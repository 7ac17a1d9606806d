package planner

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes a CAPPlanner. Configs are yaml-serializable so
// that the exact planner settings of an experiment can be stored with
// its results and reloaded later.
type Config struct {
	// Cross-entropy search shape
	Horizon       int `yaml:"plan_horizon"`
	NumIterations int `yaml:"num_iterations"`
	NumParticles  int `yaml:"num_particles"`
	NumSamples    int `yaml:"num_samples"`
	NumElites     int `yaml:"num_elites"`

	// Sampling distribution update
	Momentum float64 `yaml:"momentum"`
	Epsilon  float64 `yaml:"epsilon"`
	InitVar  float64 `yaml:"init_var"`

	// Return discounting. Reward and cost returns may be discounted
	// differently.
	Gamma     float64 `yaml:"gamma"`
	CostGamma float64 `yaml:"cost_gamma"`

	// Constraint and penalty weights. CostLimit should be the same
	// value the Lagrangian controller regulates toward.
	CostLimit        float64 `yaml:"cost_limit"`
	VarPenaltyWeight float64 `yaml:"var_penalty_weight"`

	// Feasible action range, applied element-wise
	ActionMin float64 `yaml:"action_min"`
	ActionMax float64 `yaml:"action_max"`
}

// Validate returns an error describing why the Config is invalid, or
// nil if it is valid
func (c Config) Validate() error {
	if c.Horizon <= 0 {
		return fmt.Errorf("validate: plan horizon must be > 0")
	}
	if c.NumIterations <= 0 {
		return fmt.Errorf("validate: number of iterations must be > 0")
	}
	if c.NumParticles <= 0 {
		return fmt.Errorf("validate: number of particles must be > 0")
	}
	if c.NumSamples <= 0 {
		return fmt.Errorf("validate: number of samples must be > 0")
	}
	if c.NumElites <= 0 {
		return fmt.Errorf("validate: number of elites must be > 0")
	}
	if c.NumElites > c.NumSamples {
		return fmt.Errorf("validate: cannot select %v elites from %v "+
			"samples", c.NumElites, c.NumSamples)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("validate: momentum must be in [0, 1)")
	}
	if c.Epsilon <= 0 || c.Epsilon > 1 {
		return fmt.Errorf("validate: epsilon must be in (0, 1]")
	}
	if c.InitVar <= 0 {
		return fmt.Errorf("validate: initial variance must be > 0")
	}
	if c.Gamma < 0 || c.Gamma > 1 || c.CostGamma < 0 || c.CostGamma > 1 {
		return fmt.Errorf("validate: discount factors must be in [0, 1]")
	}
	if c.VarPenaltyWeight < 0 {
		return fmt.Errorf("validate: variance penalty weight must be >= 0")
	}
	if c.ActionMin >= c.ActionMax {
		return fmt.Errorf("validate: action range [%v, %v] is empty",
			c.ActionMin, c.ActionMax)
	}
	if math.IsNaN(c.CostLimit) || math.IsInf(c.CostLimit, 0) {
		return fmt.Errorf("validate: cost limit must be finite")
	}
	return nil
}

// Save writes the Config to a yaml file
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// LoadConfig reads a Config from a yaml file and validates it
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("loadConfig: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("loadConfig: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("loadConfig: %w", err)
	}
	return c, nil
}
