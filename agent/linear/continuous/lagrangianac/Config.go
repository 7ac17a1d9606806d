package lagrangianac

import (
	"fmt"

	"github.com/samuelfneumann/gosafe/agent"
	"github.com/samuelfneumann/gosafe/environment"
	"github.com/samuelfneumann/gosafe/lagrange"
)

// Config describes a LagrangianAC agent
type Config struct {
	ActorLR  float64 `yaml:"actor_lr"`
	CriticLR float64 `yaml:"critic_lr"`
	Gamma    float64 `yaml:"gamma"`

	Lagrange lagrange.Config `yaml:"lagrange"`

	// UpdateMultiplierEvery is the number of finished episodes per
	// multiplier update cycle
	UpdateMultiplierEvery int `yaml:"update_multiplier_every"`
}

// DefaultConfig returns a Config with reasonable settings for small
// coordinate-observation environments
func DefaultConfig() Config {
	return Config{
		ActorLR:  0.001,
		CriticLR: 0.01,
		Gamma:    0.99,
		Lagrange: lagrange.Config{
			CostLimit:      1.0,
			InitMultiplier: 0.0,
			LearningRate:   0.05,
			MultiplierMax:  100.0,
		},
		UpdateMultiplierEvery: 1,
	}
}

// Validate returns an error describing why the Config is invalid, or
// nil if it is valid
func (c Config) Validate() error {
	if c.ActorLR <= 0 {
		return fmt.Errorf("validate: actor learning rate must be > 0")
	}
	if c.CriticLR <= 0 {
		return fmt.Errorf("validate: critic learning rate must be > 0")
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1], got %v",
			c.Gamma)
	}
	if err := c.Lagrange.Validate(); err != nil {
		return fmt.Errorf("validate: lagrange: %w", err)
	}
	if c.UpdateMultiplierEvery <= 0 {
		return fmt.Errorf("validate: update multiplier cycle must be > 0")
	}
	return nil
}

// CreateAgent creates the LagrangianAC agent that the config
// describes, implementing the agent.Config interface
func (c Config) CreateAgent(env environment.Environment,
	seed uint64) (agent.Agent, error) {
	return New(env, c, seed)
}
