package cappets

import (
	"fmt"

	"github.com/samuelfneumann/gosafe/agent"
	"github.com/samuelfneumann/gosafe/environment"
	"github.com/samuelfneumann/gosafe/expreplay"
	"github.com/samuelfneumann/gosafe/lagrange"
	"github.com/samuelfneumann/gosafe/planner"
)

// ControllerType names the Lagrangian controller variant a CAPPETS
// agent uses for its cost penalty
type ControllerType string

const (
	DualAscent ControllerType = "DualAscent"
	PID        ControllerType = "PID"
)

// Config describes a CAPPETS agent. The cost limit lives on the
// controller configs; the planner's feasibility test is wired from the
// same value, so the two can never disagree.
type Config struct {
	Planner planner.Config `yaml:"planner"`

	// Controller selects which Lagrangian controller adapts the cost
	// penalty; only the matching config is used
	Controller  ControllerType     `yaml:"controller"`
	Lagrange    lagrange.Config    `yaml:"lagrange"`
	LagrangePID lagrange.PIDConfig `yaml:"lagrange_pid"`

	// Dynamics model
	NumMembers int     `yaml:"num_members"`
	Ridge      float64 `yaml:"ridge"`

	// Replay buffer feeding dynamics training
	MinReplayCapacity int `yaml:"min_replay_capacity"`
	MaxReplayCapacity int `yaml:"max_replay_capacity"`
	BatchSize         int `yaml:"batch_size"`

	// UpdateDynamicsEvery is the number of environment steps between
	// dynamics-model training phases
	UpdateDynamicsEvery int `yaml:"update_dynamics_every"`

	// UpdateMultiplierEvery is the number of finished episodes per
	// multiplier update cycle
	UpdateMultiplierEvery int `yaml:"update_multiplier_every"`
}

// DefaultConfig returns a Config with reasonable settings for small
// coordinate-observation environments
func DefaultConfig() Config {
	return Config{
		Planner: planner.Config{
			Horizon:          8,
			NumIterations:    5,
			NumParticles:     4,
			NumSamples:       100,
			NumElites:        10,
			Momentum:         0.1,
			Epsilon:          0.001,
			InitVar:          0.25,
			Gamma:            0.99,
			CostGamma:        0.99,
			CostLimit:        1.0,
			VarPenaltyWeight: 1.0,
			ActionMin:        -1.0,
			ActionMax:        1.0,
		},
		Controller: DualAscent,
		Lagrange: lagrange.Config{
			CostLimit:      1.0,
			InitMultiplier: 0.0,
			LearningRate:   0.05,
			MultiplierMax:  100.0,
		},
		LagrangePID: lagrange.PIDConfig{
			CostLimit:      1.0,
			InitMultiplier: 0.0,
			MultiplierMax:  100.0,
			Kp:             0.1,
			Ki:             0.01,
			Kd:             0.0,
			WarmupCycles:   5,
		},
		NumMembers:            5,
		Ridge:                 0.01,
		MinReplayCapacity:     64,
		MaxReplayCapacity:     10000,
		BatchSize:             256,
		UpdateDynamicsEvery:   50,
		UpdateMultiplierEvery: 1,
	}
}

// Validate returns an error describing why the Config is invalid, or
// nil if it is valid
func (c Config) Validate() error {
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("validate: planner: %w", err)
	}
	switch c.Controller {
	case DualAscent:
		if err := c.Lagrange.Validate(); err != nil {
			return fmt.Errorf("validate: lagrange: %w", err)
		}
		if c.Lagrange.CostLimit != c.Planner.CostLimit {
			return fmt.Errorf("validate: controller cost limit %v does "+
				"not match planner cost limit %v", c.Lagrange.CostLimit,
				c.Planner.CostLimit)
		}
	case PID:
		if err := c.LagrangePID.Validate(); err != nil {
			return fmt.Errorf("validate: lagrange pid: %w", err)
		}
		if c.LagrangePID.CostLimit != c.Planner.CostLimit {
			return fmt.Errorf("validate: controller cost limit %v does "+
				"not match planner cost limit %v", c.LagrangePID.CostLimit,
				c.Planner.CostLimit)
		}
	default:
		return fmt.Errorf("validate: no such controller type %v",
			c.Controller)
	}
	if c.NumMembers < 1 {
		return fmt.Errorf("validate: need at least one ensemble member")
	}
	if c.Ridge < 0 {
		return fmt.Errorf("validate: ridge must be >= 0")
	}
	if c.MinReplayCapacity <= 0 ||
		c.MaxReplayCapacity < c.MinReplayCapacity {
		return fmt.Errorf("validate: invalid replay capacities [%v, %v]",
			c.MinReplayCapacity, c.MaxReplayCapacity)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("validate: batch size must be > 0")
	}
	if c.UpdateDynamicsEvery <= 0 {
		return fmt.Errorf("validate: update dynamics cycle must be > 0")
	}
	if c.UpdateMultiplierEvery <= 0 {
		return fmt.Errorf("validate: update multiplier cycle must be > 0")
	}
	return nil
}

// CreateAgent creates the CAPPETS agent that the config describes,
// implementing the agent.Config interface
func (c Config) CreateAgent(env environment.Environment,
	seed uint64) (agent.Agent, error) {
	return New(env, c, seed)
}

// controller builds the configured Lagrangian controller
func (c Config) controller() (lagrange.Lagrangian, error) {
	switch c.Controller {
	case DualAscent:
		return lagrange.New(c.Lagrange)
	case PID:
		return lagrange.NewPID(c.LagrangePID)
	default:
		return nil, fmt.Errorf("controller: no such controller type %v",
			c.Controller)
	}
}

// replay builds the configured experience replay buffer
func (c Config) replay(seed uint64) (expreplay.ExperienceReplayer, error) {
	return expreplay.Config{
		SampleMethod:      expreplay.Uniform,
		SampleSize:        c.BatchSize,
		MinReplayCapacity: c.MinReplayCapacity,
		MaxReplayCapacity: c.MaxReplayCapacity,
	}.Create(seed)
}
