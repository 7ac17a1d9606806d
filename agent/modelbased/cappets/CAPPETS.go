// Package cappets implements the Conservative and Adaptive Penalty
// algorithm on top of probabilistic-ensemble trajectory sampling
// (CAP-PETS).
//
// The agent composes three independent pieces: an ensemble of learned
// dynamics models, a Lagrangian controller for the cost penalty, and a
// CEM planner that scores imagined trajectories conservatively. The
// agent drives each explicitly at the right point of its update cycle
// rather than inheriting their behaviour: the ensemble is retrained
// from replayed experience every UpdateDynamicsEvery environment
// steps, strictly between planning calls, and the multiplier is
// updated from the mean episodic cost once per multiplier cycle, so
// every planning call within a cycle sees the same penalty.
//
// References:
//
//	Conservative and Adaptive Penalty for Model-Based Safe
//	Reinforcement Learning. Yecheng Jason Ma, Andrew Shen, Osbert
//	Bastani, Dinesh Jayaraman. https://arxiv.org/abs/2112.07701
package cappets

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/gosafe/agent"
	"github.com/samuelfneumann/gosafe/dynamics"
	"github.com/samuelfneumann/gosafe/environment"
	"github.com/samuelfneumann/gosafe/expreplay"
	"github.com/samuelfneumann/gosafe/lagrange"
	"github.com/samuelfneumann/gosafe/planner"
	ts "github.com/samuelfneumann/gosafe/timestep"
)

func init() {
	agent.Register("CAPPETS", func(env environment.Environment,
		seed uint64) (agent.Agent, error) {
		return New(env, DefaultConfig(), seed)
	})
}

// CAPPETS is a model-based safe RL agent: it plans each action with a
// cost- and uncertainty-penalized CEM search through an ensemble of
// learned dynamics models
type CAPPETS struct {
	cfg Config

	ensemble   *dynamics.Ensemble
	lagrangian lagrange.Lagrangian
	planner    *planner.CAPPlanner
	buffer     expreplay.ExperienceReplayer

	step  ts.TimeStep
	eval  bool
	steps int

	episodeCost float64
	cycleCosts  []float64

	lastDiag planner.Diagnostics
}

// New creates a CAPPETS agent on the argument environment. The
// environment must have continuous actions; when it additionally
// implements environment.CostFuncer, imagined states are costed in
// closed form instead of through a learned cost head. Imagined
// rollouts end early when a predicted state reaches the environment's
// goal.
func New(env environment.Environment, c Config,
	seed uint64) (*CAPPETS, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	actionSpec := env.ActionSpec()
	if actionSpec.Cardinality != environment.Continuous {
		return nil, fmt.Errorf("new: CAPPETS requires continuous actions")
	}
	actionDim := actionSpec.Shape.Len()
	stateDim := env.ObservationSpec().Shape.Len()

	dynCfg := dynamics.Config{
		StateDim:    stateDim,
		ActionDim:   actionDim,
		NumMembers:  c.NumMembers,
		UseReward:   true,
		UseCost:     true,
		RewardHead:  true,
		UseTerminal: true,
		TerminalFunc: func(obs mat.Vector) bool {
			return env.AtGoal(obs)
		},
		Ridge: c.Ridge,
		Seed:  seed,
	}
	if cf, ok := env.(environment.CostFuncer); ok {
		dynCfg.CostFunc = cf.CostFunc()
	} else {
		dynCfg.CostHead = true
	}

	ensemble, err := dynamics.New(dynCfg)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	lagrangian, err := c.controller()
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	capPlanner, err := planner.New(c.Planner, ensemble, lagrangian, seed)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	buffer, err := c.replay(seed)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	return &CAPPETS{
		cfg:        c,
		ensemble:   ensemble,
		lagrangian: lagrangian,
		planner:    capPlanner,
		buffer:     buffer,
	}, nil
}

// SelectAction plans from the current state and returns the first
// action of the refined plan
func (c *CAPPETS) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	action, diag, err := c.planner.Plan(t.Observation)
	if err != nil {
		return nil, fmt.Errorf("selectAction: %w", err)
	}
	c.lastDiag = diag
	return action, nil
}

// ObserveFirst records the first timestep in an episode
func (c *CAPPETS) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		return fmt.Errorf("observeFirst: timestep %v is not the first of "+
			"an episode", t.Number)
	}
	c.planner.Reset()
	c.step = t
	c.episodeCost = 0
	return nil
}

// Observe records that an action lead to some timestep, storing the
// transition for dynamics training and accumulating the episode cost
func (c *CAPPETS) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	transition := ts.NewTransition(c.step, action, nextStep)
	if err := c.buffer.Add(transition); err != nil {
		return fmt.Errorf("observe: %w", err)
	}

	c.episodeCost += nextStep.Cost
	c.step = nextStep
	return nil
}

// Step retrains the dynamics ensemble on replayed experience once per
// dynamics cycle. Training happens strictly between planning calls.
func (c *CAPPETS) Step() error {
	if c.eval {
		return nil
	}

	c.steps++
	if c.steps%c.cfg.UpdateDynamicsEvery != 0 {
		return nil
	}
	if c.buffer.Capacity() < c.buffer.MinCapacity() {
		return nil
	}

	batch, err := c.buffer.Sample()
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}
	if err := c.ensemble.Train(batch); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	return nil
}

// EndEpisode folds the finished episode's cost into the running cycle
// statistics and updates the Lagrange multiplier once per multiplier
// cycle
func (c *CAPPETS) EndEpisode() error {
	c.cycleCosts = append(c.cycleCosts, c.episodeCost)
	c.episodeCost = 0

	if c.eval || len(c.cycleCosts) < c.cfg.UpdateMultiplierEvery {
		return nil
	}

	meanEpCost := stat.Mean(c.cycleCosts, nil)
	c.cycleCosts = c.cycleCosts[:0]

	if err := c.lagrangian.Update(meanEpCost); err != nil {
		return fmt.Errorf("endEpisode: %w", err)
	}
	return nil
}

// Eval sets the agent to evaluation mode: the dynamics model and
// multiplier are frozen
func (c *CAPPETS) Eval() { c.eval = true }

// Train sets the agent to training mode
func (c *CAPPETS) Train() { c.eval = false }

// IsEval returns whether the agent is in evaluation mode
func (c *CAPPETS) IsEval() bool { return c.eval }

// Multiplier returns the current cost penalty, implementing
// agent.Constrained
func (c *CAPPETS) Multiplier() float64 {
	return c.lagrangian.Multiplier()
}

// Diagnostics returns the planner diagnostics of the most recent
// planning call
func (c *CAPPETS) Diagnostics() planner.Diagnostics {
	return c.lastDiag
}
