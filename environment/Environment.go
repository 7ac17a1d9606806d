// Package environment outlines the interfaces and structs needed to
// implement concrete constrained environments
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gosafe/timestep"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Task implements the reward and cost scheme for taking actions in
// some environment. In a constrained MDP every transition produces
// both a reward and a scalar cost; the cost is what safe agents keep
// below a configured limit.
type Task interface {
	Starter
	GetReward(state mat.Vector, a mat.Vector, nextState mat.Vector) float64
	GetCost(state mat.Vector, a mat.Vector, nextState mat.Vector) float64
	AtGoal(state mat.Matrix) bool
}

// Ender determines when episodes end
type Ender interface {
	// End determines whether or not the current episode should end,
	// modifying the timestep appropriately if so
	End(*timestep.TimeStep) bool
}

// Environment implements a simulated constrained environment, which
// includes a Task to complete
type Environment interface {
	Task
	Reset() timestep.TimeStep // Resets between episodes
	Step(action mat.Vector) (timestep.TimeStep, bool)
	RewardSpec() Spec
	CostSpec() Spec
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}

// CostFuncer describes environments whose per-state cost is a known,
// closed-form function of the observation. Model-based agents use the
// returned function to compute costs along imagined rollouts instead
// of learning a cost head.
type CostFuncer interface {
	CostFunc() func(obs mat.Vector) float64
}
