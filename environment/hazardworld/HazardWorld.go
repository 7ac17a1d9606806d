// Package hazardworld implements a 2D goal-navigation environment
// with circular hazard regions. A point-mass robot accelerates around
// a bounded arena, earning reward for progress toward a goal position
// and incurring unit cost on any step that ends inside a hazard. The
// cost is a closed-form function of the observation, which model-based
// safe agents exploit instead of learning a cost model.
package hazardworld

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/gosafe/environment"
	"github.com/samuelfneumann/gosafe/timestep"
	"github.com/samuelfneumann/gosafe/utils/floatutils"
)

// default physical constants
const (
	ArenaBound float64 = 2.0 // +/- Position bounds
	SpeedBound float64 = 2.0 // +/- Velocity bounds

	MaxAction float64 = 1.0
	MinAction float64 = -MaxAction

	HazardRadius float64 = 0.2
	GoalRadius   float64 = 0.3
	GoalBonus    float64 = 1.0

	dt      float64 = 0.1
	damping float64 = 0.95

	ActionDims int = 2
)

// Position is a point in the arena
type Position struct {
	X, Y float64
}

// HazardWorld implements a constrained 2D navigation environment.
//
// Observations are egocentric coordinates:
//
//	[vx, vy, goalX - x, goalY - y, haz1X - x, haz1Y - y, ...]
//
// so the hazard-proximity cost can be computed from the observation
// alone, a property the environment exposes through CostFunc.
//
// Actions are continuous 2-dimensional accelerations, clipped to
// [MinAction, MaxAction]. Velocities are damped and clipped to
// [-SpeedBound, SpeedBound]; positions are clipped to the arena.
//
// HazardWorld implements environment.Environment and
// environment.CostFuncer.
type HazardWorld struct {
	environment.Task
	goal     Position
	hazards  []Position
	position Position
	velocity Position

	cutoff    environment.Ender
	goalEnder environment.Ender
	lastStep  timestep.TimeStep
	discount  float64
}

// New creates a HazardWorld with the argument goal and hazard layout.
// The starter samples the robot's start position. The cutoff bounds
// episode length.
func New(goal Position, hazards []Position, starter environment.Starter,
	cutoff int, discount float64) (*HazardWorld, timestep.TimeStep, error) {
	if len(hazards) == 0 {
		return nil, timestep.TimeStep{}, fmt.Errorf("new: need at least " +
			"one hazard")
	}
	if cutoff <= 0 {
		return nil, timestep.TimeStep{}, fmt.Errorf("new: episode cutoff "+
			"must be > 0, got %v", cutoff)
	}

	task := newGoalTask(goal, hazards, starter)

	h := &HazardWorld{
		Task:      task,
		goal:      goal,
		hazards:   hazards,
		cutoff:    environment.NewStepLimit(cutoff),
		goalEnder: environment.NewFunctionEnder(task.AtGoalVec),
		discount:  discount,
	}

	firstStep := h.Reset()
	return h, firstStep, nil
}

// ObsDim returns the dimensionality of observations for a layout with
// the argument number of hazards
func ObsDim(numHazards int) int {
	return 4 + 2*numHazards
}

// Reset resets the environment and returns a starting state drawn
// from the Starter
func (h *HazardWorld) Reset() timestep.TimeStep {
	start := h.Start()
	h.position = Position{X: start.AtVec(0), Y: start.AtVec(1)}
	h.velocity = Position{}

	startStep := timestep.New(timestep.First, 0, 0, h.discount,
		h.observation(), 0)
	h.lastStep = startStep
	return startStep
}

// Step takes one environmental step given an acceleration action,
// returning the next TimeStep and whether the episode has ended
func (h *HazardWorld) Step(action mat.Vector) (timestep.TimeStep, bool) {
	obs := h.lastStep.Observation

	ax := floatutils.Clip(action.AtVec(0), MinAction, MaxAction)
	ay := floatutils.Clip(action.AtVec(1), MinAction, MaxAction)

	h.velocity.X = floatutils.ClipInterval(damping*h.velocity.X+dt*ax,
		r1.Interval{Min: -SpeedBound, Max: SpeedBound})
	h.velocity.Y = floatutils.ClipInterval(damping*h.velocity.Y+dt*ay,
		r1.Interval{Min: -SpeedBound, Max: SpeedBound})

	h.position.X = floatutils.ClipInterval(h.position.X+dt*h.velocity.X,
		r1.Interval{Min: -ArenaBound, Max: ArenaBound})
	h.position.Y = floatutils.ClipInterval(h.position.Y+dt*h.velocity.Y,
		r1.Interval{Min: -ArenaBound, Max: ArenaBound})

	nextObs := h.observation()
	reward := h.GetReward(obs, action, nextObs)
	cost := h.GetCost(obs, action, nextObs)

	step := timestep.New(timestep.Mid, reward, cost, h.discount, nextObs,
		h.lastStep.Number+1)

	done := h.goalEnder.End(&step) || h.cutoff.End(&step)
	if done {
		step.SetLast()
	}

	h.lastStep = step
	return step, done
}

// observation builds the egocentric observation for the current robot
// state
func (h *HazardWorld) observation() *mat.VecDense {
	obs := make([]float64, ObsDim(len(h.hazards)))
	obs[0] = h.velocity.X
	obs[1] = h.velocity.Y
	obs[2] = h.goal.X - h.position.X
	obs[3] = h.goal.Y - h.position.Y
	for i, hz := range h.hazards {
		obs[4+2*i] = hz.X - h.position.X
		obs[4+2*i+1] = hz.Y - h.position.Y
	}
	return mat.NewVecDense(len(obs), obs)
}

// CostFunc implements environment.CostFuncer. The returned function
// computes the binary hazard-proximity cost of any observation with
// this environment's layout; model-based agents use it to cost
// imagined states.
func (h *HazardWorld) CostFunc() func(obs mat.Vector) float64 {
	numHazards := len(h.hazards)
	return func(obs mat.Vector) float64 {
		return hazardCost(obs, numHazards)
	}
}

// hazardCost returns 1 if any hazard in the observation is within
// HazardRadius of the robot, else 0
func hazardCost(obs mat.Vector, numHazards int) float64 {
	for i := 0; i < numHazards; i++ {
		dx := obs.AtVec(4 + 2*i)
		dy := obs.AtVec(4 + 2*i + 1)
		if math.Hypot(dx, dy) <= HazardRadius {
			return 1.0
		}
	}
	return 0.0
}

// goalDist returns the distance to the goal encoded in an observation
func goalDist(obs mat.Vector) float64 {
	return math.Hypot(obs.AtVec(2), obs.AtVec(3))
}

// RewardSpec returns the environment's reward specification
func (h *HazardWorld) RewardSpec() environment.Spec {
	return specOf(environment.Reward, -math.Inf(1), math.Inf(1))
}

// CostSpec returns the environment's cost specification
func (h *HazardWorld) CostSpec() environment.Spec {
	return specOf(environment.Cost, 0, 1)
}

// DiscountSpec returns the environment's discount specification
func (h *HazardWorld) DiscountSpec() environment.Spec {
	return specOf(environment.Discount, 0, h.discount)
}

// ObservationSpec returns the environment's observation specification
func (h *HazardWorld) ObservationSpec() environment.Spec {
	dims := ObsDim(len(h.hazards))
	shape := mat.NewVecDense(dims, nil)

	low := make([]float64, dims)
	high := make([]float64, dims)
	for i := range low {
		low[i] = -2 * ArenaBound
		high[i] = 2 * ArenaBound
	}
	low[0], low[1] = -SpeedBound, -SpeedBound
	high[0], high[1] = SpeedBound, SpeedBound

	return environment.NewSpec(shape, environment.Observation,
		mat.NewVecDense(dims, low), mat.NewVecDense(dims, high),
		environment.Continuous)
}

// ActionSpec returns the environment's action specification
func (h *HazardWorld) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	low := mat.NewVecDense(ActionDims, []float64{MinAction, MinAction})
	high := mat.NewVecDense(ActionDims, []float64{MaxAction, MaxAction})
	return environment.NewSpec(shape, environment.Action, low, high,
		environment.Continuous)
}

// specOf builds a scalar Spec with the argument bounds
func specOf(t environment.SpecType, low, high float64) environment.Spec {
	shape := mat.NewVecDense(1, nil)
	return environment.NewSpec(shape, t, mat.NewVecDense(1, []float64{low}),
		mat.NewVecDense(1, []float64{high}), environment.Continuous)
}
