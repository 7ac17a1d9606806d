package hazardworld

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gosafe/environment"
)

// goalTask implements the goal-navigation Task for HazardWorld.
// Reward is the progress made toward the goal on the transition, plus
// a bonus for reaching it. Cost is the binary hazard-proximity cost of
// the state the transition ends in.
type goalTask struct {
	environment.Starter
	goal       Position
	numHazards int
}

func newGoalTask(goal Position, hazards []Position,
	starter environment.Starter) *goalTask {
	return &goalTask{
		Starter:    starter,
		goal:       goal,
		numHazards: len(hazards),
	}
}

// GetReward returns the progress toward the goal made by the
// transition: the decrease in goal distance, plus GoalBonus when the
// transition reaches the goal
func (g *goalTask) GetReward(state, _, nextState mat.Vector) float64 {
	reward := goalDist(state) - goalDist(nextState)
	if goalDist(nextState) <= GoalRadius {
		reward += GoalBonus
	}
	return reward
}

// GetCost returns the hazard-proximity cost of the state the
// transition ends in
func (g *goalTask) GetCost(_, _, nextState mat.Vector) float64 {
	return hazardCost(nextState, g.numHazards)
}

// AtGoal returns whether the argument observation is within
// GoalRadius of the goal
func (g *goalTask) AtGoal(state mat.Matrix) bool {
	obs, ok := state.(mat.Vector)
	if !ok {
		r, c := state.Dims()
		if c != 1 {
			return false
		}
		vec := mat.NewVecDense(r, nil)
		for i := 0; i < r; i++ {
			vec.SetVec(i, state.At(i, 0))
		}
		obs = vec
	}
	return goalDist(obs) <= GoalRadius
}

// AtGoalVec is AtGoal specialized to vector observations, in the form
// enders consume
func (g *goalTask) AtGoalVec(obs mat.Vector) bool {
	return goalDist(obs) <= GoalRadius
}
