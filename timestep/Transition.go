package timestep

import "gonum.org/v1/gonum/mat"

// Transition packages together the SARSA-style tuple describing a
// single environmental transition, along with the cost incurred on
// the transition. Transitions are what dynamics models train on.
type Transition struct {
	State     mat.Vector
	Action    mat.Vector
	Reward    float64
	Cost      float64
	Discount  float64
	NextState mat.Vector
}

// NewTransition packages two sequential TimeSteps and the action taken
// between them into a Transition
func NewTransition(step TimeStep, action mat.Vector,
	nextStep TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		Cost:      nextStep.Cost,
		Discount:  nextStep.Discount,
		NextState: nextStep.Observation,
	}
}
