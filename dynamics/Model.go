// Package dynamics implements learned forward-prediction models of
// environment dynamics. An ensemble of independently trained members
// predicts next-state deltas (and optionally rewards and costs) for
// state-action pairs; disagreement across members is the epistemic
// uncertainty signal that conservative planners penalize.
package dynamics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gosafe/timestep"
)

// Prediction holds one member's forward prediction for a single
// state-action pair. Delta is the predicted change in state; Var is
// the member's per-dimension predictive variance of the delta. Reward
// and Cost are only meaningful when the corresponding heads are
// enabled on the model.
type Prediction struct {
	Delta  *mat.VecDense
	Var    *mat.VecDense
	Reward float64
	Cost   float64

	// Terminal reports that the predicted next state ends the episode;
	// only meaningful when the model carries a terminal function
	Terminal bool
}

// NextState returns the predicted next state, i.e. state + Delta. The
// argument state is not mutated.
func (p Prediction) NextState(state mat.Vector) *mat.VecDense {
	next := mat.NewVecDense(state.Len(), nil)
	next.AddVec(state, p.Delta)
	return next
}

// Member is a single forward-prediction model. Predict is a pure
// function of the member's current parameters: it never mutates its
// inputs or the member. Train mutates parameters and must never
// overlap a Predict call; callers enforce this by training only
// between planning calls.
type Member interface {
	Predict(state, action mat.Vector) (Prediction, error)
	Train(batch []timestep.Transition) error
}
