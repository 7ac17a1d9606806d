package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gosafe/timestep"
)

// FunctionEnder ends an episode whenever a function of the observation
// returns true. Environments use it for terminal conditions that are
// properties of the state itself, such as reaching a goal region.
type FunctionEnder struct {
	end func(mat.Vector) bool
}

// NewFunctionEnder returns a new FunctionEnder which ends episodes
// when f returns true on the current observation
func NewFunctionEnder(f func(mat.Vector) bool) Ender {
	return &FunctionEnder{end: f}
}

// End determines whether or not the current episode should be ended,
// returning a boolean to indicate episode termination. If the episode
// should be ended, End() marks the timestep as the last in the episode.
func (f *FunctionEnder) End(t *timestep.TimeStep) bool {
	if f.end(t.Observation) {
		t.SetLast()
		return true
	}
	return false
}
