package tracker

import (
	"fmt"

	ts "github.com/samuelfneumann/gosafe/timestep"
)

// EpisodicCost tracks and saves the cumulative cost of each episode in
// an experiment. It is the safety counterpart of the Return Tracker:
// the saved series, compared against an agent's cost limit, shows
// whether and how quickly the agent's behaviour became feasible.
//
// Note: An episode must finish for this Tracker to save its data.
// If the last episode in an experiment does not finish, that episode's
// cost will not be saved.
type EpisodicCost struct {
	lastTimeStep int
	currentCost  float64
	episodeCosts []float64
	filename     string
}

// NewEpisodicCost creates and returns a new *EpisodicCost Tracker
func NewEpisodicCost(filename string) Tracker {
	var t EpisodicCost
	t.lastTimeStep = -1
	t.filename = filename
	return &t
}

// Track accumulates the cost seen on a timestep, caching the episode's
// cumulative cost when the episode ends.
//
// Track panics if it is called for non-sequential timesteps
func (e *EpisodicCost) Track(step ts.TimeStep) {
	if e.lastTimeStep+1 != step.Number {
		panic(fmt.Sprintf("track: last two timesteps tracked are not "+
			"sequential: timestep %v --> timestep %v were tracked",
			e.lastTimeStep, step.Number))
	}

	e.currentCost += step.Cost
	if !step.Last() {
		e.lastTimeStep = step.Number
	} else {
		e.episodeCosts = append(e.episodeCosts, e.currentCost)
		e.currentCost = 0.0
		e.lastTimeStep = -1
	}
}

// Save saves the data tracked by the EpisodicCost Tracker to disk
func (e *EpisodicCost) Save() error {
	return saveData(e.filename, e.episodeCosts)
}
