package experiment

import (
	"fmt"
	"time"

	"github.com/samuelfneumann/progressbar"

	"github.com/samuelfneumann/gosafe/agent"
	env "github.com/samuelfneumann/gosafe/environment"
	"github.com/samuelfneumann/gosafe/experiment/tracker"
	ts "github.com/samuelfneumann/gosafe/timestep"
)

const pbarWidth int = 50

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed.
type Online struct {
	env.Environment
	agent.Agent
	maxSteps     uint
	currentSteps uint
	trackers     []tracker.Tracker
	pbar         *progressbar.ProgressBar
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for, and the t parameter is a
// slice of tracker.Tracker which determine what data is saved. When
// showProgress is true, a progress bar is displayed while the
// experiment runs.
func NewOnline(e env.Environment, a agent.Agent, steps uint,
	showProgress bool, t ...tracker.Tracker) *Online {
	var pbar *progressbar.ProgressBar
	if showProgress {
		pbar = progressbar.New(pbarWidth, int(steps), time.Second, false)
	}

	return &Online{e, a, steps, 0, t, pbar}
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment. The second
// return value is non-nil if the agent failed to act or learn.
func (o *Online) RunEpisode() (bool, error) {
	step := o.Environment.Reset()
	if err := o.Agent.ObserveFirst(step); err != nil {
		return false, fmt.Errorf("runEpisode: %w", err)
	}
	o.track(step)

	// Run the next timestep
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++
		if o.pbar != nil {
			o.pbar.Increment()
		}

		// Select action, step in environment
		action, err := o.Agent.SelectAction(step)
		if err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}
		step, _ = o.Environment.Step(action)

		// Cache the environment step in each Tracker
		o.track(step)

		// Observe the timestep and step the agent
		if err := o.Agent.Observe(action, step); err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}
		if err := o.Agent.Step(); err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}
	}

	if step.Last() {
		if err := o.Agent.EndEpisode(); err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}
	}

	// Return whether or not the max timestep limit has been reached
	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps. Agents that hold
// external resources are closed once the experiment finishes.
func (o *Online) Run() error {
	if o.pbar != nil {
		o.pbar.Display()
		defer o.pbar.Close()
	}

	ended := false
	for !ended {
		var err error
		ended, err = o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}

	if closer, ok := o.Agent.(agent.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	return nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

// track tracks the current timestep by caching its data in each Tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}
