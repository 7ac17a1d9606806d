// Package experiment implements functionality for running an experiment
package experiment

import (
	"fmt"

	"github.com/samuelfneumann/gosafe/agent"
	"github.com/samuelfneumann/gosafe/environment"
	"github.com/samuelfneumann/gosafe/experiment/tracker"
	ts "github.com/samuelfneumann/gosafe/timestep"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments will track environment TimeSteps, caching each TimeStep
// in RAM to be later saved to disk. The Save() function will then take
// all cached data and save it to disk. This is usually performed after
// an experiment has been run. The Run() method will run all episodes
// until the maximum timestep limit is reached, or some other ending
// condition is reached. The RunEpisode() function will run a single
// episode.
//
// In order to save data, Experiments use Trackers. Trackers determine
// which data generated during the experiment is saved. Experiments
// will send each TimeStep to Trackers using the Tracker's Track()
// method. The Tracker then determines which data from the TimeStep it
// caches and saves. New Trackers can be registered with an Experiment
// through the constructor or through an Experiment's Register()
// function.
type Experiment interface {
	Run() error
	RunEpisode() (bool, error) // Returns whether the step limit was hit

	// Tracks current timestep by sending it to Trackers
	track(ts.TimeStep)

	// Save all tracked data to disk
	Save() error

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment. Useful if you want to track data only after a
	// specified event.
	Register(t tracker.Tracker)
}

type Type string

const (
	OnlineExp Type = "OnlineExperiment"
)

// Config represents a configuration of an experiment
type Config struct {
	Type     Type `yaml:"type"`
	MaxSteps uint `yaml:"max_steps"`

	// ProgressBar determines whether the experiment displays a
	// terminal progress bar while running
	ProgressBar bool `yaml:"progress_bar"`
}

// CreateExp creates the experiment that the Config describes, running
// the argument agent on the argument environment
func (c Config) CreateExp(env environment.Environment, a agent.Agent,
	t []tracker.Tracker) (Experiment, error) {
	switch c.Type {
	case OnlineExp:
		return NewOnline(env, a, c.MaxSteps, c.ProgressBar, t...), nil
	}
	return nil, fmt.Errorf("createExp: no such experiment type %v", c.Type)
}
