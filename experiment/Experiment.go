// Package experiment implements functionality for running an experiment
package experiment

import (
	"context"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/event"
	"github.com/samuelfneumann/goppo/experiment/tracker"
)

// Learner is a training loop that an Experiment can run
type Learner interface {
	Learn(ctx context.Context, iterations int) error
	Events() *event.Lifecycle
	ExportModels() (*agent.ModelsData, error)
}

// Interface Experiment outlines structs that can run experiments.
// Experiments send each finished environment step to Trackers, which
// cache the data in RAM to be later saved to disk. The Save() function
// will then take all cached data and save it to disk. This is usually
// performed after an experiment has been run.
//
// New Trackers can be registered with an Experiment through the
// constructor or through an Experiment's Register() function.
type Experiment interface {
	Run(ctx context.Context) error

	// Save all tracked data to disk
	Save() error

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment. Useful if you want to track data only after a
	// specified event.
	Register(t tracker.Tracker)
}
