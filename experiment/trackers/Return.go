// Package trackers implements Trackers of episodic statistics
package trackers

import (
	"github.com/samuelfneumann/goppo/event"
	"github.com/samuelfneumann/goppo/experiment/tracker"
)

// Return tracks and saves the episodic return in an experiment. When
// the training loop finishes a step, this Tracker will extract the
// reward and accumulate the return for each episode in the experiment.
//
// An episode ends whenever the training loop finishes a trajectory,
// which happens both on terminal steps and when a rollout cuts an
// episode short, since the environment is reset in either case.
//
// Note: An episode must finish for this Tracker to save its data.
// If the last episode in an experiment does not finish, that episode's
// return will not be saved.
type Return struct {
	episodes       int
	currentReturn  float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker which will save
// its data at the specified location filename
func NewReturn(filename string) *Return {
	return &Return{filename: filename}
}

// Track tracks the reward seen on a step. When a new episode starts,
// this method will automatically detect this and start accumulating
// the rewards for this new episode separately from the rewards seen on
// previous episodes.
func (r *Return) Track(d event.StepEndData) {
	r.currentReturn += d.Reward

	if d.Episodes > r.episodes {
		// Episode has ended, save the return and begin tracking the
		// return for a new episode
		r.episodeReturns = append(r.episodeReturns, r.currentReturn)
		r.currentReturn = 0.0
		r.episodes = d.Episodes
	}
}

// Data returns the returns of all finished episodes
func (r *Return) Data() []float64 {
	return r.episodeReturns
}

// Save saves the data tracked by the Return Tracker to disk.
func (r *Return) Save() error {
	return tracker.SaveData(r.filename, r.episodeReturns)
}
