package experiment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/samuelfneumann/goppo/event"
	"github.com/samuelfneumann/goppo/experiment/checkpointer"
	"github.com/samuelfneumann/goppo/experiment/tracker"
)

// Online is an Experiment that trains a Learner online for a fixed
// number of iterations, checkpointing its models along the way. No
// offline evaluation is performed.
type Online struct {
	learner       Learner
	iterations    int
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	logger        zerolog.Logger

	checkpointErr error
}

// NewOnline creates and returns a new online experiment which runs
// iterations training iterations of learner. The trackers determine
// which data is saved and the checkpointers when models are saved.
func NewOnline(learner Learner, iterations int, trackers []tracker.Tracker,
	checkpointers []checkpointer.Checkpointer, logger zerolog.Logger) *Online {
	o := &Online{
		learner:       learner,
		iterations:    iterations,
		checkpointers: checkpointers,
		logger:        logger.With().Str("component", "experiment").Logger(),
	}
	for _, t := range trackers {
		o.Register(t)
	}

	learner.Events().TrainingEnd.On(o.checkpoint)
	return o
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	tracker.Register(o.learner.Events(), t)
	o.trackers = append(o.trackers, t)
}

// Run runs the entire experiment. Checkpoint failures do not stop
// training but are returned once training ends.
func (o *Online) Run(ctx context.Context) error {
	o.logger.Info().Int("iterations", o.iterations).Msg("starting experiment")

	if err := o.learner.Learn(ctx, o.iterations); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if o.checkpointErr != nil {
		return fmt.Errorf("run: %w", o.checkpointErr)
	}

	o.logger.Info().Msg("finished experiment")
	return nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// checkpoint runs every checkpointer at the end of a training
// iteration, keeping the first error
func (o *Online) checkpoint(d event.TrainingData) {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(d); err != nil {
			o.logger.Error().Err(err).Int("iteration", d.Iteration).
				Msg("checkpoint failed")
			if o.checkpointErr == nil {
				o.checkpointErr = err
			}
		}
	}
}
