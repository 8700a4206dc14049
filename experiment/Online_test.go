package experiment

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/event"
	"github.com/samuelfneumann/goppo/experiment/checkpointer"
	"github.com/samuelfneumann/goppo/experiment/tracker"
	"github.com/samuelfneumann/goppo/experiment/trackers"
)

// fakeLearner emits two steps per iteration, finishing one episode
// with return 2 each iteration
type fakeLearner struct {
	events    *event.Lifecycle
	episodes  int
	exportErr error
}

func (f *fakeLearner) Learn(ctx context.Context, iterations int) error {
	for i := 1; i <= iterations; i++ {
		f.events.StepEnd.Emit(event.StepEndData{Step: 0, Reward: 1,
			Episodes: f.episodes})
		f.episodes++
		f.events.StepEnd.Emit(event.StepEndData{Step: 1, Reward: 1,
			Episodes: f.episodes, Done: true})
		f.events.TrainingEnd.Emit(event.TrainingData{Iteration: i})
	}
	return ctx.Err()
}

func (f *fakeLearner) Events() *event.Lifecycle { return f.events }

func (f *fakeLearner) ExportModels() (*agent.ModelsData, error) {
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	specs, data := agent.EncodeWeights([]*agent.Parameter{
		agent.NewParameter("w", 1),
	})
	artifact := &agent.ModelArtifact{WeightSpecs: specs, WeightData: data}
	return &agent.ModelsData{Actor: artifact, Critic: artifact}, nil
}

func TestOnline(t *testing.T) {
	dir := t.TempDir()
	learner := &fakeLearner{events: event.NewLifecycle()}
	ret := trackers.NewReturn(filepath.Join(dir, "return.bin"))
	c := checkpointer.NewNStep(2, learner, checkpointer.FilenameEnumerator(0,
		filepath.Join(dir, "models"), ".json"))

	o := NewOnline(learner, 4, []tracker.Tracker{ret},
		[]checkpointer.Checkpointer{c}, zerolog.Nop())
	require.NoError(t, o.Run(context.Background()))
	require.NoError(t, o.Save())

	assert.Equal(t, []float64{2, 2, 2, 2}, ret.Data())
	assert.FileExists(t, filepath.Join(dir, "models-0002.json"))
	assert.NoFileExists(t, filepath.Join(dir, "models-0003.json"))

	saved, err := tracker.LoadData(filepath.Join(dir, "return.bin"))
	require.NoError(t, err)
	assert.Equal(t, ret.Data(), saved)
}

func TestOnlineCheckpointError(t *testing.T) {
	exportErr := errors.New("export failed")
	learner := &fakeLearner{events: event.NewLifecycle(),
		exportErr: exportErr}
	c := checkpointer.NewNStep(1, learner, checkpointer.FileTimer(
		filepath.Join(t.TempDir(), "models"), ".json"))

	o := NewOnline(learner, 2, nil, []checkpointer.Checkpointer{c},
		zerolog.Nop())
	err := o.Run(context.Background())
	assert.Error(t, err)
}
