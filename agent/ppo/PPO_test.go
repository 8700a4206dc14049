package ppo

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/goppo/agent"
	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/goppo/event"
)

// fakeEnv returns reward 1 on every step and ends an episode on the
// steps in doneAt, counted from 1 over the lifetime of the environment
type fakeEnv struct {
	space  env.ActionSpace
	obsDim int
	doneAt map[int]bool

	steps  int
	resets int
}

func (f *fakeEnv) ActionSpace() env.ActionSpace { return f.space }

func (f *fakeEnv) ObservationSpace() env.ObservationSpace {
	return env.NewObservationSpace(f.obsDim)
}

func (f *fakeEnv) Reset(ctx context.Context) ([]float64, error) {
	f.resets++
	return make([]float64, f.obsDim), nil
}

func (f *fakeEnv) Step(ctx context.Context, a []float64) ([]float64,
	float64, bool, error) {
	if err := f.space.Validate(a); err != nil {
		return nil, 0, false, err
	}
	f.steps++
	obs := make([]float64, f.obsDim)
	obs[0] = float64(f.steps)
	return obs, 1, f.doneAt[f.steps], nil
}

type fakeGradients struct{ loss float64 }

func (f fakeGradients) Loss() float64 { return f.loss }

// fakeApproximator predicts the same output row for every input
type fakeApproximator struct {
	inputs  int
	out     []float64
	loss    float64
	applied int
	onApply func(*fakeApproximator)
}

func (f *fakeApproximator) Predict(obs []float64, batch int) ([]float64,
	error) {
	if len(obs) != batch*f.inputs {
		return nil, errors.New("predict: illegal batch")
	}
	pred := make([]float64, 0, batch*len(f.out))
	for i := 0; i < batch; i++ {
		pred = append(pred, f.out...)
	}
	return pred, nil
}

func (f *fakeApproximator) ComputeGradients(agent.Objective) (agent.Gradients,
	error) {
	return fakeGradients{f.loss}, nil
}

func (f *fakeApproximator) ApplyGradients(agent.Gradients) error {
	f.applied++
	if f.onApply != nil {
		f.onApply(f)
	}
	return nil
}

func (f *fakeApproximator) Inputs() int  { return f.inputs }
func (f *fakeApproximator) Outputs() int { return len(f.out) }

func (f *fakeApproximator) Export() (*agent.ModelArtifact, error) {
	data := append([]float64(nil), f.out...)
	specs, weights := agent.EncodeWeights([]*agent.Parameter{
		{Name: "out", Shape: []int{len(f.out)}, Data: data},
	})
	return &agent.ModelArtifact{
		ModelTopology: agent.Topology{Class: "fake", Inputs: f.inputs,
			Outputs: len(f.out)},
		WeightSpecs: specs,
		WeightData:  weights,
	}, nil
}

func (f *fakeApproximator) Import(m *agent.ModelArtifact) error {
	params, err := agent.DecodeWeights(m.WeightSpecs, m.WeightData)
	if err != nil {
		return err
	}
	copy(f.out, params[0].Data)
	return nil
}

func testConfig() Config {
	c := Default()
	c.NSteps = 5
	c.NEpochs = 4
	c.Gamma = 1
	c.Lambda = 1
	c.NetArch = NetArch{Pi: []int{8}, Vf: []int{8}}
	c.Seed = 7
	return c
}

func newFakeTrainer(t *testing.T, e *fakeEnv, c Config) (*PPO,
	*fakeApproximator, *fakeApproximator) {
	t.Helper()
	outputs := e.space.N
	if e.space.IsContinuous() {
		outputs = e.space.Dims()
	}
	actor := &fakeApproximator{inputs: e.obsDim, out: make([]float64, outputs)}
	critic := &fakeApproximator{inputs: e.obsDim, out: []float64{0}}

	p, err := New(e, c, WithApproximators(actor, critic),
		WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return p, actor, critic
}

func TestTrajectoryBoundary(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1,
		doneAt: map[int]bool{3: true}}
	p, _, _ := newFakeTrainer(t, e, testConfig())

	var ends []event.StepEndData
	p.Events().StepEnd.On(func(d event.StepEndData) { ends = append(ends, d) })

	require.NoError(t, p.CollectRollouts(context.Background()))

	// One terminal trajectory of length 3 and one truncated trajectory
	// of length 2, both finished with a bootstrap of 0
	assert.Equal(t, []float64{3, 2, 1, 2, 1}, p.buffer.Returns())
	assert.Equal(t, 5, p.buffer.Len())
	assert.Equal(t, 5, p.buffer.TrajectoryStart())

	// Initial reset plus one reset after each trajectory
	assert.Equal(t, 3, e.resets)
	assert.Equal(t, 2, p.NumEpisodes())
	assert.Equal(t, 5, p.NumTimesteps())

	require.Len(t, ends, 5)
	assert.True(t, ends[2].Done)
	assert.Equal(t, 1, ends[2].Episodes)
	assert.Equal(t, 2, ends[4].Episodes)
	assert.Equal(t, 5.0, ends[4].SumReturn)
	for i, d := range ends {
		assert.Equal(t, i, d.Step)
		assert.Equal(t, 5, d.NSteps)
	}
}

func TestKLEarlyStop(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	c := testConfig()
	c.NSteps = 20
	p, actor, critic := newFakeTrainer(t, e, c)

	// After the first update the policy almost always picks action 0,
	// so every sampled action 1 has a large drop in log-probability
	actor.onApply = func(f *fakeApproximator) {
		f.out[0], f.out[1] = 10, -10
	}

	require.NoError(t, p.CollectRollouts(context.Background()))
	stats, err := p.Train(context.Background())
	require.NoError(t, err)

	assert.True(t, stats.EarlyStopped)
	assert.Equal(t, 1, stats.PolicyEpochs)
	assert.Greater(t, stats.KL, KLMargin*c.TargetKL)
	assert.Equal(t, 1, actor.applied)

	// The value phase never stops early
	assert.Equal(t, c.NEpochs, stats.ValueEpochs)
	assert.Equal(t, c.NEpochs, critic.applied)
}

func TestNoEarlyStopWithoutDrift(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	c := testConfig()
	p, actor, _ := newFakeTrainer(t, e, c)

	require.NoError(t, p.CollectRollouts(context.Background()))
	stats, err := p.Train(context.Background())
	require.NoError(t, err)

	assert.False(t, stats.EarlyStopped)
	assert.Equal(t, c.NEpochs, stats.PolicyEpochs)
	assert.Equal(t, c.NEpochs, actor.applied)
	assert.InDelta(t, 0, stats.KL, 1e-12)
}

func TestDivergedLoss(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	p, actor, _ := newFakeTrainer(t, e, testConfig())
	actor.loss = math.NaN()

	err := p.Learn(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrDiverged))
	assert.Equal(t, 0, actor.applied)
}

func TestDivergedWeights(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	p, actor, _ := newFakeTrainer(t, e, testConfig())
	require.NoError(t, p.Learn(context.Background(), 1))

	// Weights that became non-finite with a finite loss make the policy
	// output NaN on the next rollout
	actor.out[0] = math.NaN()

	err := p.Learn(context.Background(), 1)
	assert.ErrorIs(t, err, ErrDiverged)
	assert.NotErrorIs(t, err, env.ErrActionMismatch)
	assert.Equal(t, testConfig().NSteps, e.steps)

	_, err = p.PredictAction([]float64{0})
	assert.ErrorIs(t, err, ErrDiverged)
	_, err = p.PredictMode([]float64{0})
	assert.ErrorIs(t, err, ErrDiverged)
}

func TestTrainEmptyBuffer(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	p, _, _ := newFakeTrainer(t, e, testConfig())

	_, err := p.Train(context.Background())
	assert.Error(t, err)
}

func TestLearnEventOrder(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	c := testConfig()
	c.NSteps = 2
	p, _, _ := newFakeTrainer(t, e, c)

	var got []string
	var iterations []int
	ev := p.Events()
	ev.RolloutStart.On(func(d event.RolloutData) {
		got = append(got, event.RolloutStartName)
		iterations = append(iterations, d.Iteration)
	})
	ev.StepStart.On(func(event.StepStartData) {
		got = append(got, event.StepStartName)
	})
	ev.StepEnd.On(func(event.StepEndData) {
		got = append(got, event.StepEndName)
	})
	ev.RolloutEnd.On(func(d event.RolloutData) {
		got = append(got, event.RolloutEndName)
		iterations = append(iterations, d.Iteration)
	})
	ev.TrainingStart.On(func(d event.TrainingData) {
		got = append(got, event.TrainingStartName)
		iterations = append(iterations, d.Iteration)
	})
	ev.TrainingEnd.On(func(d event.TrainingData) {
		got = append(got, event.TrainingEndName)
		iterations = append(iterations, d.Iteration)
	})

	require.NoError(t, p.Learn(context.Background(), 1))
	assert.Equal(t, []string{
		event.RolloutStartName,
		event.StepStartName, event.StepEndName,
		event.StepStartName, event.StepEndName,
		event.RolloutEndName,
		event.TrainingStartName,
		event.TrainingEndName,
	}, got)
	assert.Equal(t, []int{0, 0, 1, 1}, iterations)
	assert.Equal(t, 1, p.Iteration())
}

func TestMaxTimesteps(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	c := testConfig()
	c.MaxTimesteps = 3
	p, _, _ := newFakeTrainer(t, e, c)

	require.NoError(t, p.Learn(context.Background(), 10))
	assert.Equal(t, 3, p.NumTimesteps())
	assert.Equal(t, 1, p.Iteration())
	assert.Equal(t, []float64{3, 2, 1}, p.buffer.Returns())
}

func TestLearnCancelled(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	p, _, _ := newFakeTrainer(t, e, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	steps := 0
	p.Events().StepEnd.On(func(event.StepEndData) {
		steps++
		if steps == 2 {
			cancel()
		}
	})

	err := p.Learn(ctx, 1)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 2, p.NumTimesteps())
}

func TestUnknownActionSpace(t *testing.T) {
	e := &fakeEnv{space: env.ActionSpace{Cardinality: "MultiBinary"},
		obsDim: 1}
	_, err := New(e, testConfig(), WithLogger(zerolog.Nop()))
	assert.True(t, errors.Is(err, ErrUnknownActionSpace))
}

func TestNewRejectsMismatchedApproximators(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(3), obsDim: 2}
	actor := &fakeApproximator{inputs: 2, out: make([]float64, 2)}
	critic := &fakeApproximator{inputs: 2, out: []float64{0}}

	_, err := New(e, testConfig(), WithApproximators(actor, critic),
		WithLogger(zerolog.Nop()))
	assert.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	c := testConfig()
	c.Activation = "softsign"

	_, err := New(e, c)
	assert.Error(t, err)
}

func TestPredictAction(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	p, actor, _ := newFakeTrainer(t, e, testConfig())
	actor.out[0], actor.out[1] = -100, 100

	for i := 0; i < 10; i++ {
		a, err := p.PredictAction([]float64{0})
		require.NoError(t, err)
		assert.Equal(t, []float64{1}, a)
	}

	_, err := p.PredictAction([]float64{0, 1})
	assert.Error(t, err)
}

func TestPredictMode(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(3), obsDim: 1}
	p, actor, _ := newFakeTrainer(t, e, testConfig())
	actor.out[0], actor.out[1], actor.out[2] = 0.1, 0.3, 0.2

	a, err := p.PredictMode([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, a)

	c := &fakeEnv{space: env.NewContinuous([]float64{-1, -1},
		[]float64{1, 1}), obsDim: 1}
	p, actor, _ = newFakeTrainer(t, c, testConfig())
	actor.out[0], actor.out[1] = 0.25, -0.5

	a, err = p.PredictMode([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -0.5}, a)

	_, err = p.PredictMode([]float64{0, 1})
	assert.Error(t, err)
}

func TestRolloutCounters(t *testing.T) {
	e := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1,
		doneAt: map[int]bool{3: true}}
	p, _, _ := newFakeTrainer(t, e, testConfig())

	var ends []event.StepEndData
	p.Events().StepEnd.On(func(d event.StepEndData) { ends = append(ends, d) })

	require.NoError(t, p.CollectRollouts(context.Background()))
	require.NoError(t, p.CollectRollouts(context.Background()))
	require.Len(t, ends, 10)

	first, second := ends[4], ends[9]
	assert.Equal(t, 2, first.RolloutEpisodes)
	assert.Equal(t, 5.0, first.RolloutReturn)

	// Totals keep counting while the rollout counters start over
	assert.Equal(t, 0, ends[5].RolloutEpisodes)
	assert.Equal(t, 1.0, ends[5].RolloutReturn)
	assert.Equal(t, 2, ends[5].Episodes)
	assert.Equal(t, 6.0, ends[5].SumReturn)

	assert.Equal(t, 1, second.RolloutEpisodes)
	assert.Equal(t, 5.0, second.RolloutReturn)
	assert.Equal(t, 3, second.Episodes)
	assert.Equal(t, 10.0, second.SumReturn)
}

func TestModelsRoundTrip(t *testing.T) {
	e := &fakeEnv{space: env.NewContinuous([]float64{-1, -1},
		[]float64{1, 1}), obsDim: 3}
	c := testConfig()

	src, err := New(e, c, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	src.logStd.Data[0], src.logStd.Data[1] = -0.25, 0.5

	models, err := src.ExportModels()
	require.NoError(t, err)
	last := models.Actor.WeightSpecs[len(models.Actor.WeightSpecs)-1]
	assert.Equal(t, LogStdName, last.Name)

	dst, err := New(e, c, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.NoError(t, dst.ImportModels(models))

	obs := []float64{0.1, -0.3, 0.7, 1.0, 0.0, -1.0}
	for _, pair := range [][2]agent.Approximator{
		{src.actor, dst.actor},
		{src.critic, dst.critic},
	} {
		want, err := pair[0].Predict(obs, 2)
		require.NoError(t, err)
		got, err := pair[1].Predict(obs, 2)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, src.LogStd(), dst.LogStd())
}

func TestImportModelsRejectsMismatch(t *testing.T) {
	continuous := &fakeEnv{space: env.NewContinuous([]float64{-1},
		[]float64{1}), obsDim: 2}
	discrete := &fakeEnv{space: env.NewDiscrete(2), obsDim: 1}
	c := testConfig()

	src, err := New(continuous, c, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	models, err := src.ExportModels()
	require.NoError(t, err)

	dst, err := New(discrete, c, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	before, err := dst.ExportModels()
	require.NoError(t, err)

	assert.Error(t, dst.ImportModels(models))
	assert.Error(t, dst.ImportModels(nil))

	// A valid actor with an incompatible critic leaves the actor as it was
	other, err := New(discrete, c, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	mixed, err := other.ExportModels()
	require.NoError(t, err)
	mixed.Critic = models.Critic
	assert.Error(t, dst.ImportModels(mixed))

	after, err := dst.ExportModels()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLearnCartpole(t *testing.T) {
	c := Default()
	c.NSteps = 32
	c.NEpochs = 2
	c.NetArch = NetArch{Pi: []int{16}, Vf: []int{16}}
	c.Seed = 1

	p, err := New(cartpole.New(1), c, WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	var stats []event.Stats
	p.Events().TrainingEnd.On(func(d event.TrainingData) {
		stats = append(stats, d.Stats)
	})

	require.NoError(t, p.Learn(context.Background(), 2))
	assert.Equal(t, 64, p.NumTimesteps())
	require.Len(t, stats, 2)
	for _, s := range stats {
		assert.GreaterOrEqual(t, s.PolicyEpochs, 1)
		assert.Equal(t, 2, s.ValueEpochs)
	}
}
