package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/distribution"
)

func newTestMLP(t *testing.T, features, outputs int, hidden []int) *MLP {
	t.Helper()
	net, err := NewMLP(features, outputs, hidden, TanH(), G.GlorotU(1.0),
		G.NewVanillaSolver(G.WithLearnRate(0.05)))
	require.NoError(t, err)
	return net
}

func TestNewMLPErrors(t *testing.T) {
	solver := G.NewVanillaSolver()
	init := G.GlorotU(1.0)

	_, err := NewMLP(0, 1, nil, ReLU(), init, solver)
	assert.Error(t, err)
	_, err = NewMLP(1, 0, nil, ReLU(), init, solver)
	assert.Error(t, err)
	_, err = NewMLP(1, 1, []int{4, 0}, ReLU(), init, solver)
	assert.Error(t, err)
	_, err = NewMLP(1, 1, nil, nil, init, solver)
	assert.Error(t, err)
}

func TestNewActivation(t *testing.T) {
	for _, name := range []string{"relu", "tanh", "sigmoid", "identity"} {
		a, err := NewActivation(name)
		require.NoError(t, err)
		assert.Equal(t, name, a.String())
	}

	a, err := NewActivation("Linear")
	require.NoError(t, err)
	assert.True(t, a.IsIdentity())

	_, err = NewActivation("softsign")
	assert.Error(t, err)
}

func TestPredictBatchMatchesSingle(t *testing.T) {
	net := newTestMLP(t, 3, 2, []int{8, 8})
	obs := []float64{
		0.1, -0.2, 0.3,
		1.0, 0.5, -0.5,
		-1.0, 2.0, 0.0,
	}

	batched, err := net.Predict(obs, 3)
	require.NoError(t, err)
	require.Len(t, batched, 6)

	for i := 0; i < 3; i++ {
		single, err := net.Predict(obs[i*3:(i+1)*3], 1)
		require.NoError(t, err)
		assert.InDeltaSlice(t, batched[i*2:(i+1)*2], single, 1e-12)
	}

	_, err = net.Predict(obs[:2], 1)
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestMLP(t, 4, 2, []int{16})
	dst := newTestMLP(t, 4, 2, []int{16})

	obs := []float64{0.5, -0.1, 0.2, 0.9}
	want, err := src.Predict(obs, 1)
	require.NoError(t, err)

	artifact, err := src.Export()
	require.NoError(t, err)
	assert.Equal(t, Class, artifact.ModelTopology.Class)
	assert.Len(t, artifact.WeightSpecs, 4)
	for _, s := range artifact.WeightSpecs {
		assert.Equal(t, agent.Float64, s.DType)
	}

	require.NoError(t, dst.Import(artifact))
	got, err := dst.Predict(obs, 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestImportRejectsMismatch(t *testing.T) {
	src := newTestMLP(t, 4, 2, []int{16})
	dst := newTestMLP(t, 4, 2, []int{8})

	obs := []float64{0.5, -0.1, 0.2, 0.9}
	before, err := dst.Predict(obs, 1)
	require.NoError(t, err)

	artifact, err := src.Export()
	require.NoError(t, err)
	assert.Error(t, dst.Import(artifact))
	assert.Error(t, dst.Import(nil))

	// Corrupt the weight data of a compatible artifact
	same := newTestMLP(t, 4, 2, []int{8})
	artifact, err = same.Export()
	require.NoError(t, err)
	artifact.WeightData = artifact.WeightData[:len(artifact.WeightData)/2]
	assert.Error(t, dst.Import(artifact))

	after, err := dst.Predict(obs, 1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMeanSquaredErrorDecreases(t *testing.T) {
	net := newTestMLP(t, 2, 1, nil)
	obj := &agent.MeanSquaredError{
		Batch:        4,
		Observations: []float64{0, 0, 0, 1, 1, 0, 1, 1},
		Targets:      []float64{0, 1, 1, 2},
	}

	var first, last float64
	for i := 0; i < 50; i++ {
		grads, err := net.ComputeGradients(obj)
		require.NoError(t, err)
		if i == 0 {
			first = grads.Loss()
		}
		last = grads.Loss()
		require.NoError(t, net.ApplyGradients(grads))
	}
	assert.Less(t, last, first)
}

func TestComputeGradientsDoesNotUpdate(t *testing.T) {
	net := newTestMLP(t, 2, 1, []int{4})
	obs := []float64{0.3, -0.7}
	before, err := net.Predict(obs, 1)
	require.NoError(t, err)

	_, err = net.ComputeGradients(&agent.MeanSquaredError{
		Batch:        1,
		Observations: obs,
		Targets:      []float64{10},
	})
	require.NoError(t, err)

	after, err := net.Predict(obs, 1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCategoricalSurrogateMatchesDirect(t *testing.T) {
	net := newTestMLP(t, 2, 3, []int{8})
	obs := []float64{0.1, 0.2, -0.4, 0.8, 1.0, -1.0}
	actions := []float64{0, 2, 1}
	advantages := []float64{1.0, -0.5, 0.25}
	oldLogProbs := []float64{-1.2, -0.9, -1.5}

	logits, err := net.Predict(obs, 3)
	require.NoError(t, err)
	dist := distribution.NewCategorical(3, 1)
	newLogProbs := dist.LogProbs(logits, actions, 3)
	want := agent.SurrogateLoss(newLogProbs, oldLogProbs, advantages, 0.2)

	grads, err := net.ComputeGradients(&agent.ClippedSurrogate{
		Distribution: distribution.CategoricalKind,
		Batch:        3,
		Observations: obs,
		Actions:      actions,
		OldLogProbs:  oldLogProbs,
		Advantages:   advantages,
		ClipRatio:    0.2,
	})
	require.NoError(t, err)
	assert.InDelta(t, want, grads.Loss(), 1e-9)
}

func TestGaussianSurrogateMatchesDirect(t *testing.T) {
	net := newTestMLP(t, 2, 2, []int{8})
	logStd := agent.NewParameter("logStd", 2)
	logStd.Data[0], logStd.Data[1] = -0.5, 0.3

	obs := []float64{0.1, 0.2, -0.4, 0.8}
	actions := []float64{0.5, -0.5, 1.0, 0.0}
	advantages := []float64{1.0, -0.5}
	oldLogProbs := []float64{-2.0, -2.5}

	means, err := net.Predict(obs, 2)
	require.NoError(t, err)
	dist := distribution.NewGaussian(logStd.Data, 1)
	newLogProbs := dist.LogProbs(means, actions, 2)
	want := agent.SurrogateLoss(newLogProbs, oldLogProbs, advantages, 0.2)

	obj := &agent.ClippedSurrogate{
		Distribution: distribution.GaussianKind,
		Batch:        2,
		Observations: obs,
		Actions:      actions,
		OldLogProbs:  oldLogProbs,
		Advantages:   advantages,
		ClipRatio:    0.2,
		LogStd:       logStd,
	}
	grads, err := net.ComputeGradients(obj)
	require.NoError(t, err)
	assert.InDelta(t, want, grads.Loss(), 1e-9)

	// The log standard deviation is optimized with the network
	before := append([]float64(nil), logStd.Data...)
	require.NoError(t, net.ApplyGradients(grads))
	assert.NotEqual(t, before, logStd.Data)
}

func TestSurrogateRejectsBadActions(t *testing.T) {
	net := newTestMLP(t, 1, 2, nil)
	_, err := net.ComputeGradients(&agent.ClippedSurrogate{
		Distribution: distribution.CategoricalKind,
		Batch:        1,
		Observations: []float64{0},
		Actions:      []float64{2},
		OldLogProbs:  []float64{0},
		Advantages:   []float64{1},
		ClipRatio:    0.2,
	})
	assert.Error(t, err)
}

func TestApplyForeignGradients(t *testing.T) {
	a := newTestMLP(t, 1, 1, nil)
	b := newTestMLP(t, 1, 1, nil)

	grads, err := a.ComputeGradients(&agent.MeanSquaredError{
		Batch:        1,
		Observations: []float64{1},
		Targets:      []float64{1},
	})
	require.NoError(t, err)
	assert.Error(t, b.ApplyGradients(grads))
}
