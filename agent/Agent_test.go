package agent

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/goppo/distribution"
)

func TestClippedAdvantages(t *testing.T) {
	got := ClippedAdvantages([]float64{2, -2, 0}, 0.2)
	assert.InDelta(t, 2.4, got[0], 1e-12)
	assert.InDelta(t, -1.6, got[1], 1e-12)
	assert.Equal(t, 0.0, got[2])
}

func TestSurrogateAtUnitRatio(t *testing.T) {
	logp := []float64{-0.3, -1.2, -2.0, -0.1}
	adv := []float64{1.5, -0.7, 0.0, -3}

	// ratio == 1 so min(ratio·A, clip(A)) == A for either sign of A
	for i, a := range adv {
		loss := SurrogateLoss(logp[i:i+1], logp[i:i+1], []float64{a}, 0.2)
		assert.InDelta(t, -a, loss, 1e-12)
	}
}

func TestSurrogateClipsLargeRatios(t *testing.T) {
	old := []float64{0}
	// ratio = e > 1+ε with a positive advantage is clipped to (1+ε)A
	loss := SurrogateLoss([]float64{1}, old, []float64{1}, 0.2)
	assert.InDelta(t, -1.2, loss, 1e-12)

	// ratio < 1-ε with a negative advantage is clipped to (1-ε)A
	loss = SurrogateLoss([]float64{-1}, old, []float64{-1}, 0.2)
	assert.InDelta(t, 0.8, loss, 1e-12)

	// ratio > 1+ε with a negative advantage is not clipped
	loss = SurrogateLoss([]float64{1}, old, []float64{-1}, 0.2)
	assert.InDelta(t, math.E, loss, 1e-12)
}

func TestApproxKL(t *testing.T) {
	assert.InDelta(t, 0.25, ApproxKL([]float64{0, -1}, []float64{-0.5, -1}),
		1e-12)
}

func TestClippedSurrogateValidate(t *testing.T) {
	valid := ClippedSurrogate{
		Distribution: distribution.CategoricalKind,
		Batch:        2,
		Observations: make([]float64, 6),
		Actions:      []float64{0, 1},
		OldLogProbs:  make([]float64, 2),
		Advantages:   make([]float64, 2),
		ClipRatio:    0.2,
	}
	require.NoError(t, valid.Validate(3, 1))

	missingStd := valid
	missingStd.Distribution = distribution.GaussianKind
	assert.Error(t, missingStd.Validate(3, 1))

	short := valid
	short.Advantages = make([]float64, 1)
	assert.Error(t, short.Validate(3, 1))
}

func TestWeightsRoundTrip(t *testing.T) {
	a := NewParameter("w", 2, 3)
	for i := range a.Data {
		a.Data[i] = math.Pi * float64(i-2)
	}
	b := NewParameter("b", 3)
	b.Data[1] = math.SmallestNonzeroFloat64

	specs, data := EncodeWeights([]*Parameter{a, b})
	require.Len(t, specs, 2)
	assert.Equal(t, WeightSpec{Name: "w", Shape: []int{2, 3}, DType: Float64},
		specs[0])

	params, err := DecodeWeights(specs, data)
	require.NoError(t, err)
	assert.Equal(t, a.Data, params[0].Data)
	assert.Equal(t, b.Data, params[1].Data)
	assert.Equal(t, "b", params[1].Name)

	_, err = DecodeWeights(specs[:1], data)
	assert.Error(t, err)
}

func TestModelsSaveLoad(t *testing.T) {
	specs, data := EncodeWeights([]*Parameter{NewParameter("w", 1)})
	art := &ModelArtifact{
		ModelTopology: Topology{Class: "MLP", Inputs: 1, Outputs: 1,
			Hidden: []int{4}, Activation: "relu"},
		WeightSpecs: specs,
		WeightData:  data,
	}
	models := &ModelsData{Actor: art, Critic: art}

	filename := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, models.Save(filename))

	loaded, err := LoadModels(filename)
	require.NoError(t, err)
	assert.Equal(t, models, loaded)
	assert.True(t, loaded.Actor.ModelTopology.Equal(art.ModelTopology))
}
