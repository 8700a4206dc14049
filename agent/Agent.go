// Package agent defines the contract between learning algorithms and
// the function approximators they train
package agent

import (
	"fmt"

	"github.com/samuelfneumann/goppo/distribution"
)

// Approximator is a differentiable model mapping batches of
// observations to batches of outputs.
//
// Updates are split in two phases: ComputeGradients evaluates an
// Objective and returns its gradients without touching the parameters,
// and ApplyGradients commits them. This lets callers inspect the loss
// before the parameters change.
type Approximator interface {
	// Predict returns the outputs for a row-major batch of observations
	// with batch rows. The result is row-major with Outputs() columns.
	Predict(obs []float64, batch int) ([]float64, error)

	ComputeGradients(obj Objective) (Gradients, error)
	ApplyGradients(grads Gradients) error

	Inputs() int
	Outputs() int

	Export() (*ModelArtifact, error)
	Import(*ModelArtifact) error
}

// Gradients are the gradients of an Objective with respect to the
// parameters of the Approximator that computed them
type Gradients interface {
	// Loss returns the value of the objective at which the gradients
	// were taken
	Loss() float64
}

// Objective is a scalar loss that an Approximator can minimize. The
// concrete objectives are ClippedSurrogate and MeanSquaredError.
type Objective interface {
	BatchSize() int
	Inputs() []float64
	objective()
}

// ClippedSurrogate is the PPO policy loss
//
//	-mean(min(ratio·A, clip(A)))
//
// where ratio = exp(logπ(a|s) - logπ_old(a|s)) and
// clip(A) = (1+ε)A if A > 0 else (1-ε)A. The Approximator's outputs
// are interpreted as the parameters of a Distribution of kind
// Distribution.
type ClippedSurrogate struct {
	Distribution distribution.Kind
	Batch        int
	Observations []float64
	Actions      []float64
	OldLogProbs  []float64
	Advantages   []float64
	ClipRatio    float64

	// LogStd is the state-independent log standard deviation of a
	// Gaussian policy. It is optimized jointly with the approximator's
	// own parameters and must be nil for categorical policies.
	LogStd *Parameter
}

// BatchSize implements the Objective interface
func (c *ClippedSurrogate) BatchSize() int { return c.Batch }

// Inputs implements the Objective interface
func (c *ClippedSurrogate) Inputs() []float64 { return c.Observations }

func (*ClippedSurrogate) objective() {}

// Validate checks the lengths of all batches
func (c *ClippedSurrogate) Validate(features, actionDims int) error {
	switch {
	case c.Batch <= 0:
		return fmt.Errorf("validate: batch size must be positive")
	case len(c.Observations) != c.Batch*features:
		return fmt.Errorf("validate: illegal observations length"+
			"\n\twant(%d)\n\thave(%d)", c.Batch*features, len(c.Observations))
	case len(c.Actions) != c.Batch*actionDims:
		return fmt.Errorf("validate: illegal actions length"+
			"\n\twant(%d)\n\thave(%d)", c.Batch*actionDims, len(c.Actions))
	case len(c.OldLogProbs) != c.Batch:
		return fmt.Errorf("validate: illegal log-probabilities length"+
			"\n\twant(%d)\n\thave(%d)", c.Batch, len(c.OldLogProbs))
	case len(c.Advantages) != c.Batch:
		return fmt.Errorf("validate: illegal advantages length"+
			"\n\twant(%d)\n\thave(%d)", c.Batch, len(c.Advantages))
	case c.Distribution == distribution.GaussianKind && c.LogStd == nil:
		return fmt.Errorf("validate: gaussian surrogate needs a log std")
	case c.Distribution == distribution.CategoricalKind && c.LogStd != nil:
		return fmt.Errorf("validate: categorical surrogate cannot have a " +
			"log std")
	}
	return nil
}

// ClippedAdvantages returns (1+ε)A for positive A and (1-ε)A otherwise
func ClippedAdvantages(advantages []float64, clipRatio float64) []float64 {
	out := make([]float64, len(advantages))
	for i, a := range advantages {
		if a > 0 {
			out[i] = (1 + clipRatio) * a
		} else {
			out[i] = (1 - clipRatio) * a
		}
	}
	return out
}

// MeanSquaredError is the critic loss mean((prediction - target)²)
type MeanSquaredError struct {
	Batch        int
	Observations []float64
	Targets      []float64
}

// BatchSize implements the Objective interface
func (m *MeanSquaredError) BatchSize() int { return m.Batch }

// Inputs implements the Objective interface
func (m *MeanSquaredError) Inputs() []float64 { return m.Observations }

func (*MeanSquaredError) objective() {}

// Validate checks the lengths of all batches
func (m *MeanSquaredError) Validate(features, outputs int) error {
	switch {
	case m.Batch <= 0:
		return fmt.Errorf("validate: batch size must be positive")
	case len(m.Observations) != m.Batch*features:
		return fmt.Errorf("validate: illegal observations length"+
			"\n\twant(%d)\n\thave(%d)", m.Batch*features, len(m.Observations))
	case len(m.Targets) != m.Batch*outputs:
		return fmt.Errorf("validate: illegal targets length"+
			"\n\twant(%d)\n\thave(%d)", m.Batch*outputs, len(m.Targets))
	}
	return nil
}
