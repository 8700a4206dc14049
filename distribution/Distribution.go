// Package distribution implements the action distributions of
// stochastic policies. A Distribution turns the output of a policy
// network (its parameters) into sampled actions and log-probabilities.
package distribution

import (
	"errors"
	"fmt"

	env "github.com/samuelfneumann/goppo/environment"
)

// ErrUnknownActionSpace is returned when no Distribution exists for an
// action space
var ErrUnknownActionSpace = errors.New("unknown action space")

// Kind identifies a Distribution variant
type Kind int

const (
	CategoricalKind Kind = iota
	GaussianKind
)

// String implements the fmt.Stringer interface
func (k Kind) String() string {
	switch k {
	case CategoricalKind:
		return "Categorical"
	case GaussianKind:
		return "Gaussian"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Distribution is a parameterized action distribution. Actions are
// []float64 of length ActionSize(); parameters are []float64 of length
// ParamSize(), which is also the output width the policy network must
// have.
type Distribution interface {
	Kind() Kind
	ParamSize() int
	ActionSize() int

	// Sample draws one action given the distribution parameters
	Sample(params []float64) []float64

	// Mode returns the most likely action given the parameters
	Mode(params []float64) []float64

	// LogProb returns the log-probability (density) of action
	LogProb(params, action []float64) float64

	// LogProbs returns the log-probabilities of a batch of actions.
	// params and actions are row-major batches of batch rows.
	LogProbs(params, actions []float64, batch int) []float64
}

// New returns the Distribution suited to the action space. For
// continuous spaces logStd is the log standard deviation vector, which
// is read on every call and so may be updated in place by the caller.
func New(space env.ActionSpace, logStd []float64, seed uint64) (Distribution,
	error) {
	switch space.Cardinality {
	case env.Discrete:
		return NewCategorical(space.N, seed), nil

	case env.Continuous:
		if len(logStd) != space.Dims() {
			return nil, fmt.Errorf("new: log std vector of length %d for "+
				"action space of %d dimensions", len(logStd), space.Dims())
		}
		return NewGaussian(logStd, seed), nil

	default:
		return nil, fmt.Errorf("new: %w: %q", ErrUnknownActionSpace,
			space.Cardinality)
	}
}

// checkBatch panics if params and actions are not batches of size
// batch for the distribution d
func checkBatch(d Distribution, params, actions []float64, batch int) {
	if len(params) != batch*d.ParamSize() {
		panic(fmt.Sprintf("logprobs: illegal params length \n\twant(%v)"+
			"\n\thave(%v)", batch*d.ParamSize(), len(params)))
	}
	if len(actions) != batch*d.ActionSize() {
		panic(fmt.Sprintf("logprobs: illegal actions length \n\twant(%v)"+
			"\n\thave(%v)", batch*d.ActionSize(), len(actions)))
	}
}
