package environment

import (
	"errors"
	"fmt"
	"math"

	"github.com/samuelfneumann/goppo/utils/floatutils"
)

// ErrActionMismatch is returned when an action does not conform to the
// ActionSpace it is used with
var ErrActionMismatch = errors.New("action does not match action space")

// Cardinality determines the cardinality of a space (discrete or
// continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// DType names the numeric type of the values in a space
type DType string

const (
	Int32   DType = "int32"
	Float32 DType = "float32"
)

// ActionSpace describes the actions an environment accepts. It is a
// tagged value: when Cardinality is Discrete only N is meaningful,
// and when it is Continuous only Low and High are meaningful.
//
// Actions are always passed around as []float64. A discrete action is
// a slice of length 1 holding the index of the action, a continuous
// action is a slice of length Dims().
type ActionSpace struct {
	Cardinality
	DType

	// Discrete
	N int

	// Continuous
	Low  []float64
	High []float64
}

// NewDiscrete returns a discrete action space of n actions
func NewDiscrete(n int) ActionSpace {
	if n <= 0 {
		panic(fmt.Sprintf("newdiscrete: number of actions must be "+
			"positive, have(%d)", n))
	}
	return ActionSpace{Cardinality: Discrete, DType: Int32, N: n}
}

// NewContinuous returns a box-constrained continuous action space with
// the given lower and upper bounds
func NewContinuous(low, high []float64) ActionSpace {
	if len(low) != len(high) {
		panic(fmt.Sprintf("newcontinuous: lower bounds length %v must "+
			"match upper bounds length %v", len(low), len(high)))
	}
	if len(low) == 0 {
		panic("newcontinuous: action space must have at least one dimension")
	}
	for i := range low {
		if low[i] > high[i] {
			panic(fmt.Sprintf("newcontinuous: lower bound %v > upper "+
				"bound %v in dimension %d", low[i], high[i], i))
		}
	}

	l := make([]float64, len(low))
	h := make([]float64, len(high))
	copy(l, low)
	copy(h, high)
	return ActionSpace{Cardinality: Continuous, DType: Float32, Low: l,
		High: h}
}

// IsDiscrete returns whether the space is discrete
func (a ActionSpace) IsDiscrete() bool {
	return a.Cardinality == Discrete
}

// IsContinuous returns whether the space is continuous
func (a ActionSpace) IsContinuous() bool {
	return a.Cardinality == Continuous
}

// Dims returns the length of an action vector in this space
func (a ActionSpace) Dims() int {
	switch a.Cardinality {
	case Discrete:
		return 1
	case Continuous:
		return len(a.Low)
	default:
		return 0
	}
}

// Validate checks that action belongs to the space. The returned error
// wraps ErrActionMismatch.
func (a ActionSpace) Validate(action []float64) error {
	switch a.Cardinality {
	case Discrete:
		if len(action) != 1 {
			return fmt.Errorf("validate: %w: discrete action must have "+
				"length 1, have(%d)", ErrActionMismatch, len(action))
		}
		idx := action[0]
		if idx != math.Trunc(idx) || idx < 0 || int(idx) >= a.N {
			return fmt.Errorf("validate: %w: action %v ∉ [0, %d)",
				ErrActionMismatch, idx, a.N)
		}

	case Continuous:
		if len(action) != len(a.Low) {
			return fmt.Errorf("validate: %w: illegal action length"+
				"\n\twant(%d)\n\thave(%d)", ErrActionMismatch, len(a.Low),
				len(action))
		}
		for i, v := range action {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("validate: %w: action dimension %d is %v",
					ErrActionMismatch, i, v)
			}
		}

	default:
		return fmt.Errorf("validate: %w: unknown action space cardinality "+
			"%q", ErrActionMismatch, a.Cardinality)
	}
	return nil
}

// Clip clips a continuous action to the bounds of the space. Discrete
// actions are returned unchanged.
func (a ActionSpace) Clip(action []float64) []float64 {
	if !a.IsContinuous() {
		return action
	}
	clipped := make([]float64, len(action))
	for i := range action {
		clipped[i] = floatutils.Clip(action[i], a.Low[i], a.High[i])
	}
	return clipped
}

// String implements the fmt.Stringer interface
func (a ActionSpace) String() string {
	if a.IsDiscrete() {
		return fmt.Sprintf("Discrete(%d)", a.N)
	}
	return fmt.Sprintf("Box(low=%v, high=%v)", a.Low, a.High)
}

// ObservationSpace describes the fixed-size observation vectors that an
// environment returns
type ObservationSpace struct {
	Shape []int
	DType
}

// NewObservationSpace returns a float32 observation space with the given
// shape
func NewObservationSpace(shape ...int) ObservationSpace {
	s := make([]int, len(shape))
	copy(s, shape)
	return ObservationSpace{Shape: s, DType: Float32}
}

// Len returns the number of elements in a flattened observation
func (o ObservationSpace) Len() int {
	if len(o.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range o.Shape {
		n *= d
	}
	return n
}
