// Package gae implements functionality for storing a generalized
// advantage estimate buffer
package gae

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/goppo/utils/floatutils"
)

// Epsilon is the floor on the advantage standard deviation used when
// normalizing advantages
const Epsilon = 1e-8

var (
	// ErrEmpty is returned by Get when no transitions are stored
	ErrEmpty = errors.New("buffer is empty")

	// ErrOpenTrajectory is returned by Get when some transitions have
	// not been closed by FinishTrajectory
	ErrOpenTrajectory = errors.New("trajectory not finished")

	// ErrDegenerate is returned by Get when the advantage statistics are
	// not finite
	ErrDegenerate = errors.New("degenerate advantage statistics")
)

// Batch holds one rollout read from the Buffer. Observations and
// Actions are row-major with Len rows.
type Batch struct {
	Len          int
	Observations []float64
	Actions      []float64
	Advantages   []float64
	Returns      []float64
	LogProbs     []float64
}

// Buffer implements a forward view generalized advantage estimate -
// GAE(λ) - buffer following https://arxiv.org/abs/1506.02438, holding a
// single rollout which may span several trajectories.
type Buffer struct {
	obsSize    int // Size of state observations
	actionSize int // Number of action dimensions
	maxSize    int // Max buffer size

	currentPos   int // Current position in the buffer
	pathStartIdx int // Position in the buffer where current trajectory starts

	lambda float64 // λ for GAE(λ) calculation
	gamma  float64 // Discount factor ℽ

	// Buffers for storing data
	obsBuffer     []float64
	actBuffer     []float64
	advBuffer     []float64
	rewBuffer     []float64
	retBuffer     []float64
	valBuffer     []float64
	logProbBuffer []float64
}

// New creates and returns a new GAE(λ) buffer with room for size
// transitions
func New(obsDim, actDim, size int, lambda, gamma float64) *Buffer {
	return &Buffer{
		obsSize:       obsDim,
		actionSize:    actDim,
		maxSize:       size,
		lambda:        lambda,
		gamma:         gamma,
		obsBuffer:     make([]float64, 0, size*obsDim),
		actBuffer:     make([]float64, 0, size*actDim),
		advBuffer:     make([]float64, 0, size),
		rewBuffer:     make([]float64, 0, size),
		retBuffer:     make([]float64, 0, size),
		valBuffer:     make([]float64, 0, size),
		logProbBuffer: make([]float64, 0, size),
	}
}

// Add stores a single timestep observation, action, reward, value
// estimate and action log-probability
func (v *Buffer) Add(obs, act []float64, rew, val, logProb float64) error {
	if v.currentPos >= v.maxSize {
		return fmt.Errorf("add: cannot add new transition, buffer at " +
			"maximum capacity")
	}
	if len(obs) != v.obsSize {
		return fmt.Errorf("add: illegal obs length \n\twant(%v)\n\thave(%v)",
			v.obsSize, len(obs))
	}
	if len(act) != v.actionSize {
		return fmt.Errorf("add: illegal act length \n\twant(%v)\n\thave(%v)",
			v.actionSize, len(act))
	}

	v.obsBuffer = append(v.obsBuffer, obs...)
	v.actBuffer = append(v.actBuffer, act...)
	v.rewBuffer = append(v.rewBuffer, rew)
	v.valBuffer = append(v.valBuffer, val)
	v.logProbBuffer = append(v.logProbBuffer, logProb)
	v.currentPos++
	return nil
}

// FinishTrajectory computes advantage estimates using GAE(λ) and
// discounted returns for the trajectory that started at the end of the
// previous one. It should be called when an episode ends or when the
// rollout is cut off.
//
// The lastVal argument should be 0 if the trajectory ended because
// the agent reached a terminal state, and otherwise it should be
// v(s), the value estimate of the state the trajectory was cut at.
func (v *Buffer) FinishTrajectory(lastVal float64) {
	start := v.pathStartIdx
	stop := v.currentPos
	if start == stop {
		return
	}

	rews := make([]float64, 0, stop-start+1)
	rews = append(rews, v.rewBuffer[start:stop]...)
	rews = append(rews, lastVal*v.gamma)

	vals := make([]float64, 0, stop-start+1)
	vals = append(vals, v.valBuffer[start:stop]...)
	vals = append(vals, lastVal)

	// δᵢ = rᵢ - (V(sᵢ) - ℽ V(sᵢ₊₁))
	n := stop - start
	stateVals := mat.NewVecDense(n, vals[:n])
	nextStateVals := mat.NewVecDense(n, vals[1:])
	rewards := mat.NewVecDense(n, rews[:n])

	deltas := mat.NewVecDense(n, nil)
	deltas.AddScaledVec(stateVals, -v.gamma, nextStateVals)
	deltas.SubVec(rewards, deltas)

	v.advBuffer = append(v.advBuffer, discountCumSum(deltas,
		v.gamma*v.lambda)...)

	// Returns, dropping the bootstrap element
	returns := discountCumSum(mat.NewVecDense(len(rews), rews), v.gamma)
	v.retBuffer = append(v.retBuffer, returns[:n]...)

	v.pathStartIdx = v.currentPos
}

// Get returns the rollout stored in the buffer. Advantages are first
// standardized to mean 0 and standard deviation 1, using the population
// standard deviation over the whole rollout floored at Epsilon.
func (v *Buffer) Get() (Batch, error) {
	if v.currentPos == 0 {
		return Batch{}, fmt.Errorf("get: %w", ErrEmpty)
	}
	if v.pathStartIdx != v.currentPos {
		return Batch{}, fmt.Errorf("get: %w: %d transitions after the last "+
			"finished trajectory", ErrOpenTrajectory,
			v.currentPos-v.pathStartIdx)
	}

	mean, std := stat.PopMeanStdDev(v.advBuffer, nil)
	if !floatutils.AllFinite(mean, std) {
		return Batch{}, fmt.Errorf("get: %w: mean = %v, std = %v",
			ErrDegenerate, mean, std)
	}
	if std < Epsilon {
		std = Epsilon
	}

	adv := make([]float64, len(v.advBuffer))
	copy(adv, v.advBuffer)
	floats.AddConst(-mean, adv)
	floats.Scale(1/std, adv)

	return Batch{
		Len:          v.currentPos,
		Observations: v.obsBuffer,
		Actions:      v.actBuffer,
		Advantages:   adv,
		Returns:      v.retBuffer,
		LogProbs:     v.logProbBuffer,
	}, nil
}

// Reset empties the buffer
func (v *Buffer) Reset() {
	v.currentPos = 0
	v.pathStartIdx = 0
	v.obsBuffer = v.obsBuffer[:0]
	v.actBuffer = v.actBuffer[:0]
	v.advBuffer = v.advBuffer[:0]
	v.rewBuffer = v.rewBuffer[:0]
	v.retBuffer = v.retBuffer[:0]
	v.valBuffer = v.valBuffer[:0]
	v.logProbBuffer = v.logProbBuffer[:0]
}

// Len returns the number of transitions stored
func (v *Buffer) Len() int {
	return v.currentPos
}

// Cap returns the maximum number of transitions the buffer can hold
func (v *Buffer) Cap() int {
	return v.maxSize
}

// TrajectoryStart returns the index at which the currently open
// trajectory started
func (v *Buffer) TrajectoryStart() int {
	return v.pathStartIdx
}

// Advantages returns the unnormalized advantages of all finished
// trajectories
func (v *Buffer) Advantages() []float64 {
	return v.advBuffer
}

// Returns returns the discounted returns of all finished trajectories
func (v *Buffer) Returns() []float64 {
	return v.retBuffer
}

// discountCumSum computes and returns the discounted cumulative sum
// of all elements of a vector. Given a vector v = [x0 x1 x2 ... xN]
// and discount ℽ, this function computes and returns:
//
//	[
//		x0 + ℽ x1 + ℽ^2 x2 + ... + ℽ^N xN
//		x1 + ℽ x2 + ... + ℽ^(N-1) xN
//		...
//		xN
//	]
func discountCumSum(x *mat.VecDense, discount float64) []float64 {
	n := x.Len()
	cumSums := make([]float64, n)
	var running float64
	for i := n - 1; i >= 0; i-- {
		running = x.AtVec(i) + discount*running
		cumSums[i] = running
	}
	return cumSums
}
