// Package environment outlines the interfaces and structs needed to
// implement concrete environments that a trainer can interact with
package environment

import (
	"context"
	"time"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() []float64
}

// Environment implements a simulated environment. Both Reset and Step
// may block, for example when the environment runs in real time or
// lives behind a remote connection, and should return early with
// ctx.Err() if the context is cancelled.
//
// Step must return an error wrapping ErrActionMismatch if the action
// does not conform to the ActionSpace of the environment.
type Environment interface {
	ActionSpace() ActionSpace
	ObservationSpace() ObservationSpace
	Reset(ctx context.Context) ([]float64, error)
	Step(ctx context.Context, action []float64) (obs []float64,
		reward float64, done bool, err error)
}

// Sleep pauses for the given duration, returning early with the
// context error if ctx is cancelled first. Environments simulating
// real-time interaction use Sleep between steps.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
