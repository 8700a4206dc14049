// Package cartpole implements the Cartpole classic control environment
package cartpole

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/utils/floatutils"
)

const (
	// Physical constants
	Gravity        float64 = 9.8
	CartMass       float64 = 1.0
	PoleMass       float64 = 0.1
	TotalMass      float64 = CartMass + PoleMass
	HalfPoleLength float64 = 0.5  // half of pole length
	ForceMag       float64 = 10.0 // Magnification of force applied
	Dt             float64 = 0.02 // seconds between state updates

	// Episode termination
	PositionThreshold float64 = 2.4
	FailAngle         float64 = 12 * 2 * math.Pi / 360
	TickThreshold     int     = 200

	// Bound (+/-) on the uniform noise of starting positions and angles
	StartBound float64 = 0.05

	NumActions int = 2
)

// RealTimeDelay is the step delay that makes the simulation run at
// 60 steps per second
const RealTimeDelay = time.Second / 60

// Cartpole implements the classic control environment Cartpole. In
// this environment, a pole is attached to a cart, which can move
// horizontally. The agent must keep the pole upright for as long as
// possible.
//
// The state features are continuous and consist of the cart's x
// position and speed, as well as the pole's angle from the positive
// y-axis and the pole's angular velocity.
//
// Actions are discrete and consist of the direction of the force
// applied to the cart:
//
//	Action	Meaning
//	  0		Accelerate left
//	  1		Accelerate right
//
// The reward is +1 on every step that does not end the episode and 0
// on the step that does. An episode ends when the cart leaves
// [-2.4, 2.4], when the pole falls past 12 degrees, or after more than
// 200 steps. Surviving past 200 steps counts as a win, every other
// episode end counts as a loss.
type Cartpole struct {
	starter env.Starter
	x       float64
	xDot    float64
	th      float64
	thDot   float64
	ticks   int

	delay  time.Duration
	logger zerolog.Logger

	wins   int
	losses int
	wma    *floatutils.Wma
}

// Option configures a Cartpole
type Option func(*Cartpole)

// WithDelay makes each Step block for d, simulating real time
func WithDelay(d time.Duration) Option {
	return func(c *Cartpole) { c.delay = d }
}

// WithLogger sets the logger used to report episode statistics
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cartpole) { c.logger = l }
}

// New constructs a new Cartpole environment
func New(seed uint64, opts ...Option) *Cartpole {
	bound := r1.Interval{Min: -StartBound, Max: StartBound}
	still := r1.Interval{Min: 0, Max: 0}
	starter := env.NewUniformStarter(
		[]r1.Interval{bound, still, bound, still},
		seed,
	)

	c := &Cartpole{
		starter: starter,
		logger:  zerolog.Nop(),
		wma:     floatutils.NewWma(floatutils.DefaultWmaAlpha),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.start()
	return c
}

// ActionSpace returns the action space of the environment
func (c *Cartpole) ActionSpace() env.ActionSpace {
	return env.NewDiscrete(NumActions)
}

// ObservationSpace returns the observation space of the environment
func (c *Cartpole) ObservationSpace() env.ObservationSpace {
	return env.NewObservationSpace(4)
}

// Reset resets the environment and returns a starting state drawn
// uniformly around the upright resting position
func (c *Cartpole) Reset(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.start()
	return c.observation(), nil
}

func (c *Cartpole) start() {
	state := c.starter.Start()
	c.x, c.xDot, c.th, c.thDot = state[0], state[1], state[2], state[3]
	c.ticks = 0
}

// Step takes one environmental step given action a and returns the
// next observation, the reward and whether the episode has ended.
func (c *Cartpole) Step(ctx context.Context, a []float64) ([]float64,
	float64, bool, error) {
	if err := c.ActionSpace().Validate(a); err != nil {
		return nil, 0, false, fmt.Errorf("step: %w", err)
	}
	c.ticks++

	force := -ForceMag
	if a[0] != 0 {
		force = ForceMag
	}

	// Calculate physical variables to determine next state
	cosTheta := math.Cos(c.th)
	sinTheta := math.Sin(c.th)
	poleMassLength := PoleMass * HalfPoleLength

	temp := (force + poleMassLength*c.thDot*c.thDot*sinTheta) / TotalMass
	thAcc := (Gravity*sinTheta - cosTheta*temp) / (HalfPoleLength *
		(4.0/3.0 - PoleMass*cosTheta*cosTheta/TotalMass))
	xAcc := temp - poleMassLength*thAcc*cosTheta/TotalMass

	// Update state variables using Euler kinematic integration
	c.x += Dt * c.xDot
	c.xDot += Dt * xAcc
	c.th += Dt * c.thDot
	c.thDot += Dt * thAcc

	win := c.ticks > TickThreshold
	inBounds := floatutils.Within(c.x, r1.Interval{
		Min: -PositionThreshold,
		Max: PositionThreshold,
	}) && floatutils.Within(c.th, r1.Interval{Min: -FailAngle, Max: FailAngle})
	done := win || !inBounds

	reward := 1.0
	if done {
		reward = 0.0
	}

	if win {
		c.wins++
	} else if done {
		c.losses++
	}

	if err := env.Sleep(ctx, c.delay); err != nil {
		return nil, 0, false, err
	}

	if done {
		c.wma.Update(float64(c.ticks))
		c.logger.Debug().Msg("[ENV] " + c.Status())
	}

	return c.observation(), reward, done, nil
}

// Wins returns the number of episodes in which the pole was balanced
// past the tick threshold
func (c *Cartpole) Wins() int { return c.wins }

// Losses returns the number of episodes that ended early
func (c *Cartpole) Losses() int { return c.losses }

// Wma returns the moving average of episode lengths
func (c *Cartpole) Wma() float64 { return c.wma.Value() }

// Status returns a one-line summary of the environment statistics
func (c *Cartpole) Status() string {
	return floatutils.FormatParams(
		floatutils.Param{Key: "wma", Value: c.wma.Value()},
		floatutils.Param{Key: "theta", Value: c.th},
		floatutils.Param{Key: "win", Value: c.wins},
		floatutils.Param{Key: "loss", Value: c.losses},
	)
}

func (c *Cartpole) observation() []float64 {
	return []float64{c.x, c.xDot, c.th, c.thDot}
}

// String implements the fmt.Stringer interface
func (c *Cartpole) String() string {
	msg := "Cartpole  |  Position: %v  | Speed: %v  |  Angle: %v" +
		"  |  Angular Velocity: %v"
	return fmt.Sprintf(msg, c.x, c.xDot, c.th, c.thDot)
}
