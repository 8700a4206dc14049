// Package pendulum implements the pendulum swing-up classic control
// environment
package pendulum

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

// default physical constants
const (
	AngleBound  float64 = math.Pi // +/- Angle bounds
	SpeedBound  float64 = 8.0     // +/- Speed bounds
	TorqueBound float64 = 2.0     // +/- Torque bounds

	// Bound (+/-) on the starting angular velocity
	StartSpeedBound float64 = 1.0

	Dt      float64 = 0.05
	Gravity float64 = 9.8
	Mass    float64 = 1.0
	Length  float64 = 1.0

	// Number of steps after which an episode ends
	StepLimit int = 200
)

// Pendulum implements the classic control environment Pendulum. In this
// environment, a pendulum is attached to a fixed base. An agent can
// swing the pendulum back and forth, but the torque is underpowered. In
// order to swing the pendulum straight up, it must first be rocked back
// and forth, using the momentum to gradually climb higher.
//
// Observations are the angle of the pendulum from the positive y-axis,
// normalized to [-π, π], and its angular velocity, clipped to
// [-SpeedBound, SpeedBound].
//
// Actions are continuous and 1-dimensional, giving the torque applied
// at the fixed base. Torques outside [-2, 2] are clipped.
//
// The reward is the cosine of the angle, so holding the pendulum
// upright earns 1 per step. Episodes end after StepLimit steps.
type Pendulum struct {
	starter env.Starter
	th      float64
	thDot   float64
	steps   int

	delay  time.Duration
	logger zerolog.Logger

	episodes int
	ret      float64
	wma      *floatutils.Wma
}

// Option configures a Pendulum
type Option func(*Pendulum)

// WithDelay makes each Step block for d
func WithDelay(d time.Duration) Option {
	return func(p *Pendulum) { p.delay = d }
}

// WithLogger sets the logger used to report episode statistics
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pendulum) { p.logger = l }
}

// New creates and returns a new Pendulum environment
func New(seed uint64, opts ...Option) *Pendulum {
	p := &Pendulum{
		starter: env.NewUniformStarter([]r1.Interval{
			{Min: -AngleBound, Max: AngleBound},
			{Min: -StartSpeedBound, Max: StartSpeedBound},
		}, seed),
		logger: zerolog.Nop(),
		wma:    floatutils.NewWma(floatutils.DefaultWmaAlpha),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.start()
	return p
}

// ActionSpace returns the action space of the environment
func (p *Pendulum) ActionSpace() env.ActionSpace {
	return env.NewContinuous([]float64{-TorqueBound}, []float64{TorqueBound})
}

// ObservationSpace returns the observation space of the environment
func (p *Pendulum) ObservationSpace() env.ObservationSpace {
	return env.NewObservationSpace(2)
}

// Reset resets the environment to a random angle and velocity
func (p *Pendulum) Reset(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.start()
	return p.observation(), nil
}

func (p *Pendulum) start() {
	s := p.starter.Start()
	p.th, p.thDot = s[0], s[1]
	p.steps = 0
	p.ret = 0
}

// Step applies the torque a to the base of the pendulum
func (p *Pendulum) Step(ctx context.Context, a []float64) ([]float64,
	float64, bool, error) {
	space := p.ActionSpace()
	if err := space.Validate(a); err != nil {
		return nil, 0, false, fmt.Errorf("step: %w", err)
	}
	torque := space.Clip(a)[0]

	p.thDot += (-3*Gravity/(2*Length)*math.Sin(p.th+math.Pi) +
		3.0/(Mass*Length*Length)*torque) * Dt
	p.th += p.thDot * Dt

	p.thDot = floatutils.Clip(p.thDot, -SpeedBound, SpeedBound)
	p.th = normalizeAngle(p.th)
	p.steps++

	if err := env.Sleep(ctx, p.delay); err != nil {
		return nil, 0, false, err
	}

	reward := math.Cos(p.th)
	p.ret += reward
	done := p.steps >= StepLimit
	if done {
		p.episodes++
		p.wma.Update(p.ret)
		p.logger.Debug().Msg("[ENV] " + p.Status())
	}
	return p.observation(), reward, done, nil
}

// Angle returns the current angle of the pendulum from the positive
// y-axis
func (p *Pendulum) Angle() float64 { return p.th }

// Episodes returns the number of finished episodes
func (p *Pendulum) Episodes() int { return p.episodes }

// Wma returns the moving average of episodic returns
func (p *Pendulum) Wma() float64 { return p.wma.Value() }

// Status returns a one-line summary of the environment statistics
func (p *Pendulum) Status() string {
	return floatutils.FormatParams(
		floatutils.Param{Key: "wma", Value: p.wma.Value()},
		floatutils.Param{Key: "theta", Value: p.th},
		floatutils.Param{Key: "episodes", Value: p.episodes},
	)
}

func (p *Pendulum) observation() []float64 {
	return []float64{p.th, p.thDot}
}

// String implements the fmt.Stringer interface
func (p *Pendulum) String() string {
	return fmt.Sprintf("Pendulum  |  theta: %v  |  theta dot: %v", p.th,
		p.thDot)
}

// normalizeAngle wraps th into [-π, π]
func normalizeAngle(th float64) float64 {
	th = math.Mod(th+AngleBound, 2*AngleBound)
	if th < 0 {
		th += 2 * AngleBound
	}
	return th - AngleBound
}
