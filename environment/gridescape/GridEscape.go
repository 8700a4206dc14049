// Package gridescape implements a continuous goal-reaching task on the
// unit square
package gridescape

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/utils/floatutils"
)

const (
	// StepSize scales actions into displacements
	StepSize float64 = 0.05

	// WinDistance is the distance to the goal under which the episode
	// is won
	WinDistance float64 = 0.01

	// StepLimit is the number of steps after which the episode is lost
	StepLimit int = 30
)

// GridEscape places an agent and a goal uniformly at random in the unit
// square. On each step the agent moves by StepSize times the action,
// where actions are 2-dimensional and bounded in [-1, 1]. Actions
// outside the bounds are clipped.
//
// Observations are [agentX, agentY, goalX, goalY]. The reward is the
// negative Euclidean distance between the agent and the goal. The
// episode is won once the agent is within WinDistance of the goal and
// lost if more than StepLimit steps have passed.
type GridEscape struct {
	starter env.Starter
	agent   [2]float64
	goal    [2]float64
	steps   int

	delay  time.Duration
	logger zerolog.Logger

	wins   int
	losses int
	wma    *floatutils.Wma
}

// Option configures a GridEscape
type Option func(*GridEscape)

// WithDelay makes each Step block for d
func WithDelay(d time.Duration) Option {
	return func(g *GridEscape) { g.delay = d }
}

// WithLogger sets the logger used to report episode statistics
func WithLogger(l zerolog.Logger) Option {
	return func(g *GridEscape) { g.logger = l }
}

// New returns a new GridEscape environment
func New(seed uint64, opts ...Option) *GridEscape {
	unit := r1.Interval{Min: 0, Max: 1}
	g := &GridEscape{
		starter: env.NewUniformStarter(
			[]r1.Interval{unit, unit, unit, unit},
			seed,
		),
		logger: zerolog.Nop(),
		wma:    floatutils.NewWma(floatutils.DefaultWmaAlpha),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.start()
	return g
}

// ActionSpace returns the action space of the environment
func (g *GridEscape) ActionSpace() env.ActionSpace {
	return env.NewContinuous([]float64{-1, -1}, []float64{1, 1})
}

// ObservationSpace returns the observation space of the environment
func (g *GridEscape) ObservationSpace() env.ObservationSpace {
	return env.NewObservationSpace(4)
}

// Reset samples new agent and goal positions
func (g *GridEscape) Reset(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.start()
	return g.observation(), nil
}

func (g *GridEscape) start() {
	s := g.starter.Start()
	g.agent = [2]float64{s[0], s[1]}
	g.goal = [2]float64{s[2], s[3]}
	g.steps = 0
}

// Step moves the agent by the given action
func (g *GridEscape) Step(ctx context.Context, a []float64) ([]float64,
	float64, bool, error) {
	space := g.ActionSpace()
	if err := space.Validate(a); err != nil {
		return nil, 0, false, fmt.Errorf("step: %w", err)
	}
	a = space.Clip(a)

	g.agent[0] += a[0] * StepSize
	g.agent[1] += a[1] * StepSize
	g.steps++

	reward := -floats.Distance(g.agent[:], g.goal[:], 2)
	win := reward > -WinDistance
	loss := g.steps > StepLimit
	if win {
		g.wins++
	} else if loss {
		g.losses++
	}

	if err := env.Sleep(ctx, g.delay); err != nil {
		return nil, 0, false, err
	}

	g.wma.Update(reward)
	done := win || loss
	if done {
		g.logger.Debug().Msg("[ENV] " + g.Status())
	}
	return g.observation(), reward, done, nil
}

func (g *GridEscape) observation() []float64 {
	return []float64{g.agent[0], g.agent[1], g.goal[0], g.goal[1]}
}

// Distance returns the distance between the agent and the goal
func (g *GridEscape) Distance() float64 {
	return math.Hypot(g.agent[0]-g.goal[0], g.agent[1]-g.goal[1])
}

// Wins returns the number of episodes that reached the goal
func (g *GridEscape) Wins() int { return g.wins }

// Losses returns the number of episodes that ran out of steps
func (g *GridEscape) Losses() int { return g.losses }

// Status returns a one-line summary of the environment statistics
func (g *GridEscape) Status() string {
	return floatutils.FormatParams(
		floatutils.Param{Key: "wma", Value: g.wma.Value()},
		floatutils.Param{Key: "distance", Value: g.Distance()},
		floatutils.Param{Key: "win", Value: g.wins},
		floatutils.Param{Key: "loss", Value: g.losses},
	)
}
