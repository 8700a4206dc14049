// Package frozenlake implements the slippery Frozen Lake gridworld
package frozenlake

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/utils/floatutils"
)

// Tile is a single cell of the lake
type Tile byte

const (
	Start  Tile = 'S'
	Frozen Tile = 'F'
	Hole   Tile = 'H'
	Goal   Tile = 'G'
)

// Direction is an action in the lake
type Direction int

const (
	Up Direction = iota
	Right
	Left
	Down
)

// SlipProbability is the probability that the agent's chosen action is
// replaced by a uniformly random one
const SlipProbability = 2.0 / 3.0

// DefaultMap is the 8x8 lake
var DefaultMap = []string{
	"SFFFFFFF",
	"FFFFFFFF",
	"FFFHFFFF",
	"FFFFFHFF",
	"FFFHFFFF",
	"FHHFFFHF",
	"FHFFHFHF",
	"FFFHFFFG",
}

// FrozenLake implements a slippery gridworld. The agent starts in the
// top left corner and must reach the goal in the bottom right corner
// without falling into a hole. With probability SlipProbability the
// agent slips and moves in a random direction instead of the one
// chosen. Moves off the edge of the map leave the agent in place.
//
// Observations are the flattened index of the agent's cell. Actions
// are discrete:
//
//	Action	Meaning
//	  0		Up
//	  1		Right
//	  2		Left
//	  3		Down
//
// Reaching the goal gives a reward of 1 and ends the episode as a win;
// falling into a hole ends the episode as a loss with reward 0.
type FrozenLake struct {
	tiles    [][]Tile
	rows     int
	cols     int
	row, col int
	rng      *rand.Rand
	slip     float64

	delay  time.Duration
	logger zerolog.Logger

	wins   int
	losses int
	wma    *floatutils.Wma
}

// Option configures a FrozenLake
type Option func(*FrozenLake)

// WithDelay makes each Step block for d
func WithDelay(d time.Duration) Option {
	return func(f *FrozenLake) { f.delay = d }
}

// WithLogger sets the logger used to report episode statistics
func WithLogger(l zerolog.Logger) Option {
	return func(f *FrozenLake) { f.logger = l }
}

// WithSlipProbability sets the probability of slipping
func WithSlipProbability(p float64) Option {
	return func(f *FrozenLake) { f.slip = p }
}

// New returns a new FrozenLake on the given map. Each row of the map is
// a string of Tiles, and all rows must have the same length.
func New(layout []string, seed uint64, opts ...Option) (*FrozenLake, error) {
	if len(layout) == 0 {
		return nil, fmt.Errorf("new: empty map")
	}
	cols := len(layout[0])
	tiles := make([][]Tile, len(layout))
	for i, row := range layout {
		if len(row) != cols {
			return nil, fmt.Errorf("new: row %d has %d columns, want %d", i,
				len(row), cols)
		}
		tiles[i] = []Tile(row)
	}
	if tiles[0][0] != Start {
		return nil, fmt.Errorf("new: map must start at the top left corner")
	}

	f := &FrozenLake{
		tiles:  tiles,
		rows:   len(layout),
		cols:   cols,
		rng:    rand.New(rand.NewSource(seed)),
		slip:   SlipProbability,
		logger: zerolog.Nop(),
		wma:    floatutils.NewWma(floatutils.DefaultWmaAlpha),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// ActionSpace returns the action space of the environment
func (f *FrozenLake) ActionSpace() env.ActionSpace {
	return env.NewDiscrete(4)
}

// ObservationSpace returns the observation space of the environment
func (f *FrozenLake) ObservationSpace() env.ObservationSpace {
	return env.ObservationSpace{Shape: []int{1}, DType: env.Int32}
}

// Reset places the agent back on the start tile
func (f *FrozenLake) Reset(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.row, f.col = 0, 0
	return f.observation(), nil
}

// Step moves the agent given action a
func (f *FrozenLake) Step(ctx context.Context, a []float64) ([]float64,
	float64, bool, error) {
	if err := f.ActionSpace().Validate(a); err != nil {
		return nil, 0, false, fmt.Errorf("step: %w", err)
	}
	if err := env.Sleep(ctx, f.delay); err != nil {
		return nil, 0, false, err
	}

	f.move(Direction(a[0]))

	var reward float64
	var done bool
	switch f.tiles[f.row][f.col] {
	case Hole:
		done = true
		f.losses++
	case Goal:
		done = true
		reward = 1
		f.wins++
	}

	f.wma.Update(float64(f.distanceToGoal()))
	if done {
		f.logger.Debug().Msg("[ENV] " + f.Status())
	}
	return f.observation(), reward, done, nil
}

func (f *FrozenLake) move(d Direction) {
	if f.rng.Float64() < f.slip {
		d = Direction(f.rng.Intn(4))
	}

	switch {
	case d == Up && f.row > 0:
		f.row--
	case d == Down && f.row < f.rows-1:
		f.row++
	case d == Left && f.col > 0:
		f.col--
	case d == Right && f.col < f.cols-1:
		f.col++
	}
}

func (f *FrozenLake) distanceToGoal() int {
	dr, dc := f.rows-1-f.row, f.cols-1-f.col
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}

func (f *FrozenLake) observation() []float64 {
	return []float64{float64(f.row*f.cols + f.col)}
}

// Position returns the row and column of the agent
func (f *FrozenLake) Position() (row, col int) { return f.row, f.col }

// Wins returns the number of episodes that reached the goal
func (f *FrozenLake) Wins() int { return f.wins }

// Losses returns the number of episodes that ended in a hole
func (f *FrozenLake) Losses() int { return f.losses }

// Status returns a one-line summary of the environment statistics
func (f *FrozenLake) Status() string {
	return floatutils.FormatParams(
		floatutils.Param{Key: "wma", Value: f.wma.Value()},
		floatutils.Param{Key: "row", Value: f.row},
		floatutils.Param{Key: "col", Value: f.col},
		floatutils.Param{Key: "win", Value: f.wins},
		floatutils.Param{Key: "loss", Value: f.losses},
	)
}
