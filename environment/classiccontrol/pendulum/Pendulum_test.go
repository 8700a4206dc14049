package pendulum

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	env "github.com/samuelfneumann/goppo/environment"
)

func TestNormalizeAngle(t *testing.T) {
	for _, tc := range []struct{ in, want float64 }{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{7 * math.Pi / 2, -math.Pi / 2},
	} {
		assert.InDelta(t, tc.want, normalizeAngle(tc.in), 1e-9, tc.in)
	}
}

func TestUprightAndStillStaysUp(t *testing.T) {
	p := New(1)
	p.th, p.thDot = 0, 0

	obs, reward, done, err := p.Step(context.Background(), []float64{0})
	require.NoError(t, err)
	assert.False(t, done)
	assert.InDelta(t, 1, reward, 1e-12)
	assert.InDelta(t, 0, obs[0], 1e-12)
}

func TestEpisodeLimitAndBounds(t *testing.T) {
	p := New(2)
	_, err := p.Reset(context.Background())
	require.NoError(t, err)

	for i := 1; i <= StepLimit; i++ {
		obs, reward, done, err := p.Step(context.Background(),
			[]float64{10})
		require.NoError(t, err)
		assert.Equal(t, i == StepLimit, done, i)
		assert.LessOrEqual(t, math.Abs(obs[0]), AngleBound)
		assert.LessOrEqual(t, math.Abs(obs[1]), SpeedBound)
		assert.InDelta(t, math.Cos(obs[0]), reward, 1e-12)
	}
	assert.Equal(t, 1, p.Episodes())
}

func TestInvalidAction(t *testing.T) {
	p := New(3)
	_, _, _, err := p.Step(context.Background(), []float64{0, 0})
	assert.ErrorIs(t, err, env.ErrActionMismatch)
}
