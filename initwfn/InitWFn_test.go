package initwfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestCreate(t *testing.T) {
	configs := []Config{
		Default(),
		{Type: GlorotN, Gain: 1},
		{Type: HeU, Gain: 2},
		{Type: HeN, Gain: 2},
		{Type: Uniform, Low: -0.1, High: 0.1},
		{Type: Gaussian, StdDev: 0.1},
		{Type: Zeroes},
		{Type: Ones},
		{Type: Constant, Value: 0.5},
	}

	for _, c := range configs {
		t.Run(string(c.Type), func(t *testing.T) {
			init, err := c.Create()
			require.NoError(t, err)

			values, ok := init(tensor.Float64, 3, 4).([]float64)
			require.True(t, ok)
			assert.Len(t, values, 12)
		})
	}
}

func TestConstantValues(t *testing.T) {
	init, err := Config{Type: "constant", Value: 0.5}.Create()
	require.NoError(t, err)
	for _, v := range init(tensor.Float64, 2, 2).([]float64) {
		assert.Equal(t, 0.5, v)
	}
}

func TestValidate(t *testing.T) {
	bad := []Config{
		{Type: "Orthogonal"},
		{Type: GlorotU},
		{Type: Uniform, Low: 1, High: 1},
		{Type: Gaussian, StdDev: 0},
	}
	for _, c := range bad {
		assert.Error(t, c.Validate(), c.String())
	}
}
