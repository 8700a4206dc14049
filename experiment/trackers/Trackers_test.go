package trackers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/goppo/event"
	"github.com/samuelfneumann/goppo/experiment/tracker"
)

// steps returns the StepEndData of two episodes of lengths 3 and 2
// with rewards 1, 2, 3 and 4, 5
func steps() []event.StepEndData {
	return []event.StepEndData{
		{Step: 0, Reward: 1, Episodes: 0},
		{Step: 1, Reward: 2, Episodes: 0},
		{Step: 2, Reward: 3, Episodes: 1, Done: true},
		{Step: 3, Reward: 4, Episodes: 1},
		{Step: 4, Reward: 5, Episodes: 2},
		{Step: 0, Reward: 6, Episodes: 2},
	}
}

func TestReturnAndEpisodeLength(t *testing.T) {
	dir := t.TempDir()
	l := event.NewLifecycle()

	ret := NewReturn(filepath.Join(dir, "return.bin"))
	length := NewEpisodeLength(filepath.Join(dir, "length.bin"))
	subs := tracker.Register(l, ret, length)
	require.Len(t, subs, 2)

	for _, d := range steps() {
		l.StepEnd.Emit(d)
	}

	assert.Equal(t, []float64{6, 9}, ret.Data())
	assert.Equal(t, []float64{3, 2}, length.Data())

	require.NoError(t, ret.Save())
	loaded, err := tracker.LoadData(filepath.Join(dir, "return.bin"))
	require.NoError(t, err)
	assert.Equal(t, ret.Data(), loaded)

	// Unregistered trackers ignore further steps
	tracker.Unregister(l, subs)
	l.StepEnd.Emit(event.StepEndData{Reward: 1, Episodes: 3})
	assert.Equal(t, []float64{6, 9}, ret.Data())
}

func TestWma(t *testing.T) {
	w := NewWma(0.5, filepath.Join(t.TempDir(), "wma.bin"))
	for _, d := range steps() {
		w.Track(d)
	}

	// The first return seeds the average
	assert.Equal(t, []float64{6, 7.5}, w.Data())
	assert.Equal(t, 7.5, w.Value())
	assert.NoError(t, w.Save())
}

func TestPlot(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "returns.png")
	err := tracker.Plot(filename, "Returns", "Episode", "Return",
		map[string][]float64{
			"return": {1, 2, 3},
			"wma":    {1, 1.5, 2.25},
		})
	assert.NoError(t, err)
	assert.FileExists(t, filename)
}

func TestLoadMissing(t *testing.T) {
	_, err := tracker.LoadData(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}
