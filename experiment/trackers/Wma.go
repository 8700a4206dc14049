package trackers

import (
	"github.com/samuelfneumann/goppo/event"
	"github.com/samuelfneumann/goppo/experiment/tracker"
	"github.com/samuelfneumann/goppo/utils/floatutils"
)

// Wma tracks the weighted moving average of the episodic returns seen
// by an embedded Return tracker. One average is recorded per finished
// episode.
type Wma struct {
	*Return
	wma      *floatutils.Wma
	averages []float64
	filename string
}

// NewWma returns a new Wma Tracker with smoothing factor alpha which
// will save its data at the specified location filename
func NewWma(alpha float64, filename string) *Wma {
	return &Wma{
		Return:   NewReturn(""),
		wma:      floatutils.NewWma(alpha),
		filename: filename,
	}
}

// Track implements the tracker.Tracker interface
func (w *Wma) Track(d event.StepEndData) {
	before := len(w.Return.Data())
	w.Return.Track(d)

	returns := w.Return.Data()
	for _, r := range returns[before:] {
		w.averages = append(w.averages, w.wma.Update(r))
	}
}

// Value returns the current moving average
func (w *Wma) Value() float64 {
	return w.wma.Value()
}

// Data returns the moving average after each finished episode
func (w *Wma) Data() []float64 {
	return w.averages
}

// Save saves the moving averages to disk
func (w *Wma) Save() error {
	return tracker.SaveData(w.filename, w.averages)
}
