package floatutils

// DefaultWmaAlpha is the smoothing factor used by NewWma when none is
// given
const DefaultWmaAlpha = 0.01

// Wma tracks an exponentially weighted moving average. The first value
// seen initialises the average.
type Wma struct {
	alpha  float64
	value  float64
	inited bool
}

// NewWma returns a moving average with smoothing factor alpha. If
// alpha is not in (0, 1], DefaultWmaAlpha is used.
func NewWma(alpha float64) *Wma {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultWmaAlpha
	}
	return &Wma{alpha: alpha}
}

// Update adds x to the average and returns the new average
func (w *Wma) Update(x float64) float64 {
	if !w.inited {
		w.inited = true
		w.value = x
	}
	w.value = w.value*(1-w.alpha) + x*w.alpha
	return w.value
}

// Value returns the current average
func (w *Wma) Value() float64 {
	return w.value
}
