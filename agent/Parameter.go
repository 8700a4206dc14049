package agent

import "fmt"

// Parameter is a named, shaped block of float64 values owned outside of
// an Approximator but optimized by one, such as the log standard
// deviation of a Gaussian policy. Data is updated in place.
type Parameter struct {
	Name  string
	Shape []int
	Data  []float64
}

// NewParameter returns a zero-initialized Parameter
func NewParameter(name string, shape ...int) *Parameter {
	size := 1
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("newparameter: illegal shape %v", shape))
		}
		size *= d
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Parameter{Name: name, Shape: s, Data: make([]float64, size)}
}

// Len returns the number of values in the Parameter
func (p *Parameter) Len() int {
	return len(p.Data)
}
