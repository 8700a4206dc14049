// Package solver implements functionality to describe Gorgonia Solvers
// by name so that they can be read from configuration files.
package solver

import (
	"fmt"
	"strings"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	RMSProp Type = "RMSProp"
	Vanilla Type = "Vanilla"
)

// Config describes a solver. The learning rate is not part of the
// Config since a single Config may be used to create solvers for
// models with different learning rates.
//
// Fields that do not apply to Type are ignored.
type Config struct {
	Type Type `yaml:"type" json:"type" mapstructure:"type"`

	// Smoothing factor of Adam and RMSProp
	Epsilon float64 `yaml:"epsilon" json:"epsilon" mapstructure:"epsilon"`

	// Adam
	Beta1 float64 `yaml:"beta1" json:"beta1" mapstructure:"beta1"`
	Beta2 float64 `yaml:"beta2" json:"beta2" mapstructure:"beta2"`

	// RMSProp decay
	Rho float64 `yaml:"rho" json:"rho" mapstructure:"rho"`

	// Gradient clipping, disabled when 0
	Clip float64 `yaml:"clip" json:"clip" mapstructure:"clip"`
}

// Default returns the configuration of the Adam solver with its
// usual hyperparameters
func Default() Config {
	return Config{
		Type:    Adam,
		Epsilon: 1e-7,
		Beta1:   0.9,
		Beta2:   0.999,
		Rho:     0.9,
	}
}

// ParseType returns the solver Type with the given case-insensitive
// name
func ParseType(name string) (Type, error) {
	for _, t := range []Type{Adam, RMSProp, Vanilla} {
		if strings.EqualFold(name, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("parsetype: unknown solver type %q", name)
}

// Validate checks the hyperparameters of the solver type
func (c Config) Validate() error {
	t, err := ParseType(string(c.Type))
	if err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.Clip < 0 {
		return fmt.Errorf("validate: clip must be non-negative, have(%v)",
			c.Clip)
	}

	switch t {
	case Adam:
		if c.Epsilon <= 0 {
			return fmt.Errorf("validate: adam epsilon must be positive")
		}
		if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
			return fmt.Errorf("validate: adam betas must be in [0, 1), "+
				"have(%v, %v)", c.Beta1, c.Beta2)
		}
	case RMSProp:
		if c.Epsilon <= 0 {
			return fmt.Errorf("validate: rmsprop epsilon must be positive")
		}
		if c.Rho <= 0 || c.Rho >= 1 {
			return fmt.Errorf("validate: rmsprop rho must be in (0, 1), "+
				"have(%v)", c.Rho)
		}
	}
	return nil
}

// Create returns a new Gorgonia Solver as described by the Config with
// learning rate stepSize.
//
// Losses passed to the solver are already batch means, so the solver
// batch size is always 1.
func (c Config) Create(stepSize float64) (G.Solver, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}
	if stepSize <= 0 {
		return nil, fmt.Errorf("create: step size must be positive, "+
			"have(%v)", stepSize)
	}

	opts := []G.SolverOpt{
		G.WithLearnRate(stepSize),
		G.WithBatchSize(1),
	}
	if c.Clip > 0 {
		opts = append(opts, G.WithClip(c.Clip))
	}

	t, _ := ParseType(string(c.Type))
	switch t {
	case Adam:
		opts = append(opts,
			G.WithEps(c.Epsilon),
			G.WithBeta1(c.Beta1),
			G.WithBeta2(c.Beta2),
		)
		return G.NewAdamSolver(opts...), nil

	case RMSProp:
		opts = append(opts,
			G.WithEps(c.Epsilon),
			G.WithRho(c.Rho),
		)
		return G.NewRMSPropSolver(opts...), nil

	default:
		return G.NewVanillaSolver(opts...), nil
	}
}
