package ppo

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/samuelfneumann/goppo/initwfn"
	"github.com/samuelfneumann/goppo/network"
	"github.com/samuelfneumann/goppo/solver"
)

// NetArch gives the hidden layer widths of the policy (Pi) and value
// function (Vf) networks
type NetArch struct {
	Pi []int `yaml:"pi" json:"pi" mapstructure:"pi"`
	Vf []int `yaml:"vf" json:"vf" mapstructure:"vf"`
}

// Config describes a PPO trainer. A Config is copied by New, so
// changing it after the trainer is built has no effect.
type Config struct {
	// Number of environment steps per rollout, which is also the
	// capacity of the rollout buffer
	NSteps int `yaml:"nSteps" json:"nSteps" mapstructure:"nSteps"`

	// Maximum number of policy epochs and exact number of value epochs
	// per rollout
	NEpochs int `yaml:"nEpochs" json:"nEpochs" mapstructure:"nEpochs"`

	PolicyLearningRate float64 `yaml:"policyLearningRate" json:"policyLearningRate" mapstructure:"policyLearningRate"`
	ValueLearningRate  float64 `yaml:"valueLearningRate" json:"valueLearningRate" mapstructure:"valueLearningRate"`

	// Clipping parameter ε of the surrogate objective
	ClipRatio float64 `yaml:"clipRatio" json:"clipRatio" mapstructure:"clipRatio"`

	// The policy phase stops early once the approximate KL divergence
	// exceeds 1.5 TargetKL
	TargetKL float64 `yaml:"targetKL" json:"targetKL" mapstructure:"targetKL"`

	Gamma  float64 `yaml:"gamma" json:"gamma" mapstructure:"gamma"`
	Lambda float64 `yaml:"lambda" json:"lambda" mapstructure:"lambda"`

	NetArch    NetArch `yaml:"netArch" json:"netArch" mapstructure:"netArch"`
	Activation string  `yaml:"activation" json:"activation" mapstructure:"activation"`

	// 0 logs warnings, 1 logs rollout and training summaries and 2 logs
	// every epoch
	Verbose int `yaml:"verbose" json:"verbose" mapstructure:"verbose"`

	// Seed of the action distribution
	Seed uint64 `yaml:"seed" json:"seed" mapstructure:"seed"`

	// Total number of environment steps after which learning stops,
	// unbounded if 0
	MaxTimesteps int `yaml:"maxTimesteps" json:"maxTimesteps" mapstructure:"maxTimesteps"`

	Init   initwfn.Config `yaml:"init" json:"init" mapstructure:"init"`
	Solver solver.Config  `yaml:"solver" json:"solver" mapstructure:"solver"`
}

// Default returns the default PPO configuration
func Default() Config {
	return Config{
		NSteps:             512,
		NEpochs:            10,
		PolicyLearningRate: 1e-3,
		ValueLearningRate:  1e-3,
		ClipRatio:          0.2,
		TargetKL:           0.01,
		Gamma:              0.99,
		Lambda:             0.95,
		NetArch: NetArch{
			Pi: []int{32, 32},
			Vf: []int{32, 32},
		},
		Activation: "relu",
		Verbose:    0,
		Init:       initwfn.Default(),
		Solver:     solver.Default(),
	}
}

// Validate checks that the Config describes a valid trainer
func (c Config) Validate() error {
	switch {
	case c.NSteps <= 0:
		return fmt.Errorf("validate: nSteps must be positive, have(%d)",
			c.NSteps)
	case c.NEpochs <= 0:
		return fmt.Errorf("validate: nEpochs must be positive, have(%d)",
			c.NEpochs)
	case c.PolicyLearningRate <= 0:
		return fmt.Errorf("validate: policy learning rate must be "+
			"positive, have(%v)", c.PolicyLearningRate)
	case c.ValueLearningRate <= 0:
		return fmt.Errorf("validate: value learning rate must be "+
			"positive, have(%v)", c.ValueLearningRate)
	case c.ClipRatio <= 0:
		return fmt.Errorf("validate: clip ratio must be positive, have(%v)",
			c.ClipRatio)
	case c.TargetKL <= 0:
		return fmt.Errorf("validate: target KL must be positive, have(%v)",
			c.TargetKL)
	case c.Gamma < 0 || c.Gamma > 1:
		return fmt.Errorf("validate: gamma must be in [0, 1], have(%v)",
			c.Gamma)
	case c.Lambda < 0 || c.Lambda > 1:
		return fmt.Errorf("validate: lambda must be in [0, 1], have(%v)",
			c.Lambda)
	case c.Verbose < 0 || c.Verbose > 2:
		return fmt.Errorf("validate: verbose must be 0, 1 or 2, have(%d)",
			c.Verbose)
	case c.MaxTimesteps < 0:
		return fmt.Errorf("validate: max timesteps must be non-negative, "+
			"have(%d)", c.MaxTimesteps)
	}

	for _, h := range append(append([]int{}, c.NetArch.Pi...),
		c.NetArch.Vf...) {
		if h <= 0 {
			return fmt.Errorf("validate: hidden layer widths must be "+
				"positive, have(%v)", c.NetArch)
		}
	}

	if _, err := network.NewActivation(c.Activation); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if err := c.Init.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// Level returns the log level selected by Verbose
func (c Config) Level() zerolog.Level {
	switch c.Verbose {
	case 0:
		return zerolog.WarnLevel
	case 1:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
