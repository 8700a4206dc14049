// Package initwfn implements functionality to describe Gorgonia InitWFn
// by name so that they can be read from configuration files.
package initwfn

import (
	"fmt"
	"strings"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of InitWFn that are available
type Type string

// Available InitWFn types
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	HeU      Type = "HeU"
	HeN      Type = "HeN"
	Uniform  Type = "Uniform"
	Gaussian Type = "Gaussian"
	Zeroes   Type = "Zeroes"
	Ones     Type = "Ones"
	Constant Type = "Constant"
)

var types = []Type{GlorotU, GlorotN, HeU, HeN, Uniform, Gaussian, Zeroes,
	Ones, Constant}

// Config describes a weight initialization scheme. Only the fields
// used by Type are read:
//
//	GlorotU, GlorotN, HeU, HeN	Gain
//	Uniform						Low, High
//	Gaussian					Mean, StdDev
//	Constant					Value
type Config struct {
	Type   Type    `yaml:"type" json:"type" mapstructure:"type"`
	Gain   float64 `yaml:"gain" json:"gain" mapstructure:"gain"`
	Low    float64 `yaml:"low" json:"low" mapstructure:"low"`
	High   float64 `yaml:"high" json:"high" mapstructure:"high"`
	Mean   float64 `yaml:"mean" json:"mean" mapstructure:"mean"`
	StdDev float64 `yaml:"stddev" json:"stddev" mapstructure:"stddev"`
	Value  float64 `yaml:"value" json:"value" mapstructure:"value"`
}

// Default returns the Glorot uniform initialization with unit gain
func Default() Config {
	return Config{Type: GlorotU, Gain: 1.0}
}

// ParseType returns the InitWFn Type with the given case-insensitive
// name
func ParseType(name string) (Type, error) {
	for _, t := range types {
		if strings.EqualFold(name, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("parsetype: unknown weight initializer %q", name)
}

// Validate checks the configuration of the InitWFn type
func (c Config) Validate() error {
	t, err := ParseType(string(c.Type))
	if err != nil {
		return fmt.Errorf("validate: %v", err)
	}

	switch t {
	case GlorotU, GlorotN, HeU, HeN:
		if c.Gain <= 0 {
			return fmt.Errorf("validate: %v gain must be positive, have(%v)",
				t, c.Gain)
		}
	case Uniform:
		if c.Low >= c.High {
			return fmt.Errorf("validate: uniform low %v must be less than "+
				"high %v", c.Low, c.High)
		}
	case Gaussian:
		if c.StdDev <= 0 {
			return fmt.Errorf("validate: gaussian standard deviation must "+
				"be positive, have(%v)", c.StdDev)
		}
	}
	return nil
}

// Create returns the Gorgonia InitWFn described by the Config
func (c Config) Create() (G.InitWFn, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	t, _ := ParseType(string(c.Type))
	switch t {
	case GlorotU:
		return G.GlorotU(c.Gain), nil
	case GlorotN:
		return G.GlorotN(c.Gain), nil
	case HeU:
		return G.HeU(c.Gain), nil
	case HeN:
		return G.HeN(c.Gain), nil
	case Uniform:
		return G.Uniform(c.Low, c.High), nil
	case Gaussian:
		return G.Gaussian(c.Mean, c.StdDev), nil
	case Zeroes:
		return G.Zeroes(), nil
	case Ones:
		return G.Ones(), nil
	default:
		return G.ValuesOf(c.Value), nil
	}
}

// String implements the fmt.Stringer interface
func (c Config) String() string {
	return fmt.Sprintf("{%v InitWFn: gain=%v low=%v high=%v mean=%v "+
		"stddev=%v value=%v}", c.Type, c.Gain, c.Low, c.High, c.Mean,
		c.StdDev, c.Value)
}
