package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/goppo/environment/classiccontrol/pendulum"
	"github.com/samuelfneumann/goppo/environment/frozenlake"
	"github.com/samuelfneumann/goppo/environment/gridescape"
)

type envFactory func(seed uint64, realTime bool,
	logger zerolog.Logger) (env.Environment, error)

var environments = map[string]envFactory{
	"cartpole": func(seed uint64, realTime bool,
		logger zerolog.Logger) (env.Environment, error) {
		opts := []cartpole.Option{cartpole.WithLogger(logger)}
		if realTime {
			opts = append(opts, cartpole.WithDelay(cartpole.RealTimeDelay))
		}
		return cartpole.New(seed, opts...), nil
	},

	"frozenlake": func(seed uint64, realTime bool,
		logger zerolog.Logger) (env.Environment, error) {
		opts := []frozenlake.Option{frozenlake.WithLogger(logger)}
		if realTime {
			opts = append(opts, frozenlake.WithDelay(cartpole.RealTimeDelay))
		}
		return frozenlake.New(frozenlake.DefaultMap, seed, opts...)
	},

	"pendulum": func(seed uint64, realTime bool,
		logger zerolog.Logger) (env.Environment, error) {
		opts := []pendulum.Option{pendulum.WithLogger(logger)}
		if realTime {
			opts = append(opts, pendulum.WithDelay(cartpole.RealTimeDelay))
		}
		return pendulum.New(seed, opts...), nil
	},

	"gridescape": func(seed uint64, realTime bool,
		logger zerolog.Logger) (env.Environment, error) {
		opts := []gridescape.Option{gridescape.WithLogger(logger)}
		if realTime {
			opts = append(opts, gridescape.WithDelay(cartpole.RealTimeDelay))
		}
		return gridescape.New(seed, opts...), nil
	},
}

// Environments returns the names of the available environments
func Environments() []string {
	names := make([]string, 0, len(environments))
	for name := range environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewEnvironment returns the environment with the given
// case-insensitive name
func NewEnvironment(name string, seed uint64, realTime bool,
	logger zerolog.Logger) (env.Environment, error) {
	f, ok := environments[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("newenvironment: unknown environment %q, "+
			"want one of %v", name, Environments())
	}
	e, err := f(seed, realTime, logger.With().Str("env", name).Logger())
	if err != nil {
		return nil, fmt.Errorf("newenvironment: %v", err)
	}
	return e, nil
}
