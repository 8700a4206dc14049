package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// addRunFlags adds the flags shared by train and eval. Flag defaults
// mirror DefaultRunConfig so that unset flags do not override values
// from the config file.
func addRunFlags(flags *pflag.FlagSet, configFile *string) {
	d := DefaultRunConfig()

	flags.StringVar(configFile, "config", "", "YAML config file")
	flags.String("env", d.Env, "Environment, one of "+
		strings.Join(Environments(), ", "))
	flags.Uint64("env-seed", d.EnvSeed, "Environment seed")
	flags.Bool("real-time", d.RealTime, "Slow environment steps down to "+
		"real time")
	flags.Uint64("seed", d.PPO.Seed, "Seed of the action distribution")
	flags.Int("verbose", d.PPO.Verbose, "Trainer verbosity (0, 1 or 2)")
	flags.String("models", d.Models, "Models file to load")
	flags.String("log-level", d.LogLevel, "Log level (debug, info, warn, "+
		"error)")
}

// bindAliases maps hyphenated flag names to their configuration keys
var bindAliases = map[string]string{
	"envSeed":     "env-seed",
	"realTime":    "real-time",
	"logLevel":    "log-level",
	"ppo.seed":    "seed",
	"ppo.verbose": "verbose",
}
