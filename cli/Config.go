package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/samuelfneumann/goppo/agent/ppo"
)

// RunConfig is the resolved configuration of a train or eval run
type RunConfig struct {
	// Name of the environment, one of Environments
	Env string `yaml:"env" json:"env" mapstructure:"env"`

	// Seed of the environment
	EnvSeed uint64 `yaml:"envSeed" json:"envSeed" mapstructure:"envSeed"`

	// Whether environment steps are slowed down to real time
	RealTime bool `yaml:"realTime" json:"realTime" mapstructure:"realTime"`

	// Number of training iterations
	Iterations int `yaml:"iterations" json:"iterations" mapstructure:"iterations"`

	// Directory that models, checkpoints, tracked data and plots are
	// written to
	Out string `yaml:"out" json:"out" mapstructure:"out"`

	// Models are checkpointed every Checkpoint iterations, never if 0
	Checkpoint int `yaml:"checkpoint" json:"checkpoint" mapstructure:"checkpoint"`

	// Whether to plot the learning curves after training
	Plot bool `yaml:"plot" json:"plot" mapstructure:"plot"`

	// Models file to load before training or evaluating
	Models string `yaml:"models" json:"models" mapstructure:"models"`

	// Evaluation episodes and their maximum length
	Episodes int `yaml:"episodes" json:"episodes" mapstructure:"episodes"`
	Horizon  int `yaml:"horizon" json:"horizon" mapstructure:"horizon"`

	// Whether evaluation takes the most likely action instead of
	// sampling
	Deterministic bool `yaml:"deterministic" json:"deterministic" mapstructure:"deterministic"`

	LogLevel string `yaml:"logLevel" json:"logLevel" mapstructure:"logLevel"`

	PPO ppo.Config `yaml:"ppo" json:"ppo" mapstructure:"ppo"`
}

// DefaultRunConfig returns the default run configuration
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Env:        "cartpole",
		Iterations: 50,
		Out:        "runs",
		Checkpoint: 10,
		Episodes:   10,
		Horizon:    1000,
		LogLevel:   "info",
		PPO:        ppo.Default(),
	}
}

// Validate checks the run configuration
func (c RunConfig) Validate() error {
	if _, ok := environments[strings.ToLower(c.Env)]; !ok {
		return fmt.Errorf("validate: unknown environment %q, want one of %v",
			c.Env, Environments())
	}
	switch {
	case c.Iterations < 0:
		return fmt.Errorf("validate: iterations must be non-negative, "+
			"have(%d)", c.Iterations)
	case c.Checkpoint < 0:
		return fmt.Errorf("validate: checkpoint interval must be "+
			"non-negative, have(%d)", c.Checkpoint)
	case c.Episodes <= 0:
		return fmt.Errorf("validate: episodes must be positive, have(%d)",
			c.Episodes)
	case c.Horizon <= 0:
		return fmt.Errorf("validate: horizon must be positive, have(%d)",
			c.Horizon)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if err := c.PPO.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// loadConfig resolves the run configuration from the defaults, the
// optional YAML file, GOPPO_ environment variables and flags, in
// increasing order of precedence
func loadConfig(configFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return RunConfig{}, fmt.Errorf("loadconfig: %v", err)
	}
	for key, flag := range bindAliases {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return RunConfig{}, fmt.Errorf("loadconfig: %v", err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return RunConfig{}, fmt.Errorf("loadconfig: %v", err)
		}
	}

	if err := setDefaults(v, DefaultRunConfig()); err != nil {
		return RunConfig{}, fmt.Errorf("loadconfig: %v", err)
	}

	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RunConfig{}, fmt.Errorf("loadconfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, fmt.Errorf("loadconfig: %v", err)
	}
	return cfg, nil
}

// setDefaults registers every field of cfg as a viper default under
// its YAML key, so that values from other sources replace the defaults
// instead of being decoded on top of them
func setDefaults(v *viper.Viper, cfg RunConfig) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("setdefaults: %v", err)
	}
	var defaults map[string]interface{}
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return fmt.Errorf("setdefaults: %v", err)
	}
	setDefaultsFrom(v, "", defaults)
	return nil
}

func setDefaultsFrom(v *viper.Viper, prefix string, m map[string]interface{}) {
	for k, value := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := value.(map[string]interface{}); ok {
			setDefaultsFrom(v, key, sub)
			continue
		}
		v.SetDefault(key, value)
	}
}

// writeConfig saves the resolved configuration as YAML
func writeConfig(filename string, cfg RunConfig) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("writeconfig: %v", err)
	}
	if err := os.WriteFile(filename, out, 0o644); err != nil {
		return fmt.Errorf("writeconfig: %v", err)
	}
	return nil
}

// newLogger returns the logger of a run, tagging every line with the
// run id
func newLogger(level, runID string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().
		Str("run", runID).Logger()
}
