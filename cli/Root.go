// Package cli implements the goppo command line interface
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// EnvPrefix is the prefix of environment variables that override
// configuration values, e.g. GOPPO_ITERATIONS or GOPPO_PPO_NSTEPS
const EnvPrefix = "GOPPO"

// GetRootCommand returns the root command with the train and eval
// subcommands attached
func GetRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "goppo",
		Short: "Train and evaluate PPO agents",
		Long: `goppo trains Proximal Policy Optimization agents on small
control environments and evaluates saved models.

Configuration is read from a YAML file, GOPPO_ environment variables
and command line flags, with flags taking precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadDotEnv(envFile, cmd.Flags().Changed("env-file"))
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"File of environment variables to load before reading the config")

	cmd.AddCommand(TrainCommand())
	cmd.AddCommand(EvalCommand())
	return cmd
}

// loadDotEnv loads the given .env file. A missing file is only an
// error if it was requested explicitly.
func loadDotEnv(filename string, required bool) error {
	if err := godotenv.Load(filename); err != nil && required {
		return fmt.Errorf("could not load %v: %v", filename, err)
	}
	return nil
}
