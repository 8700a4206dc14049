package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	env "github.com/samuelfneumann/goppo/environment"
)

// EvalCommand returns the command which evaluates saved models
func EvalCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate saved PPO models on an environment",
		Long: `Load the models given by --models and report the mean
undiscounted return of the policy over --episodes episodes. Actions are
sampled unless --deterministic is set.
The network architecture in the config must match the saved models.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.Models == "" {
				return fmt.Errorf("eval: --models is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt,
				syscall.SIGTERM)
			defer stop()

			logger := newLogger(cfg.LogLevel, uuid.New().String())
			p, e, err := newTrainer(cfg, logger)
			if err != nil {
				return fmt.Errorf("eval: %v", err)
			}

			policy := p.PredictAction
			if cfg.Deterministic {
				policy = p.PredictMode
			}
			returns, err := Evaluate(ctx, e, policy, cfg.Episodes,
				cfg.Horizon)
			if err != nil {
				return fmt.Errorf("eval: %v", err)
			}
			mean, std := stat.MeanStdDev(returns, nil)
			logger.Info().Int("episodes", len(returns)).Float64("mean", mean).
				Float64("std", std).Msg("finished evaluation")
			fmt.Fprintf(cmd.OutOrStdout(), "mean return: %.4f (std %.4f) "+
				"over %d episodes\n", mean, std, len(returns))
			return nil
		},
	}

	d := DefaultRunConfig()
	addRunFlags(cmd.Flags(), &configFile)
	cmd.Flags().Int("episodes", d.Episodes, "Episodes to evaluate")
	cmd.Flags().Int("horizon", d.Horizon, "Maximum steps per episode")
	cmd.Flags().Bool("deterministic", d.Deterministic, "Take the most "+
		"likely action instead of sampling")
	return cmd
}

// Evaluate runs episodes episodes of at most horizon steps on e,
// selecting actions with policy, and returns the undiscounted return
// of each episode
func Evaluate(ctx context.Context, e env.Environment,
	policy func([]float64) ([]float64, error), episodes,
	horizon int) ([]float64, error) {
	returns := make([]float64, 0, episodes)

	for i := 0; i < episodes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}
		obs, err := e.Reset(ctx)
		if err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}

		var ret float64
		for t := 0; t < horizon; t++ {
			action, err := policy(obs)
			if err != nil {
				return nil, fmt.Errorf("evaluate: %w", err)
			}
			var reward float64
			var done bool
			obs, reward, done, err = e.Step(ctx, action)
			if err != nil {
				return nil, fmt.Errorf("evaluate: %w", err)
			}
			ret += reward
			if done {
				break
			}
		}
		returns = append(returns, ret)
	}
	return returns, nil
}
