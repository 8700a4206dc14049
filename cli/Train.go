package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/agent/ppo"
	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/experiment"
	"github.com/samuelfneumann/goppo/experiment/checkpointer"
	"github.com/samuelfneumann/goppo/experiment/tracker"
	"github.com/samuelfneumann/goppo/experiment/trackers"
	"github.com/samuelfneumann/goppo/utils/floatutils"
	"github.com/samuelfneumann/goppo/utils/progressbar"
)

// Files written to the run directory by train
const (
	ConfigFile        = "config.yaml"
	ModelsFile        = "models.json"
	CheckpointPrefix  = "checkpoint"
	ReturnFile        = "return.bin"
	EpisodeLengthFile = "episode_length.bin"
	WmaFile           = "wma.bin"
	PlotFile          = "return.png"
)

// TrainCommand returns the command which trains a PPO agent
func TrainCommand() *cobra.Command {
	var configFile string
	var progress bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a PPO agent on an environment",
		Long: `Train a PPO agent, writing its config, checkpoints, final
models and learning curves to a new run directory under --out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt,
				syscall.SIGTERM)
			defer stop()

			dir, err := Train(ctx, cfg, progress, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}

	d := DefaultRunConfig()
	addRunFlags(cmd.Flags(), &configFile)
	cmd.Flags().Int("iterations", d.Iterations, "Training iterations")
	cmd.Flags().String("out", d.Out, "Directory for run outputs")
	cmd.Flags().Int("checkpoint", d.Checkpoint, "Checkpoint the models "+
		"every this many iterations, never if 0")
	cmd.Flags().Bool("plot", d.Plot, "Plot the learning curves after "+
		"training")
	cmd.Flags().BoolVar(&progress, "progress", false, "Show a progress bar")
	return cmd
}

// Train runs a training experiment described by cfg and returns the
// directory that its outputs were written to. A cancelled context
// stops training early, after which the models and data collected so
// far are still saved.
func Train(ctx context.Context, cfg RunConfig, progress bool,
	progressOut io.Writer) (string, error) {
	runID := uuid.New().String()
	logger := newLogger(cfg.LogLevel, runID)

	dir := filepath.Join(cfg.Out, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("train: %v", err)
	}
	if err := writeConfig(filepath.Join(dir, ConfigFile), cfg); err != nil {
		return "", fmt.Errorf("train: %v", err)
	}

	p, _, err := newTrainer(cfg, logger)
	if err != nil {
		return "", fmt.Errorf("train: %v", err)
	}

	ret := trackers.NewReturn(filepath.Join(dir, ReturnFile))
	length := trackers.NewEpisodeLength(filepath.Join(dir, EpisodeLengthFile))
	wma := trackers.NewWma(floatutils.DefaultWmaAlpha,
		filepath.Join(dir, WmaFile))

	var checkpointers []checkpointer.Checkpointer
	if cfg.Checkpoint > 0 {
		checkpointers = append(checkpointers, checkpointer.NewNStep(
			cfg.Checkpoint, p, checkpointer.FilenameEnumerator(0,
				filepath.Join(dir, CheckpointPrefix), ".json")))
	}

	if progress {
		total := cfg.Iterations * cfg.PPO.NSteps
		if cfg.PPO.MaxTimesteps > 0 && cfg.PPO.MaxTimesteps < total {
			total = cfg.PPO.MaxTimesteps
		}
		progressbar.New(progressOut, 50, total).Track(p.Events(),
			cfg.PPO.NSteps/10)
	}

	exp := experiment.NewOnline(p, cfg.Iterations,
		[]tracker.Tracker{ret, length, wma}, checkpointers, logger)

	runErr := exp.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return "", fmt.Errorf("train: %v", runErr)
	} else if runErr != nil {
		logger.Warn().Int("iteration", p.Iteration()).
			Msg("training interrupted, saving progress")
	}

	if err := exp.Save(); err != nil {
		return "", fmt.Errorf("train: %v", err)
	}
	models, err := p.ExportModels()
	if err != nil {
		return "", fmt.Errorf("train: %v", err)
	}
	if err := models.Save(filepath.Join(dir, ModelsFile)); err != nil {
		return "", fmt.Errorf("train: %v", err)
	}

	if cfg.Plot && len(ret.Data()) > 0 {
		err := tracker.Plot(filepath.Join(dir, PlotFile),
			fmt.Sprintf("PPO on %v", cfg.Env), "Episode", "Return",
			map[string][]float64{
				"Return": ret.Data(),
				"WMA":    wma.Data(),
			})
		if err != nil {
			return "", fmt.Errorf("train: %v", err)
		}
	}

	logger.Info().
		Int("timesteps", p.NumTimesteps()).
		Int("episodes", p.NumEpisodes()).
		Float64("wma", wma.Value()).
		Str("dir", dir).
		Msg("finished training")
	return dir, nil
}

// newTrainer builds the environment and trainer of a run, loading
// cfg.Models if set. The returned environment is the one the trainer
// steps.
func newTrainer(cfg RunConfig, logger zerolog.Logger) (*ppo.PPO,
	env.Environment, error) {
	e, err := NewEnvironment(cfg.Env, cfg.EnvSeed, cfg.RealTime, logger)
	if err != nil {
		return nil, nil, err
	}
	p, err := ppo.New(e, cfg.PPO, ppo.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	if cfg.Models != "" {
		models, err := agent.LoadModels(cfg.Models)
		if err != nil {
			return nil, nil, err
		}
		if err := p.ImportModels(models); err != nil {
			return nil, nil, err
		}
		logger.Info().Str("models", cfg.Models).Msg("loaded models")
	}
	return p, e, nil
}
