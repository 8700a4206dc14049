// Package ppo implements the Proximal Policy Optimization algorithm
// with a clipped surrogate objective, generalized advantage estimation
// and KL based early stopping of the policy update. This
// implementation is adapted from:
//
// https://spinningup.openai.com/en/latest/algorithms/ppo.html
// https://github.com/openai/spinningup/blob/master/spinup/algos/tf1/ppo/ppo.py
package ppo

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/buffer/gae"
	"github.com/samuelfneumann/goppo/distribution"
	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/event"
	"github.com/samuelfneumann/goppo/network"
	"github.com/samuelfneumann/goppo/utils/floatutils"
)

// KLMargin scales TargetKL to give the KL divergence above which the
// policy phase stops
const KLMargin = 1.5

// LogStdName is the name of the log standard deviation weight in the
// exported actor
const LogStdName = "logStd"

var (
	// ErrDiverged is returned when a loss or the KL divergence is not
	// finite. Training cannot recover from this.
	ErrDiverged = errors.New("training diverged")

	// ErrUnknownActionSpace is returned by New when no action
	// distribution exists for the environment's action space
	ErrUnknownActionSpace = distribution.ErrUnknownActionSpace
)

// Stats summarizes one call to Train
type Stats = event.Stats

// Option configures a PPO trainer
type Option func(*PPO)

// WithLogger sets the logger of the trainer. The level of the logger
// is overridden by Config.Verbose.
func WithLogger(l zerolog.Logger) Option {
	return func(p *PPO) { p.logger = l }
}

// WithApproximators sets the actor and critic instead of building
// them from the Config. The actor must output the parameters of the
// action distribution and the critic a single value.
func WithApproximators(actor, critic agent.Approximator) Option {
	return func(p *PPO) {
		p.actor = actor
		p.critic = critic
	}
}

// PPO trains a stochastic policy (actor) and a state value function
// (critic) on an environment. Each iteration collects a rollout of
// NSteps transitions with the current policy, which may span several
// episodes, and then optimizes the policy for up to NEpochs epochs on
// the clipped surrogate objective followed by NEpochs epochs of value
// regression on the discounted returns.
//
// The trainer exclusively owns its buffer, approximators and
// environment while learning and is not safe for concurrent use.
type PPO struct {
	env    env.Environment
	space  env.ActionSpace
	config Config
	logger zerolog.Logger
	events *event.Lifecycle

	actor  agent.Approximator
	critic agent.Approximator
	dist   distribution.Distribution

	// State independent log standard deviation of Gaussian policies,
	// nil for categorical policies
	logStd *agent.Parameter

	buffer   *gae.Buffer
	features int

	lastObservation []float64
	numTimesteps    int
	numEpisodes     int
	iteration       int
	sumReturn       float64

	// Counters of the current rollout, reset by CollectRollouts
	rolloutEpisodes int
	rolloutReturn   float64
}

// New creates and returns a new PPO trainer for environment e
func New(e env.Environment, c Config, opts ...Option) (*PPO, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	c.NetArch.Pi = append([]int(nil), c.NetArch.Pi...)
	c.NetArch.Vf = append([]int(nil), c.NetArch.Vf...)

	space := e.ActionSpace()
	features := e.ObservationSpace().Len()
	if features <= 0 {
		return nil, fmt.Errorf("new: observation space %v has no features",
			e.ObservationSpace().Shape)
	}

	p := &PPO{
		env:      e,
		space:    space,
		config:   c,
		logger:   zerolog.New(os.Stderr).With().Timestamp().Logger(),
		events:   event.NewLifecycle(),
		features: features,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Level(c.Level()).With().Str("component", "ppo").
		Logger()

	var logStd []float64
	if space.IsContinuous() {
		p.logStd = agent.NewParameter(LogStdName, space.Dims())
		logStd = p.logStd.Data
	}
	dist, err := distribution.New(space, logStd, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	p.dist = dist

	if p.actor == nil || p.critic == nil {
		if err := p.buildApproximators(); err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
	}

	if p.actor.Inputs() != features || p.actor.Outputs() != dist.ParamSize() {
		return nil, fmt.Errorf("new: actor maps %d inputs to %d outputs, "+
			"want %d to %d", p.actor.Inputs(), p.actor.Outputs(), features,
			dist.ParamSize())
	}
	if p.critic.Inputs() != features || p.critic.Outputs() != 1 {
		return nil, fmt.Errorf("new: critic maps %d inputs to %d outputs, "+
			"want %d to 1", p.critic.Inputs(), p.critic.Outputs(), features)
	}

	p.buffer = gae.New(features, space.Dims(), c.NSteps, c.Lambda, c.Gamma)

	p.logger.Debug().
		Str("actionSpace", space.String()).
		Int("features", features).
		Str("distribution", dist.Kind().String()).
		Msg("created trainer")

	return p, nil
}

// buildApproximators creates gorgonia MLPs for the actor and critic
func (p *PPO) buildApproximators() error {
	act, err := network.NewActivation(p.config.Activation)
	if err != nil {
		return err
	}
	init, err := p.config.Init.Create()
	if err != nil {
		return err
	}

	policySolver, err := p.config.Solver.Create(p.config.PolicyLearningRate)
	if err != nil {
		return fmt.Errorf("could not create policy solver: %v", err)
	}
	p.actor, err = network.NewMLP(p.features, p.dist.ParamSize(),
		p.config.NetArch.Pi, act, init, policySolver)
	if err != nil {
		return fmt.Errorf("could not create actor: %v", err)
	}

	valueSolver, err := p.config.Solver.Create(p.config.ValueLearningRate)
	if err != nil {
		return fmt.Errorf("could not create value solver: %v", err)
	}
	p.critic, err = network.NewMLP(p.features, 1, p.config.NetArch.Vf, act,
		init, valueSolver)
	if err != nil {
		return fmt.Errorf("could not create critic: %v", err)
	}
	return nil
}

// Events returns the lifecycle channels of the trainer
func (p *PPO) Events() *event.Lifecycle {
	return p.events
}

// Config returns the configuration of the trainer
func (p *PPO) Config() Config {
	return p.config
}

// NumTimesteps returns the number of environment steps taken so far
func (p *PPO) NumTimesteps() int {
	return p.numTimesteps
}

// NumEpisodes returns the number of trajectories finished so far
func (p *PPO) NumEpisodes() int {
	return p.numEpisodes
}

// Iteration returns the number of rollouts collected by Learn
func (p *PPO) Iteration() int {
	return p.iteration
}

// LogStd returns the log standard deviation of a Gaussian policy, or
// nil for a categorical policy
func (p *PPO) LogStd() []float64 {
	if p.logStd == nil {
		return nil
	}
	out := make([]float64, p.logStd.Len())
	copy(out, p.logStd.Data)
	return out
}

// budgetReached returns whether the timestep budget has been used
func (p *PPO) budgetReached() bool {
	return p.config.MaxTimesteps > 0 && p.numTimesteps >= p.config.MaxTimesteps
}

// Learn runs iterations rounds of rollout collection and optimization.
// It returns early, without error, once MaxTimesteps environment steps
// have been taken.
func (p *PPO) Learn(ctx context.Context, iterations int) error {
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("learn: %w", err)
		}
		if p.budgetReached() {
			p.logger.Info().Int("timesteps", p.numTimesteps).
				Msg("timestep budget reached")
			return nil
		}

		p.events.RolloutStart.Emit(event.RolloutData{Iteration: p.iteration})
		if err := p.CollectRollouts(ctx); err != nil {
			return fmt.Errorf("learn: %w", err)
		}
		p.events.RolloutEnd.Emit(event.RolloutData{Iteration: p.iteration})
		p.iteration++

		p.events.TrainingStart.Emit(event.TrainingData{Iteration: p.iteration})
		stats, err := p.Train(ctx)
		if err != nil {
			return fmt.Errorf("learn: %w", err)
		}
		p.events.TrainingEnd.Emit(event.TrainingData{
			Iteration: p.iteration,
			Stats:     stats,
		})

		p.logger.Info().
			Int("iteration", p.iteration).
			Int("timesteps", p.numTimesteps).
			Int("episodes", p.numEpisodes).
			Float64("policyLoss", stats.PolicyLoss).
			Float64("valueLoss", stats.ValueLoss).
			Float64("kl", stats.KL).
			Int("policyEpochs", stats.PolicyEpochs).
			Msg("finished iteration")
	}
	return nil
}

// CollectRollouts fills the rollout buffer with NSteps transitions
// collected with the current policy. Every trajectory in the buffer is
// finished when CollectRollouts returns: terminal trajectories with a
// bootstrap value of 0 and the trajectory cut by the end of the rollout
// with the critic's estimate of the last observation. The environment
// is reset after every finished trajectory.
func (p *PPO) CollectRollouts(ctx context.Context) error {
	if p.lastObservation == nil {
		obs, err := p.env.Reset(ctx)
		if err != nil {
			return fmt.Errorf("collectrollouts: could not reset "+
				"environment: %w", err)
		}
		p.lastObservation = obs
	}
	p.buffer.Reset()
	p.rolloutEpisodes = 0
	p.rolloutReturn = 0

	nSteps := p.config.NSteps
	for step := 0; step < nSteps; step++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("collectrollouts: %w", err)
		}

		p.events.StepStart.Emit(event.StepStartData{Step: step, NSteps: nSteps})

		action, logProb, err := p.sample(p.lastObservation)
		if err != nil {
			return fmt.Errorf("collectrollouts: %w", err)
		}
		value, err := p.value(p.lastObservation)
		if err != nil {
			return fmt.Errorf("collectrollouts: %w", err)
		}
		if err := p.space.Validate(action); err != nil {
			return fmt.Errorf("collectrollouts: %w", err)
		}

		obs, reward, done, err := p.env.Step(ctx, action)
		if err != nil {
			return fmt.Errorf("collectrollouts: could not step "+
				"environment: %w", err)
		}

		if err := p.buffer.Add(p.lastObservation, action, reward, value,
			logProb); err != nil {
			return fmt.Errorf("collectrollouts: %w", err)
		}
		p.lastObservation = obs
		p.numTimesteps++
		p.sumReturn += reward
		p.rolloutReturn += reward

		budget := p.budgetReached()
		if done || step == nSteps-1 || budget {
			var bootstrap float64
			if !done {
				if bootstrap, err = p.value(obs); err != nil {
					return fmt.Errorf("collectrollouts: %w", err)
				}
			}
			p.buffer.FinishTrajectory(bootstrap)
			p.numEpisodes++
			p.rolloutEpisodes++

			p.logger.Debug().
				Int("timesteps", p.numTimesteps).
				Bool("done", done).
				Float64("bootstrap", bootstrap).
				Msg("finished trajectory")

			if p.lastObservation, err = p.env.Reset(ctx); err != nil {
				return fmt.Errorf("collectrollouts: could not reset "+
					"environment: %w", err)
			}
		}

		p.events.StepEnd.Emit(event.StepEndData{
			Step:      step,
			NSteps:    nSteps,
			Episodes:  p.numEpisodes,
			Reward:    reward,
			Done:      done,
			Value:     value,
			SumReturn: p.sumReturn,

			RolloutEpisodes: p.rolloutEpisodes,
			RolloutReturn:   p.rolloutReturn,
		})

		if budget {
			break
		}
	}
	return nil
}

// Train optimizes the actor and critic on the rollout in the buffer.
// The policy phase runs up to NEpochs epochs of the clipped surrogate
// objective and stops early once the approximate KL divergence between
// the rollout policy and the updated policy exceeds KLMargin TargetKL.
// The value phase always runs NEpochs epochs.
func (p *PPO) Train(ctx context.Context) (Stats, error) {
	var stats Stats

	batch, err := p.buffer.Get()
	if err != nil {
		return stats, fmt.Errorf("train: %w", err)
	}

	surrogate := &agent.ClippedSurrogate{
		Distribution: p.dist.Kind(),
		Batch:        batch.Len,
		Observations: batch.Observations,
		Actions:      batch.Actions,
		OldLogProbs:  batch.LogProbs,
		Advantages:   batch.Advantages,
		ClipRatio:    p.config.ClipRatio,
		LogStd:       p.logStd,
	}

	maxKL := KLMargin * p.config.TargetKL
	for epoch := 0; epoch < p.config.NEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("train: %w", err)
		}

		grads, err := p.actor.ComputeGradients(surrogate)
		if err != nil {
			return stats, fmt.Errorf("train: could not compute policy "+
				"gradients: %w", err)
		}
		if !floatutils.AllFinite(grads.Loss()) {
			return stats, fmt.Errorf("train: %w: policy loss %v at epoch %d",
				ErrDiverged, grads.Loss(), epoch)
		}
		if err := p.actor.ApplyGradients(grads); err != nil {
			return stats, fmt.Errorf("train: could not apply policy "+
				"gradients: %w", err)
		}
		stats.PolicyLoss = grads.Loss()
		stats.PolicyEpochs++

		kl, err := p.approxKL(batch)
		if err != nil {
			return stats, fmt.Errorf("train: %w", err)
		}
		if !floatutils.AllFinite(kl) {
			return stats, fmt.Errorf("train: %w: kl %v at epoch %d",
				ErrDiverged, kl, epoch)
		}
		stats.KL = kl

		p.logger.Debug().
			Int("epoch", epoch).
			Float64("policyLoss", stats.PolicyLoss).
			Float64("kl", kl).
			Msg("policy epoch")

		if kl > maxKL {
			stats.EarlyStopped = true
			p.logger.Info().
				Int("epoch", epoch).
				Float64("kl", kl).
				Float64("maxKL", maxKL).
				Msg("early stopping policy update")
			break
		}
	}

	mse := &agent.MeanSquaredError{
		Batch:        batch.Len,
		Observations: batch.Observations,
		Targets:      batch.Returns,
	}
	for epoch := 0; epoch < p.config.NEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("train: %w", err)
		}

		grads, err := p.critic.ComputeGradients(mse)
		if err != nil {
			return stats, fmt.Errorf("train: could not compute value "+
				"gradients: %w", err)
		}
		if !floatutils.AllFinite(grads.Loss()) {
			return stats, fmt.Errorf("train: %w: value loss %v at epoch %d",
				ErrDiverged, grads.Loss(), epoch)
		}
		if err := p.critic.ApplyGradients(grads); err != nil {
			return stats, fmt.Errorf("train: could not apply value "+
				"gradients: %w", err)
		}
		stats.ValueLoss = grads.Loss()
		stats.ValueEpochs++

		p.logger.Debug().
			Int("epoch", epoch).
			Float64("valueLoss", stats.ValueLoss).
			Msg("value epoch")
	}

	return stats, nil
}

// approxKL returns the approximate KL divergence between the policy
// that collected batch and the current policy
func (p *PPO) approxKL(batch gae.Batch) (float64, error) {
	params, err := p.actor.Predict(batch.Observations, batch.Len)
	if err != nil {
		return 0, fmt.Errorf("approxkl: could not predict: %v", err)
	}
	newLogProbs := p.dist.LogProbs(params, batch.Actions, batch.Len)
	return agent.ApproxKL(batch.LogProbs, newLogProbs), nil
}

// sample draws an action from the policy at obs and returns it with
// its log-probability
func (p *PPO) sample(obs []float64) ([]float64, float64, error) {
	params, err := p.actor.Predict(obs, 1)
	if err != nil {
		return nil, 0, fmt.Errorf("sample: could not predict: %v", err)
	}
	if !floatutils.AllFinite(params...) {
		return nil, 0, fmt.Errorf("sample: %w: policy output %v", ErrDiverged,
			params)
	}
	action := p.dist.Sample(params)
	return action, p.dist.LogProb(params, action), nil
}

// value returns the critic's estimate of the value of obs
func (p *PPO) value(obs []float64) (float64, error) {
	v, err := p.critic.Predict(obs, 1)
	if err != nil {
		return 0, fmt.Errorf("value: could not predict: %v", err)
	}
	return v[0], nil
}

// PredictAction samples an action from the current policy at
// observation obs
func (p *PPO) PredictAction(obs []float64) ([]float64, error) {
	if len(obs) != p.features {
		return nil, fmt.Errorf("predictaction: illegal observation length"+
			"\n\twant(%d)\n\thave(%d)", p.features, len(obs))
	}
	action, _, err := p.sample(obs)
	if err != nil {
		return nil, fmt.Errorf("predictaction: %w", err)
	}
	return action, nil
}

// PredictMode returns the most likely action of the current policy at
// observation obs: the arg max logit of categorical policies and the
// mean of Gaussian policies
func (p *PPO) PredictMode(obs []float64) ([]float64, error) {
	if len(obs) != p.features {
		return nil, fmt.Errorf("predictmode: illegal observation length"+
			"\n\twant(%d)\n\thave(%d)", p.features, len(obs))
	}
	params, err := p.actor.Predict(obs, 1)
	if err != nil {
		return nil, fmt.Errorf("predictmode: could not predict: %v", err)
	}
	if !floatutils.AllFinite(params...) {
		return nil, fmt.Errorf("predictmode: %w: policy output %v",
			ErrDiverged, params)
	}
	return p.dist.Mode(params), nil
}
