package ppo

import (
	"fmt"

	"github.com/samuelfneumann/goppo/agent"
)

// ExportModels returns snapshots of the actor and critic. For Gaussian
// policies the log standard deviation is appended to the actor's
// weights under the name LogStdName.
func (p *PPO) ExportModels() (*agent.ModelsData, error) {
	actor, err := p.actor.Export()
	if err != nil {
		return nil, fmt.Errorf("exportmodels: could not export actor: %v", err)
	}
	critic, err := p.critic.Export()
	if err != nil {
		return nil, fmt.Errorf("exportmodels: could not export critic: %v",
			err)
	}

	if p.logStd != nil {
		params, err := agent.DecodeWeights(actor.WeightSpecs, actor.WeightData)
		if err != nil {
			return nil, fmt.Errorf("exportmodels: %v", err)
		}
		logStd := agent.NewParameter(LogStdName, p.logStd.Shape...)
		copy(logStd.Data, p.logStd.Data)

		actor.WeightSpecs, actor.WeightData = agent.EncodeWeights(
			append(params, logStd))
	}

	return &agent.ModelsData{Actor: actor, Critic: critic}, nil
}

// ImportModels overwrites the actor, critic and log standard deviation
// with those in models. If any of them cannot be imported, the trainer
// is left unchanged.
func (p *PPO) ImportModels(models *agent.ModelsData) error {
	if models == nil || models.Actor == nil || models.Critic == nil {
		return fmt.Errorf("importmodels: actor and critic are required")
	}

	actor := *models.Actor
	params, err := agent.DecodeWeights(actor.WeightSpecs, actor.WeightData)
	if err != nil {
		return fmt.Errorf("importmodels: actor: %v", err)
	}

	var logStd *agent.Parameter
	if n := len(params); n > 0 && params[n-1].Name == LogStdName {
		logStd = params[n-1]
		actor.WeightSpecs, actor.WeightData = agent.EncodeWeights(
			params[:n-1])
	}
	switch {
	case p.logStd != nil && logStd == nil:
		return fmt.Errorf("importmodels: actor has no %v weight",
			LogStdName)
	case p.logStd == nil && logStd != nil:
		return fmt.Errorf("importmodels: categorical actor cannot have a "+
			"%v weight", LogStdName)
	case p.logStd != nil && logStd.Len() != p.logStd.Len():
		return fmt.Errorf("importmodels: %v has %d values, want %d",
			LogStdName, logStd.Len(), p.logStd.Len())
	}

	previous, err := p.actor.Export()
	if err != nil {
		return fmt.Errorf("importmodels: could not snapshot actor: %v", err)
	}
	if err := p.actor.Import(&actor); err != nil {
		return fmt.Errorf("importmodels: actor: %v", err)
	}
	if err := p.critic.Import(models.Critic); err != nil {
		if restoreErr := p.actor.Import(previous); restoreErr != nil {
			return fmt.Errorf("importmodels: critic: %v (could not restore "+
				"actor: %v)", err, restoreErr)
		}
		return fmt.Errorf("importmodels: critic: %v", err)
	}

	if logStd != nil {
		copy(p.logStd.Data, logStd.Data)
	}
	return nil
}
