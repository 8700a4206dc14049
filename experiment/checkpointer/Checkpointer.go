// Package checkpointer implements functionality for periodically
// saving the models of a training loop
package checkpointer

import (
	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/event"
)

// Exporter is an object whose models can be checkpointed
type Exporter interface {
	ExportModels() (*agent.ModelsData, error)
}

// Checkpointer checkpoints/saves models at the end of training
// iterations
type Checkpointer interface {
	Checkpoint(event.TrainingData) error
}
