package checkpointer

import (
	"fmt"

	"github.com/samuelfneumann/goppo/event"
)

// nStep implements checkpointing every N training iterations
type nStep struct {
	interval int
	object   Exporter // Object to save

	// filename returns the string filename of the file to save the
	// models in.
	//
	// If each checkpoint should be saved in a separate file with
	// each file having an incremented number as a suffix (e.g.
	// models-0001.json, ..., models-000K.json), then simply use the
	// static function FilenameEnumerator, which will return a function
	// that will enumerate filenames.
	//
	// Otherwise, if each checkpoint should be saved in a separate file,
	// but the filename does not matter, use the static function
	// FileTimer to generate the required naming function. For example:
	//
	// n := NewNStep(10, trainer, FileTimer("models", ".json"))
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n training
// iterations
func NewNStep(n int, object Exporter, filename func() string) Checkpointer {
	if n <= 0 {
		panic(fmt.Sprintf("newnstep: interval must be positive, have(%d)", n))
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint saves the models of the Checkpointer's tracked object as
// JSON if the iteration is a multiple of the interval
func (n *nStep) Checkpoint(d event.TrainingData) error {
	if d.Iteration%n.interval != 0 {
		return nil
	}

	models, err := n.object.ExportModels()
	if err != nil {
		return fmt.Errorf("checkpoint: could not export models: %v", err)
	}
	return models.Save(n.filename())
}
