// Package checkpointer implements Checkpointers, which periodically
// save the learned parameters of agents during an experiment
package checkpointer

import (
	"github.com/samuelfneumann/rltrain/agent"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

// Checkpointer checkpoints/saves objects based on timestep.TimeSteps.
// Checkpoint must be called on every environment TimeStep after the
// first of each episode.
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}

// Saveable is an object that can be saved to a file
type Saveable = agent.Saver
