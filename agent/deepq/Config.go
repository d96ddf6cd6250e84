package deepq

import (
	"github.com/pkg/errors"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	"github.com/samuelfneumann/rltrain/initwfn"
	"github.com/samuelfneumann/rltrain/network"
	"github.com/samuelfneumann/rltrain/solver"
)

// Config implements a configuration for a DeepQ agent
type Config struct {
	// Action value network
	HiddenSizes []int            `mapstructure:"hidden_sizes"`
	Activations []string         `mapstructure:"activations"`
	Solver      *solver.Solver   `mapstructure:"solver"`
	InitWFn     *initwfn.InitWFn `mapstructure:"init_wfn"`

	// Experience replay
	Capacity      int `mapstructure:"capacity"`
	BatchSize     int `mapstructure:"batch_size"`
	MinBufferSize int `mapstructure:"min_buffer_size"` // Train once exceeded

	Gamma      float64 `mapstructure:"gamma"`
	TrainEvery int     `mapstructure:"train_every"` // Steps between updates

	// Target network updates
	TargetSyncPeriod int     `mapstructure:"target_sync_period"`
	Tau              float64 `mapstructure:"tau"` // Polyak averaging constant

	// Exploration
	EpsilonStart      float64 `mapstructure:"epsilon_start"`
	EpsilonMin        float64 `mapstructure:"epsilon_min"`
	EpsilonDecaySteps int     `mapstructure:"epsilon_decay_steps"`
	EvalEpsilon       float64 `mapstructure:"eval_epsilon"`
}

// DefaultConfig returns the configuration used to train DeepQ agents on
// Cartpole
func DefaultConfig() Config {
	return Config{
		HiddenSizes:       []int{32, 16},
		Activations:       []string{"relu", "relu"},
		Solver:            solver.Must(solver.NewDefaultAdam(0.00025, 1)),
		InitWFn:           initwfn.NewGlorotU(1.0),
		Capacity:          10000,
		BatchSize:         64,
		MinBufferSize:     1000,
		Gamma:             0.99,
		TrainEvery:        1,
		TargetSyncPeriod:  100,
		Tau:               1.0,
		EpsilonStart:      1.0,
		EpsilonMin:        0.025,
		EpsilonDecaySteps: 75000,
		EvalEpsilon:       0.01,
	}
}

// Validate checks a Config to ensure it is a valid configuration of a
// DeepQ agent.
func (c Config) Validate() error {
	switch {
	case c.Solver == nil || c.InitWFn == nil:
		return agent.NewConfigurationError("validate", "solver and "+
			"weight initializer must be set")
	case len(c.HiddenSizes) != len(c.Activations):
		return agent.NewConfigurationError("validate", "invalid number of "+
			"activations \n\twant(%v) \n\thave(%v)", len(c.HiddenSizes),
			len(c.Activations))
	case c.Capacity <= 0:
		return agent.NewConfigurationError("validate", "capacity must be "+
			"positive \n\thave(%v)", c.Capacity)
	case c.BatchSize <= 0:
		return agent.NewConfigurationError("validate", "batch size must be "+
			"positive \n\thave(%v)", c.BatchSize)
	case c.MinBufferSize < 0 || c.MinBufferSize >= c.Capacity:
		return agent.NewConfigurationError("validate", "minimum buffer "+
			"size must be in [0, %v) \n\thave(%v)", c.Capacity,
			c.MinBufferSize)
	case c.Gamma < 0 || c.Gamma > 1:
		return agent.NewConfigurationError("validate", "discount must be "+
			"in [0, 1] \n\thave(%v)", c.Gamma)
	case c.TrainEvery < 1:
		return agent.NewConfigurationError("validate", "updates must "+
			"happen at positive step intervals \n\thave(%v)", c.TrainEvery)
	case c.TargetSyncPeriod < 1:
		return agent.NewConfigurationError("validate", "target networks "+
			"must be updated at positive step intervals \n\thave(%v)",
			c.TargetSyncPeriod)
	case c.Tau < 0 || c.Tau > 1:
		return agent.NewConfigurationError("validate", "tau must be in "+
			"[0, 1] \n\thave(%v)", c.Tau)
	case c.EvalEpsilon < 0 || c.EvalEpsilon > 1:
		return agent.NewConfigurationError("validate", "evaluation "+
			"epsilon must be in [0, 1] \n\thave(%v)", c.EvalEpsilon)
	case c.EpsilonStart > 1 || c.EpsilonMin < 0:
		return agent.NewConfigurationError("validate", "epsilon must be "+
			"in [0, 1] \n\thave([%v, %v])", c.EpsilonMin, c.EpsilonStart)
	}
	return nil
}

// CreateAgent creates a new DeepQ agent based on the configuration,
// using multi-headed MLPs as action value functions. Online network
// weights are drawn from the configured initializer seeded with seed.
func (c Config) CreateAgent(e env.Environment, seed uint64) (*DeepQ, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	activations, err := network.ParseActivations(c.Activations)
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}

	s, err := c.Solver.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}
	online, err := network.NewMultiHeadMLP(
		e.ObservationSpec().Len(),
		e.ActionSpec().Actions(),
		c.BatchSize,
		c.HiddenSizes,
		activations,
		c.InitWFn.Seeded(seed),
		s,
	)
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}

	// The target network is never trained
	target, err := network.NewMultiHeadMLP(
		e.ObservationSpec().Len(),
		e.ActionSpec().Actions(),
		c.BatchSize,
		c.HiddenSizes,
		activations,
		initwfn.NewZeroes(),
		nil,
	)
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}

	return New(e, c, online, target, seed)
}
