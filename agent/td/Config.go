package td

import (
	"github.com/pkg/errors"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	"github.com/samuelfneumann/rltrain/initwfn"
	"github.com/samuelfneumann/rltrain/network"
	"github.com/samuelfneumann/rltrain/solver"
)

// Config implements a configuration for a semi-gradient TD(0) agent
type Config struct {
	HiddenSizes []int            `mapstructure:"hidden_sizes"`
	Activations []string         `mapstructure:"activations"`
	Solver      *solver.Solver   `mapstructure:"solver"`
	InitWFn     *initwfn.InitWFn `mapstructure:"init_wfn"`
	Gamma       float64          `mapstructure:"gamma"`
}

// DefaultConfig returns the configuration used to learn the value
// function of the random walk
func DefaultConfig() Config {
	return Config{
		HiddenSizes: []int{16},
		Activations: []string{"relu"},
		Solver:      solver.Must(solver.NewDefaultAdam(0.001, 1)),
		InitWFn:     initwfn.NewGlorotU(1.0),
		Gamma:       0.99,
	}
}

// Validate checks a Config to ensure it is a valid configuration of a
// TD agent
func (c Config) Validate() error {
	if c.Solver == nil || c.InitWFn == nil {
		return agent.NewConfigurationError("validate", "solver and "+
			"weight initializer must be set")
	}
	if len(c.HiddenSizes) != len(c.Activations) {
		return agent.NewConfigurationError("validate", "invalid number of "+
			"activations \n\twant(%v) \n\thave(%v)", len(c.HiddenSizes),
			len(c.Activations))
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return agent.NewConfigurationError("validate", "discount must be "+
			"in [0, 1] \n\thave(%v)", c.Gamma)
	}
	return nil
}

// CreateAgent creates a new TD agent based on the configuration, with
// an MLP state value function
func (c Config) CreateAgent(e env.Environment, seed uint64) (*TD, error) {
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

	value, err := network.NewMultiHeadMLP(e.ObservationSpec().Len(), 1, 1,
		c.HiddenSizes, activations, c.InitWFn.Seeded(seed), s)
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}
	return New(e, c, value, seed)
}
