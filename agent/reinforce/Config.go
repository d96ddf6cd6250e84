package reinforce

import (
	"github.com/pkg/errors"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	"github.com/samuelfneumann/rltrain/initwfn"
	"github.com/samuelfneumann/rltrain/network"
	"github.com/samuelfneumann/rltrain/solver"
)

// Config implements a configuration for a Reinforce agent
type Config struct {
	PolicyHiddenSizes []int          `mapstructure:"policy_hidden_sizes"`
	PolicyActivations []string       `mapstructure:"policy_activations"`
	PolicySolver      *solver.Solver `mapstructure:"policy_solver"`

	BaselineHiddenSizes []int          `mapstructure:"baseline_hidden_sizes"`
	BaselineActivations []string       `mapstructure:"baseline_activations"`
	BaselineSolver      *solver.Solver `mapstructure:"baseline_solver"`

	// InitWFn initializes the weights of both networks
	InitWFn *initwfn.InitWFn `mapstructure:"init_wfn"`

	Gamma float64 `mapstructure:"gamma"`

	// BatchSize is the largest number of timesteps used in a single
	// gradient step. Longer episodes are split into multiple steps.
	BatchSize int `mapstructure:"batch_size"`
}

// DefaultConfig returns the configuration used to train Reinforce
// agents on Cartpole
func DefaultConfig() Config {
	return Config{
		PolicyHiddenSizes:   []int{64, 32},
		PolicyActivations:   []string{"relu", "relu"},
		PolicySolver:        solver.Must(solver.NewDefaultAdam(0.001, 1)),
		BaselineHiddenSizes: []int{64},
		BaselineActivations: []string{"relu"},
		BaselineSolver:      solver.Must(solver.NewDefaultAdam(0.001, 1)),
		InitWFn:             initwfn.NewGlorotU(1.0),
		Gamma:               0.99,
		BatchSize:           500,
	}
}

// Validate checks a Config to ensure it is a valid configuration of a
// Reinforce agent.
func (c Config) Validate() error {
	if c.PolicySolver == nil || c.BaselineSolver == nil || c.InitWFn == nil {
		return agent.NewConfigurationError("validate", "solvers and "+
			"weight initializer must be set")
	}
	if len(c.PolicyHiddenSizes) != len(c.PolicyActivations) {
		return agent.NewConfigurationError("validate", "invalid number of "+
			"policy activations \n\twant(%v) \n\thave(%v)",
			len(c.PolicyHiddenSizes), len(c.PolicyActivations))
	}
	if len(c.BaselineHiddenSizes) != len(c.BaselineActivations) {
		return agent.NewConfigurationError("validate", "invalid number of "+
			"baseline activations \n\twant(%v) \n\thave(%v)",
			len(c.BaselineHiddenSizes), len(c.BaselineActivations))
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return agent.NewConfigurationError("validate", "discount must be "+
			"in [0, 1] \n\thave(%v)", c.Gamma)
	}
	if c.BatchSize <= 0 {
		return agent.NewConfigurationError("validate", "batch size must be "+
			"positive \n\thave(%v)", c.BatchSize)
	}
	return nil
}

// CreateAgent creates a new Reinforce agent based on the configuration
// with a categorical MLP policy and an MLP baseline
func (c Config) CreateAgent(e env.Environment, seed uint64) (*Reinforce,
	error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	features := e.ObservationSpec().Len()

	policyActs, err := network.ParseActivations(c.PolicyActivations)
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}
	policySolver, err := c.PolicySolver.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}
	policy, err := network.NewCategoricalMLP(features,
		e.ActionSpec().Actions(), c.BatchSize, c.PolicyHiddenSizes,
		policyActs, c.InitWFn.Seeded(seed), policySolver, seed)
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}

	baselineActs, err := network.ParseActivations(c.BaselineActivations)
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}
	baselineSolver, err := c.BaselineSolver.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}
	baseline, err := network.NewMultiHeadMLP(features, 1, c.BatchSize,
		c.BaselineHiddenSizes, baselineActs, c.InitWFn.Seeded(seed+1),
		baselineSolver)
	if err != nil {
		return nil, errors.Wrap(err, "createAgent")
	}

	return New(e, c, policy, baseline)
}
