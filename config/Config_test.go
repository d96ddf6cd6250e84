package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/agent/deepq"
	"github.com/samuelfneumann/rltrain/initwfn"
	"github.com/samuelfneumann/rltrain/solver"
)

func TestDefaults(t *testing.T) {
	tests := []struct {
		algorithm string
		steps     int
		episodes  int
		evalEvery int
	}{
		{DeepQ, 250000, 0, 1000},
		{Reinforce, 0, 1000, 0},
		{TD, 0, 200, 0},
	}

	for _, test := range tests {
		t.Run(test.algorithm, func(t *testing.T) {
			cfg, err := Load(NewViper(), test.algorithm, "")
			require.NoError(t, err)

			assert.Equal(t, test.algorithm, cfg.Algorithm)
			assert.Equal(t, test.steps, cfg.Steps)
			assert.Equal(t, test.episodes, cfg.Episodes)
			assert.Equal(t, test.evalEvery, cfg.EvalEvery)

			// Solvers and initializers are rebuilt from their JSON form
			want := deepq.DefaultConfig()
			assert.Equal(t, want.Solver.Type, cfg.DeepQ.Solver.Type)
			assert.Equal(t, want.Solver.Config, cfg.DeepQ.Solver.Config)
			assert.Equal(t, want.InitWFn.Config, cfg.DeepQ.InitWFn.Config)
			want.Solver, want.InitWFn = cfg.DeepQ.Solver, cfg.DeepQ.InitWFn
			assert.Equal(t, want, cfg.DeepQ)
			assert.Equal(t, "info", cfg.LogLevel)
		})
	}
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := Load(NewViper(), "sarsa", "")
	assert.True(t, agent.IsConfigurationError(err))
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "run.yaml")
	yaml := []byte(`
steps: 5000
seed: 7
deepq:
  gamma: 0.9
  hidden_sizes: [64, 64]
  activations: [tanh, tanh]
`)
	require.NoError(t, os.WriteFile(file, yaml, 0o644))

	cfg, err := Load(NewViper(), DeepQ, file)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Steps)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 0.9, cfg.DeepQ.Gamma)
	assert.Equal(t, []int{64, 64}, cfg.DeepQ.HiddenSizes)
	assert.Equal(t, []string{"tanh", "tanh"}, cfg.DeepQ.Activations)

	// Keys missing from the file keep their defaults
	assert.Equal(t, 64, cfg.DeepQ.BatchSize)
	assert.Equal(t, 500, cfg.EpisodeSteps)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"episodes": 10}`), 0o644))

	t.Setenv("RLTRAIN_EPISODES", "20")
	t.Setenv("RLTRAIN_REINFORCE_GAMMA", "0.5")

	cfg, err := Load(NewViper(), Reinforce, file)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Episodes)
	assert.Equal(t, 0.5, cfg.Reinforce.Gamma)
}

func TestLoadSolverFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "run.yaml")
	yaml := []byte(`
deepq:
  solver:
    type: RMSProp
    config:
      stepsize: 0.01
      epsilon: 1e-8
      rho: 0.9
      batch: 1
  init_wfn:
    type: HeU
    config:
      gain: 1.5
`)
	require.NoError(t, os.WriteFile(file, yaml, 0o644))

	cfg, err := Load(NewViper(), DeepQ, file)
	require.NoError(t, err)

	require.NotNil(t, cfg.DeepQ.Solver)
	assert.Equal(t, solver.RMSProp, cfg.DeepQ.Solver.Type)
	assert.NotNil(t, cfg.DeepQ.Solver.Solver)
	rmsprop, ok := cfg.DeepQ.Solver.Config.(solver.RMSPropConfig)
	require.True(t, ok)
	assert.Equal(t, 0.01, rmsprop.StepSize)
	assert.Equal(t, 0.9, rmsprop.Rho)
	assert.Equal(t, 1, rmsprop.Batch)

	require.NotNil(t, cfg.DeepQ.InitWFn)
	assert.Equal(t, initwfn.HeU, cfg.DeepQ.InitWFn.Type)
	assert.Equal(t, initwfn.HeUConfig{Gain: 1.5}, cfg.DeepQ.InitWFn.Config)

	// Other algorithms keep their default solvers
	assert.Equal(t, solver.Adam, cfg.Reinforce.PolicySolver.Type)
}

func TestSolverFromEnvironment(t *testing.T) {
	t.Setenv("RLTRAIN_TD_SOLVER_CONFIG_STEPSIZE", "0.05")
	t.Setenv("RLTRAIN_TD_INIT_WFN_TYPE", "Zeroes")

	cfg, err := Load(NewViper(), TD, "")
	require.NoError(t, err)

	adam, ok := cfg.TD.Solver.Config.(solver.AdamConfig)
	require.True(t, ok)
	assert.Equal(t, 0.05, adam.StepSize)
	assert.Equal(t, 0.9, adam.Beta1)
	assert.Equal(t, initwfn.Zeroes, cfg.TD.InitWFn.Type)
}

func TestInvalidSolver(t *testing.T) {
	file := filepath.Join(t.TempDir(), "run.json")
	json := []byte(`{"td": {"solver": {"type": "Vanilla",
		"config": {"stepsize": -1, "batch": 1}}}}`)
	require.NoError(t, os.WriteFile(file, json, 0o644))

	_, err := Load(NewViper(), TD, file)
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(NewViper(), TD, filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid, err := Default(TD)
	require.NoError(t, err)
	require.NoError(t, valid.Validate())

	control, err := Default(DeepQ)
	require.NoError(t, err)
	for _, name := range ControlEnvs {
		control.Env = name
		require.NoError(t, control.Validate())
	}
	control.Env = "gridworld"
	assert.True(t, agent.IsConfigurationError(control.Validate()))
	control.Env = Cartpole
	control.EpisodeSteps = 0
	assert.True(t, agent.IsConfigurationError(control.Validate()))

	tests := map[string]func(*Config){
		"no limits":      func(c *Config) { c.Episodes = 0 },
		"negative steps": func(c *Config) { c.Steps = -1 },
		"eval episodes":  func(c *Config) { c.EvalEvery = 10 },
		"checkpoint":     func(c *Config) { c.CheckpointEvery = -1 },
		"out":            func(c *Config) { c.Out = "" },
		"log level":      func(c *Config) { c.LogLevel = "loud" },
		"groups":         func(c *Config) { c.WalkGroups = c.WalkStates + 1 },
		"agent":          func(c *Config) { c.TD.Gamma = 2 },
		"solver":         func(c *Config) { c.TD.Solver = nil },
		"algorithm":      func(c *Config) { c.Algorithm = "" },
	}

	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			modify(&cfg)
			assert.True(t, agent.IsConfigurationError(cfg.Validate()))
		})
	}
}
