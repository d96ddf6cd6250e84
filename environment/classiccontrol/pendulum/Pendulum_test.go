package pendulum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

func TestUprightIsRewarded(t *testing.T) {
	task := NewSwingUp(env.NewConstantStarter([]float64{0, 0}), 10)
	p, _, err := New(task, 1.0)
	require.NoError(t, err)

	// Upright with no torque is an unstable equilibrium
	step, done, err := p.Step(2)
	require.NoError(t, err)
	assert.False(t, done)
	assert.InDelta(t, 0.0, step.Observation.AtVec(0), 1e-12)
	assert.InDelta(t, 1.0, step.Reward, 1e-12)
}

func TestTorque(t *testing.T) {
	task := NewSwingUp(env.NewConstantStarter([]float64{0, 0}), 10)
	p, _, err := New(task, 1.0)
	require.NoError(t, err)

	step, _, err := p.Step(4)
	require.NoError(t, err)

	thdot := 3.0 * TorqueBound * dt
	assert.InDelta(t, thdot, step.Observation.AtVec(1), 1e-12)
	assert.InDelta(t, thdot*dt, step.Observation.AtVec(0), 1e-12)
	assert.InDelta(t, math.Cos(thdot*dt), step.Reward, 1e-12)
}

func TestAngleWraps(t *testing.T) {
	task := NewSwingUp(env.NewConstantStarter([]float64{math.Pi, 8}), 10)
	p, _, err := New(task, 1.0)
	require.NoError(t, err)

	step, _, err := p.Step(2)
	require.NoError(t, err)
	assert.Equal(t, SpeedBound, step.Observation.AtVec(1))
	assert.InDelta(t, -math.Pi+SpeedBound*dt, step.Observation.AtVec(0),
		1e-12)
}

func TestTimeout(t *testing.T) {
	p, _, err := NewDefault(4, 1.0, 3)
	require.NoError(t, err)
	assert.Equal(t, NumActions, p.ActionSpec().Actions())

	var step ts.TimeStep
	for i := 0; i < 4; i++ {
		step, _, err = p.Step(i)
		require.NoError(t, err)
	}
	assert.True(t, step.Last())
	assert.Equal(t, ts.Timeout, step.EndType())

	_, _, err = p.Step(0)
	assert.True(t, agent.IsConfigurationError(err))
}
