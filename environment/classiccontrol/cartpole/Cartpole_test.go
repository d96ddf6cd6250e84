package cartpole

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

var _ env.Environment = &Cartpole{}

func TestReset(t *testing.T) {
	c, first, err := NewDefault(500, 0.99, 1)
	require.NoError(t, err)

	assert.True(t, first.First())
	assert.Equal(t, 0, first.Number)
	for i := 0; i < ObservationDims; i++ {
		v := first.Observation.AtVec(i)
		assert.True(t, v >= -StartBound && v <= StartBound)
	}
	assert.Equal(t, 2, c.ActionSpec().Actions())
	assert.Equal(t, 4, c.ObservationSpec().Len())
}

func TestTerminatesOnAngle(t *testing.T) {
	c, _, err := NewDefault(500, 0.99, 1)
	require.NoError(t, err)

	// Always pushing right makes the pole fall left well before the
	// step limit
	var step ts.TimeStep
	done := false
	for !done {
		step, done, err = c.Step(1)
		require.NoError(t, err)
		assert.Equal(t, 1.0, step.Reward)
	}

	assert.Less(t, step.Number, 500)
	assert.True(t, step.Terminal())
	assert.Equal(t, ts.TerminalStateReached, step.EndType())

	_, _, err = c.Step(0)
	assert.True(t, agent.IsConfigurationError(err))
}

func TestTerminatesOnPosition(t *testing.T) {
	task := NewBalance(env.NewConstantStarter([]float64{2.39, 1.0, 0, 0}),
		500, FailAngle, PositionLimit)
	c, _, err := New(task, 0.99)
	require.NoError(t, err)

	step, done, err := c.Step(1)
	require.NoError(t, err)
	assert.True(t, done)
	assert.True(t, step.Terminal())
	assert.InDelta(t, 2.41, step.Observation.AtVec(0), 1e-12)
}

func TestTruncatesAtStepLimit(t *testing.T) {
	c, _, err := NewDefault(3, 0.99, 1)
	require.NoError(t, err)

	var step ts.TimeStep
	for i := 0; i < 3; i++ {
		var done bool
		step, done, err = c.Step(i % 2)
		require.NoError(t, err)
		assert.Equal(t, i == 2, done)
	}
	assert.True(t, step.Last())
	assert.False(t, step.Terminal())
	assert.Equal(t, ts.Timeout, step.EndType())
}

func TestIllegalAction(t *testing.T) {
	c, _, err := NewDefault(500, 0.99, 1)
	require.NoError(t, err)

	_, _, err = c.Step(2)
	assert.True(t, agent.IsConfigurationError(err))
	_, _, err = c.Step(-1)
	assert.True(t, agent.IsConfigurationError(err))
}

func TestDynamics(t *testing.T) {
	// From rest, pushing right accelerates the cart right and the pole
	// left. Values follow the Euler update of the standard equations.
	state := mat.NewVecDense(4, nil)
	next := nextState(state, ForceMag)

	assert.Equal(t, 0.0, next.AtVec(0))
	assert.Equal(t, 0.0, next.AtVec(2))

	temp := ForceMag / TotalMass
	thAcc := -temp / (HalfPoleLength * (4.0/3.0 - PoleMass/TotalMass))
	xAcc := temp - PoleMass*HalfPoleLength*thAcc/TotalMass
	assert.InDelta(t, Dt*xAcc, next.AtVec(1), 1e-12)
	assert.InDelta(t, Dt*thAcc, next.AtVec(3), 1e-12)
	assert.Greater(t, next.AtVec(1), 0.0)
	assert.Less(t, next.AtVec(3), 0.0)
}
