package randomwalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

var _ env.Environment = &RandomWalk{}

func TestStartsInMiddle(t *testing.T) {
	r, first, err := New(NumStates, 0.99, 1)
	require.NoError(t, err)
	assert.True(t, first.First())
	assert.Equal(t, 500.0, first.Observation.AtVec(0))
	assert.Equal(t, 500, r.State())

	_, _, err = New(2, 0.99, 1)
	assert.True(t, agent.IsConfigurationError(err))
}

func TestDirections(t *testing.T) {
	r, _, err := New(NumStates, 0.99, 3)
	require.NoError(t, err)

	prev := r.State()
	for i := 0; i < 3; i++ {
		step, _, err := r.Step(0)
		require.NoError(t, err)
		state := int(step.Observation.AtVec(0))
		assert.True(t, state >= prev && state < prev+MaxJump)
		prev = state
	}
	for i := 0; i < 3; i++ {
		step, _, err := r.Step(1)
		require.NoError(t, err)
		state := int(step.Observation.AtVec(0))
		assert.True(t, state <= prev && state > prev-MaxJump)
		prev = state
	}
}

func TestTerminationRewards(t *testing.T) {
	for action, want := range map[int]float64{0: RightReward, 1: LeftReward} {
		r, _, err := New(NumStates, 0.99, 5)
		require.NoError(t, err)

		var step ts.TimeStep
		done := false
		for !done {
			step, done, err = r.Step(action)
			require.NoError(t, err)
			if !done {
				assert.Equal(t, StepReward, step.Reward)
			}
		}
		assert.Equal(t, want, step.Reward)
		assert.True(t, step.Terminal())

		if action == 0 {
			assert.Equal(t, NumStates-1, r.State())
		} else {
			assert.Equal(t, 0, r.State())
		}

		_, _, err = r.Step(action)
		assert.True(t, agent.IsConfigurationError(err))
	}
}

func TestIllegalAction(t *testing.T) {
	r, _, err := New(NumStates, 0.99, 1)
	require.NoError(t, err)
	_, _, err = r.Step(2)
	assert.True(t, agent.IsConfigurationError(err))
}
