package wrappers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/rltrain/environment/randomwalk"
)

func TestStateAggregationGroups(t *testing.T) {
	walk, _, err := randomwalk.New(randomwalk.NumStates, 0.99, 1)
	require.NoError(t, err)
	agg, first, err := NewStateAggregation(walk, 100)
	require.NoError(t, err)

	tests := []struct {
		state, group int
	}{
		{0, 0}, {9, 0}, {10, 1}, {500, 50}, {995, 99}, {999, 99},
	}
	for _, test := range tests {
		assert.Equal(t, test.group, agg.Group(test.state))

		v := agg.Encode(test.state)
		assert.Equal(t, 100, v.Len())
		assert.Equal(t, 1.0, v.AtVec(test.group))
		assert.Equal(t, 1.0, floats.Sum(v.RawVector().Data))
	}

	assert.Equal(t, 100, first.Observation.Len())
	assert.Equal(t, 1.0, first.Observation.AtVec(50))
	assert.Equal(t, 100, agg.ObservationSpec().Len())
}

func TestStateAggregationStep(t *testing.T) {
	walk, _, err := randomwalk.New(randomwalk.NumStates, 0.99, 1)
	require.NoError(t, err)
	agg, _, err := NewStateAggregation(walk, 100)
	require.NoError(t, err)

	step, _, err := agg.Step(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, step.Observation.AtVec(walk.State()/10))
	assert.Equal(t, 1.0, floats.Sum(step.Observation.RawVector().Data))
}

func TestStateAggregationInvalid(t *testing.T) {
	walk, _, err := randomwalk.New(randomwalk.NumStates, 0.99, 1)
	require.NoError(t, err)
	_, _, err = NewStateAggregation(walk, 0)
	assert.True(t, agent.IsConfigurationError(err))

	c, _, err := cartpole.NewDefault(500, 0.99, 1)
	require.NoError(t, err)
	_, _, err = NewStateAggregation(c, 10)
	assert.True(t, agent.IsConfigurationError(err))
}
