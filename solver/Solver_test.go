package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalJSON(t *testing.T) {
	data := []byte(`{"Type": "Adam", "Config": {"StepSize": 0.00025,
		"Epsilon": 1e-7, "Beta1": 0.9, "Beta2": 0.999, "Batch": 1}}`)

	var s Solver
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, Adam, s.Type)
	assert.NotNil(t, s.Solver)

	config, ok := s.Config.(AdamConfig)
	require.True(t, ok)
	assert.Equal(t, 0.00025, config.StepSize)
	assert.Equal(t, 1, config.Batch)
}

func TestUnmarshalJSONUnknownType(t *testing.T) {
	var s Solver
	err := json.Unmarshal([]byte(`{"Type": "Nesterov", "Config": {}}`), &s)
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	s, err := NewDefaultAdam(0.001, 1)
	require.NoError(t, err)

	clone, err := s.Clone()
	require.NoError(t, err)
	assert.Equal(t, s.Config, clone.Config)
	assert.NotSame(t, s.Solver, clone.Solver)
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewDefaultAdam(0, 1)
	assert.Error(t, err)

	_, err = NewVanilla(0.1, 0, -1)
	assert.Error(t, err)

	_, err = NewDefaultRMSProp(-0.1, 1)
	assert.Error(t, err)
}

func TestUnmarshalJSONLowercaseKeys(t *testing.T) {
	data := []byte(`{"type": "RMSProp", "config": {"stepsize": 0.01,
		"epsilon": 1e-8, "rho": 0.9, "batch": 1, "clip": -1}}`)

	var s Solver
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, RMSProp, s.Type)
	assert.NotNil(t, s.Solver)
	assert.Equal(t, RMSPropConfig{StepSize: 0.01, Epsilon: 1e-8, Rho: 0.9,
		Batch: 1, Clip: -1}, s.Config)
}

func TestUnmarshalJSONInvalidConfig(t *testing.T) {
	var s Solver
	err := json.Unmarshal([]byte(`{"Type": "Vanilla", "Config": {"StepSize": -1,
		"Batch": 1}}`), &s)
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	s, err := NewVanilla(0.1, 4, 5)
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Solver
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Vanilla, decoded.Type)
	assert.Equal(t, s.Config, decoded.Config)
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(NewDefaultAdam(0.001, 1)) })
	assert.Panics(t, func() { Must(NewDefaultAdam(0, 1)) })
}
