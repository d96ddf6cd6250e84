package initwfn

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestUnmarshalJSON(t *testing.T) {
	var w InitWFn
	err := json.Unmarshal([]byte(`{"Type": "Constant", "Config": {"Value": 0.5}}`),
		&w)
	require.NoError(t, err)
	assert.Equal(t, Constant, w.Type)
	assert.Equal(t, ConstantConfig{Value: 0.5}, w.Config)

	values := w.InitWFn()(tensor.Float64, 2, 3).([]float64)
	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, values)
}

func TestUnmarshalJSONUnknown(t *testing.T) {
	var w InitWFn
	err := json.Unmarshal([]byte(`{"Type": "Orthogonal"}`), &w)
	assert.Error(t, err)
}

func TestZeroes(t *testing.T) {
	values := NewZeroes().InitWFn()(tensor.Float64, 4).([]float64)
	assert.Equal(t, []float64{0, 0, 0, 0}, values)
}

func TestUnmarshalJSONLowercaseKeys(t *testing.T) {
	var w InitWFn
	err := json.Unmarshal([]byte(`{"type": "HeU", "config": {"gain": 2}}`), &w)
	require.NoError(t, err)
	assert.Equal(t, HeU, w.Type)
	assert.Equal(t, HeUConfig{Gain: 2}, w.Config)
}

func TestSeededValues(t *testing.T) {
	tests := map[string]struct {
		init  *InitWFn
		bound float64
	}{
		"GlorotU": {NewGlorotU(1.0), math.Sqrt(6.0 / 11.0)},
		"HeU":     {NewHeU(2.0), 2 * math.Sqrt(3.0/5.0)},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			first := test.init.Seeded(11).Values(5, 6)
			second := test.init.Seeded(11).Values(5, 6)
			other := test.init.Seeded(12).Values(5, 6)

			require.Len(t, first, 30)
			assert.Equal(t, first, second)
			assert.NotEqual(t, first, other)
			for _, v := range first {
				assert.True(t, math.Abs(v) <= test.bound,
					"%v outside [-%v, %v]", v, test.bound, test.bound)
			}
		})
	}
}

func TestSeededDoesNotModify(t *testing.T) {
	w := NewConstant(3)
	seeded := w.Seeded(1)
	assert.Nil(t, w.src)
	assert.Equal(t, w.Config, seeded.Config)

	assert.Equal(t, []float64{3, 3, 3, 3}, seeded.Values(2, 2))
	assert.Equal(t, []float64{3, 3, 3, 3}, w.Values(2, 2))
	assert.Equal(t, []float64{0, 0}, NewZeroes().Seeded(1).Values(1, 2))
}
