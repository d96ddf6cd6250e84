package plots

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/rltrain/agent"
)

func TestRunningMean(t *testing.T) {
	assert.Equal(t, []float64{2, 3, 2}, RunningMean([]float64{2, 4, 0}))
	assert.Empty(t, RunningMean(nil))
}

func TestLearningCurve(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "curve.png")
	require.NoError(t, LearningCurve(filename, "Test", []float64{1, 5, 3}))
	assert.FileExists(t, filename)

	err := Lines(filename, Labels{})
	assert.True(t, agent.IsConfigurationError(err))
}
