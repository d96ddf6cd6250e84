package checkpointer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/rltrain/timestep"
)

type recorder struct {
	saved []string
}

func (r *recorder) Save(filename string) error {
	r.saved = append(r.saved, filename)
	return nil
}

func step(t ts.StepType, reward float64) ts.TimeStep {
	return ts.New(t, reward, 1, mat.NewVecDense(1, nil), 0)
}

func TestNStep(t *testing.T) {
	r := &recorder{}
	c := NewNStep(3, r, FilenameEnumerator(0, "agent", ".bin"))

	for i := 0; i < 7; i++ {
		require.NoError(t, c.Checkpoint(step(ts.Mid, 0)))
	}
	assert.Equal(t, []string{"agent1.bin", "agent2.bin"}, r.saved)
}

func TestAboveMean(t *testing.T) {
	r := &recorder{}
	c := NewAboveMean(r, FilenameEnumerator(0, "best", ".bin"))

	// Returns 2, 1, 4: only the third beats the running mean
	for _, rewards := range [][]float64{{1, 1}, {1}, {2, 2}} {
		for i, rew := range rewards {
			st := ts.Mid
			if i == len(rewards)-1 {
				st = ts.Last
			}
			require.NoError(t, c.Checkpoint(step(st, rew)))
		}
	}
	assert.Equal(t, []string{"best1.bin"}, r.saved)
}

func TestInDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoints")
	name, err := InDir(dir, FilenameEnumerator(4, "agent", ".bin"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "agent5.bin"), name())
	assert.DirExists(t, dir)
}
