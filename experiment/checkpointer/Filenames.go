package checkpointer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FilenameEnumerator returns a function which returns filenames with
// a counter suffix, one higher on each call than on the previous one,
// starting at start+1. For example, with filename "agent" and
// extension ".bin": agent1.bin, agent2.bin, ...
func FilenameEnumerator(start int, filename, extension string) func() string {
	i := start
	return func() string {
		i++
		return fmt.Sprintf("%v%v%v", filename, i, extension)
	}
}

// InDir returns a function which places the filenames returned by name
// in dir, creating dir if needed.
func InDir(dir string, name func() string) (func() string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "inDir: could not create %v", dir)
	}
	return func() string {
		return filepath.Join(dir, name())
	}, nil
}
