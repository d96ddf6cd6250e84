package checkpointer

import ts "github.com/samuelfneumann/rltrain/timestep"

// nStep implements checkpointing every N environment steps
type nStep struct {
	interval int
	steps    int
	object   Saveable // Object to save

	// filename returns the string filename of the file to save the object
	// in.
	//
	// If each serialized object should be saved in a separate file with
	// each file having an incremented number as a suffix (e.g.
	// file1.bin, file2.bin, ..., fileK.bin), then simply use the
	// static function FilenameEnumerator, which will return a function
	// that will enumerate filenames. For example:
	//
	//	n := NewNStep(10, object, FilenameEnumerator(0, "agent", ".bin"))
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n steps.
func NewNStep(n int, object Saveable, filename func() string) Checkpointer {
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint checkpoints the Checkpointer's tracked object by calling
// its Save() method
func (n *nStep) Checkpoint(ts.TimeStep) error {
	n.steps++
	if n.steps%n.interval == 0 {
		return n.object.Save(n.filename())
	}
	return nil
}
