package expreplay

import (
	"fmt"

	"github.com/pkg/errors"
)

// InsufficientDataError reports that a replay buffer was read from
// before it held the data being requested.
type InsufficientDataError struct {
	Op   string
	Have int // Number of transitions in the buffer
	Want int // Number of transitions, or index, that was requested
}

// Error satisifes the error interface
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%v: insufficient data in buffer \n\twant(%v) "+
		"\n\thave(%v)", e.Op, e.Want, e.Have)
}

// IsInsufficientData returns whether or not an error reports that
// there is not enough data in the buffer to perform an operation.
func IsInsufficientData(err error) bool {
	var e *InsufficientDataError
	return errors.As(err, &e)
}
