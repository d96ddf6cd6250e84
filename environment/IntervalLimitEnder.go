package environment

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r1"

	ts "github.com/samuelfneumann/rltrain/timestep"
)

// IntervalLimit implements the Ender interface to end episodes
// whenever a single feature in a feature vector leaves some interval
type IntervalLimit struct {
	intervals []r1.Interval
	indices   []int
	endType   ts.EndType
}

// NewIntervalLimit creates and returns a new interval limit which ends
// episodes when observation feature obsIndices[i] leaves limits[i]. The
// endType argument determines what the episode end should be
// considered as.
func NewIntervalLimit(limits []r1.Interval, obsIndices []int,
	endType ts.EndType) *IntervalLimit {
	if len(limits) != len(obsIndices) {
		panic(fmt.Sprintf("limits should have same length as observation "+
			"indices \n\twant(%v) \n\thave(%v)", len(obsIndices), len(limits)))
	}

	return &IntervalLimit{limits, obsIndices, endType}
}

// End determines whether or not the current episode should be ended,
// returning a boolean to indicate episode termination.
func (i *IntervalLimit) End(t *ts.TimeStep) bool {
	for index, featureIndex := range i.indices {
		interval := i.intervals[index]
		value := t.Observation.AtVec(featureIndex)

		if value > interval.Max || value < interval.Min {
			t.StepType = ts.Last
			t.SetEnd(i.endType)
			return true
		}
	}
	return false
}
