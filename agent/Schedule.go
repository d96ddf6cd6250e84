package agent

import "math"

// LinearSchedule linearly anneals a value (usually the ε of an ε-greedy
// policy) from Start to Min over Duration steps, after which it stays
// at Min.
type LinearSchedule struct {
	Start    float64
	Min      float64
	Duration int
	slope    float64
}

// NewLinearSchedule returns a new LinearSchedule
func NewLinearSchedule(start, min float64, duration int) (*LinearSchedule,
	error) {
	if duration <= 0 {
		return nil, NewConfigurationError("newLinearSchedule", "duration "+
			"must be positive \n\twant(>0) \n\thave(%v)", duration)
	}
	if min > start {
		return nil, NewConfigurationError("newLinearSchedule", "minimum "+
			"value %v exceeds starting value %v", min, start)
	}

	return &LinearSchedule{
		Start:    start,
		Min:      min,
		Duration: duration,
		slope:    (min - start) / float64(duration),
	}, nil
}

// Epsilon returns the scheduled value at step t
func (l *LinearSchedule) Epsilon(t int) float64 {
	if t >= l.Duration {
		return l.Min
	}
	return math.Max(l.Start+l.slope*float64(t), l.Min)
}
