package trackers

import (
	"github.com/gammazero/deque"
)

// MovingAverage keeps the mean of the most recent window values
// added to it. A window of 0 keeps the mean of all values.
type MovingAverage struct {
	window int
	values *deque.Deque[float64]
	sum    float64
	count  int // Values added in total
}

// NewMovingAverage returns a new MovingAverage
func NewMovingAverage(window int) *MovingAverage {
	return &MovingAverage{
		window: window,
		values: deque.New[float64](),
	}
}

// Add adds a value to the average and returns the new average
func (m *MovingAverage) Add(v float64) float64 {
	m.count++
	m.sum += v
	if m.window > 0 {
		m.values.PushBack(v)
		if m.values.Len() > m.window {
			m.sum -= m.values.PopFront()
		}
	}
	return m.Mean()
}

// Mean returns the current average, or 0 if no values have been added
func (m *MovingAverage) Mean() float64 {
	n := m.Len()
	if n == 0 {
		return 0
	}
	return m.sum / float64(n)
}

// Len returns the number of values averaged over
func (m *MovingAverage) Len() int {
	if m.window > 0 {
		return m.values.Len()
	}
	return m.count
}

// Count returns the number of values added in total
func (m *MovingAverage) Count() int {
	return m.count
}
