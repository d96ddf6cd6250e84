// Package targetsync implements synchronization of target network
// parameters towards the parameters of an online network, either by a
// hard copy or by Polyak averaging.
package targetsync

import (
	"github.com/pkg/errors"
	"github.com/samuelfneumann/rltrain/agent"
	"gonum.org/v1/gonum/mat"
)

// Blend returns the Polyak average tau*online + (1-tau)*target of
// each pair of parameter tensors. A tau of 1 returns a copy of the
// online parameters and a tau of 0 returns a copy of the target
// parameters. Neither argument is modified.
func Blend(online, target []*mat.Dense, tau float64) ([]*mat.Dense, error) {
	if tau < 0 || tau > 1 {
		return nil, agent.NewConfigurationError("blend", "tau must be in "+
			"[0, 1] \n\thave(%v)", tau)
	}
	if len(online) != len(target) {
		return nil, agent.NewConfigurationError("blend", "number of "+
			"parameter tensors differ \n\tonline(%v) \n\ttarget(%v)",
			len(online), len(target))
	}

	blended := make([]*mat.Dense, len(online))
	for i := range online {
		r, c := online[i].Dims()
		tr, tc := target[i].Dims()
		if r != tr || c != tc {
			return nil, agent.NewConfigurationError("blend", "shape of "+
				"parameter %v differs \n\tonline(%v, %v) \n\ttarget(%v, %v)",
				i, r, c, tr, tc)
		}

		switch tau {
		case 1.0:
			blended[i] = mat.DenseCopyOf(online[i])
		case 0.0:
			blended[i] = mat.DenseCopyOf(target[i])
		default:
			b := mat.NewDense(r, c, nil)
			b.Scale(1-tau, target[i])
			var o mat.Dense
			o.Scale(tau, online[i])
			b.Add(b, &o)
			blended[i] = b
		}
	}
	return blended, nil
}

// Sync moves the parameters of target towards those of online,
// setting the target's parameters to tau*online + (1-tau)*target.
func Sync(online, target agent.Parameterized, tau float64) error {
	blended, err := Blend(online.Parameters(), target.Parameters(), tau)
	if err != nil {
		return errors.Wrap(err, "sync")
	}
	return errors.Wrap(target.SetParameters(blended), "sync")
}

// Schedule determines when a target network is synchronized. The
// period and tau are independent: a period of 1 with tau < 1 performs
// Polyak averaging every step, while a period of N with tau = 1
// performs a hard update every N steps.
type Schedule struct {
	Period int
	Tau    float64
}

// NewSchedule returns a new Schedule
func NewSchedule(period int, tau float64) (Schedule, error) {
	if period <= 0 {
		return Schedule{}, agent.NewConfigurationError("newSchedule",
			"target networks must be updated at positive timestep "+
				"intervals \n\twant(>0) \n\thave(%v)", period)
	}
	if tau < 0 || tau > 1 {
		return Schedule{}, agent.NewConfigurationError("newSchedule",
			"tau must be in [0, 1] \n\thave(%v)", tau)
	}
	return Schedule{Period: period, Tau: tau}, nil
}

// Due returns whether the target should be synchronized at step
func (s Schedule) Due(step int) bool {
	return step%s.Period == 0
}

// Apply synchronizes target towards online if a synchronization is due
// at step, returning whether one occurred.
func (s Schedule) Apply(step int, online, target agent.Parameterized) (bool,
	error) {
	if !s.Due(step) {
		return false, nil
	}
	return true, Sync(online, target, s.Tau)
}
