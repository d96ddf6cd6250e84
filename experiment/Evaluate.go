package experiment

import (
	"context"

	"github.com/pkg/errors"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
)

// Evaluate runs episodes episodes of a in evaluation mode on e and
// returns the mean episodic return. The agent is returned to the mode
// it was in before evaluation.
func Evaluate(ctx context.Context, e env.Environment, a agent.Agent,
	episodes int) (float64, error) {
	if episodes <= 0 {
		return 0, agent.NewConfigurationError("evaluate", "number of "+
			"episodes must be positive \n\thave(%v)", episodes)
	}

	if !a.IsEval() {
		a.Eval()
		defer a.Train()
	}

	var total float64
	for i := 0; i < episodes; i++ {
		step, err := e.Reset()
		if err != nil {
			return 0, errors.Wrap(err, "evaluate")
		}
		if err := a.ObserveFirst(step); err != nil {
			return 0, errors.Wrap(err, "evaluate")
		}

		for !step.Last() {
			if err := ctx.Err(); err != nil {
				return 0, err
			}

			action, err := a.SelectAction(step)
			if err != nil {
				return 0, errors.Wrap(err, "evaluate")
			}
			if step, _, err = e.Step(action); err != nil {
				return 0, errors.Wrap(err, "evaluate")
			}
			if err := a.Observe(action, step); err != nil {
				return 0, errors.Wrap(err, "evaluate")
			}
			total += step.Reward
		}
	}
	return total / float64(episodes), nil
}
