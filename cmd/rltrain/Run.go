package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/config"
	env "github.com/samuelfneumann/rltrain/environment"
	"github.com/samuelfneumann/rltrain/environment/classiccontrol/acrobot"
	"github.com/samuelfneumann/rltrain/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/rltrain/environment/classiccontrol/mountaincar"
	"github.com/samuelfneumann/rltrain/environment/classiccontrol/pendulum"
	"github.com/samuelfneumann/rltrain/environment/randomwalk"
	"github.com/samuelfneumann/rltrain/environment/wrappers"
	"github.com/samuelfneumann/rltrain/experiment"
	"github.com/samuelfneumann/rltrain/experiment/checkpointer"
	"github.com/samuelfneumann/rltrain/experiment/plots"
	"github.com/samuelfneumann/rltrain/experiment/trackers"
)

const (
	// EnvDiscount is the discount of every environment. Agents discount
	// with their own configured gamma.
	EnvDiscount = 1.0

	ProgressWidth = 50
	CheckpointDir = "checkpoints"
)

// newControlEnv returns the configured control environment with
// episodes cut off after episodeSteps steps
func newControlEnv(name string, episodeSteps int,
	seed uint64) (env.Environment, error) {
	switch name {
	case config.Cartpole:
		e, _, err := cartpole.NewDefault(episodeSteps, EnvDiscount, seed)
		return e, err
	case config.MountainCar:
		e, _, err := mountaincar.NewDefault(episodeSteps, EnvDiscount, seed)
		return e, err
	case config.Acrobot:
		e, _, err := acrobot.NewDefault(episodeSteps, EnvDiscount, seed)
		return e, err
	case config.Pendulum:
		e, _, err := pendulum.NewDefault(episodeSteps, EnvDiscount, seed)
		return e, err
	}
	return nil, agent.NewConfigurationError("newControlEnv", "unknown "+
		"environment \n\thave(%v)", name)
}

func runDeepQ(ctx context.Context, r *run) error {
	cfg := r.cfg
	e, err := newControlEnv(cfg.Env, cfg.EpisodeSteps, cfg.Seed)
	if err != nil {
		return errors.Wrap(err, "runDeepQ")
	}
	q, err := cfg.DeepQ.CreateAgent(e, cfg.Seed)
	if err != nil {
		return errors.Wrap(err, "runDeepQ")
	}

	var opts []experiment.Option
	if cfg.EvalEvery > 0 {
		evalEnv, err := newControlEnv(cfg.Env, cfg.EvalEpisodeSteps,
			cfg.Seed+1)
		if err != nil {
			return errors.Wrap(err, "runDeepQ")
		}
		opts = append(opts, experiment.WithEvaluation(evalEnv,
			cfg.EvalEvery, cfg.EvalEpisodes))
	}
	if cfg.CheckpointEvery > 0 {
		name, err := r.checkpointNames()
		if err != nil {
			return errors.Wrap(err, "runDeepQ")
		}
		opts = append(opts, experiment.WithCheckpointers(
			checkpointer.NewNStep(cfg.CheckpointEvery, q, name)))
	}

	o, err := r.online(ctx, e, q, "DQN on "+cfg.Env, opts...)
	if err != nil {
		return errors.Wrap(err, "runDeepQ")
	}

	evals := o.EvalReturns()
	if len(evals) == 0 {
		return nil
	}
	err = plots.Lines(r.path("evaluation.png"),
		plots.Labels{
			Title: "DQN evaluation on " + cfg.Env,
			X:     fmt.Sprintf("Evaluation (every %v steps)", cfg.EvalEvery),
			Y:     "Mean return",
		},
		plots.Line{Name: "Mean return", Y: evals},
	)
	return errors.Wrap(err, "runDeepQ")
}

func runReinforce(ctx context.Context, r *run) error {
	cfg := r.cfg
	e, err := newControlEnv(cfg.Env, cfg.EpisodeSteps, cfg.Seed)
	if err != nil {
		return errors.Wrap(err, "runReinforce")
	}
	pg, err := cfg.Reinforce.CreateAgent(e, cfg.Seed)
	if err != nil {
		return errors.Wrap(err, "runReinforce")
	}

	// Keep the agents whose episodes beat the mean return so far
	var opts []experiment.Option
	if cfg.CheckpointEvery > 0 {
		name, err := r.checkpointNames()
		if err != nil {
			return errors.Wrap(err, "runReinforce")
		}
		opts = append(opts, experiment.WithCheckpointers(
			checkpointer.NewAboveMean(pg, name)))
	}

	_, err = r.online(ctx, e, pg, "REINFORCE on "+cfg.Env, opts...)
	return errors.Wrap(err, "runReinforce")
}

func runTD(ctx context.Context, r *run) error {
	cfg := r.cfg
	walk, _, err := randomwalk.New(cfg.WalkStates, EnvDiscount, cfg.Seed)
	if err != nil {
		return errors.Wrap(err, "runTD")
	}
	agg, _, err := wrappers.NewStateAggregation(walk, cfg.WalkGroups)
	if err != nil {
		return errors.Wrap(err, "runTD")
	}
	learner, err := cfg.TD.CreateAgent(agg, cfg.Seed)
	if err != nil {
		return errors.Wrap(err, "runTD")
	}

	var opts []experiment.Option
	if cfg.CheckpointEvery > 0 {
		name, err := r.checkpointNames()
		if err != nil {
			return errors.Wrap(err, "runTD")
		}
		opts = append(opts, experiment.WithCheckpointers(
			checkpointer.NewNStep(cfg.CheckpointEvery, learner, name)))
	}

	if _, err := r.online(ctx, agg, learner, "TD(0) on the random walk",
		opts...); err != nil {
		return errors.Wrap(err, "runTD")
	}

	// Every state of a group shares the value of the group
	groups := agg.NumGroups()
	features := mat.NewDense(groups, groups, nil)
	for g := 0; g < groups; g++ {
		features.SetRow(g, agg.GroupFeatures(g).RawVector().Data)
	}
	groupValues, err := learner.Values(features)
	if err != nil {
		return errors.Wrap(err, "runTD")
	}
	values := make([]float64, walk.NumStates())
	for s := range values {
		values[s] = groupValues[agg.Group(s)]
	}

	err = plots.Lines(r.path("values.png"),
		plots.Labels{
			Title: "Value function of the random walk",
			X:     "State",
			Y:     "Value",
		},
		plots.Line{Name: "TD(0)", Y: values},
	)
	return errors.Wrap(err, "runTD")
}

// online runs a on e until the step or episode limit is reached and
// saves the returns and lengths of each episode, a learning curve, and
// the final agent. An interrupted run is saved the same way.
func (r *run) online(ctx context.Context, e env.Environment, a agent.Agent,
	title string, opts ...experiment.Option) (*experiment.Online, error) {
	returns := trackers.NewReturn(r.path(ReturnsFile))
	lengths := trackers.NewEpisodeLength(r.path(LengthsFile))

	opts = append([]experiment.Option{
		experiment.WithLogger(r.logger),
		experiment.WithTrackers(returns, lengths),
		experiment.WithMaxEpisodes(r.cfg.Episodes),
		experiment.WithLogEvery(r.cfg.LogEvery),
	}, opts...)
	if r.progress {
		opts = append(opts, experiment.WithProgressBar(ProgressWidth))
	}

	o, err := experiment.NewOnline(e, a, r.cfg.Steps, opts...)
	if err != nil {
		return nil, err
	}

	if err := o.Run(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			return nil, err
		}
		r.logger.Warn().
			Int("step", o.Steps()).
			Int("episodes", o.Episodes()).
			Msg("interrupted")
	}

	if err := o.Save(); err != nil {
		return nil, err
	}
	if s, ok := a.(agent.Saver); ok {
		if err := s.Save(r.path(AgentFile)); err != nil {
			return nil, err
		}
	}

	if data := returns.Data(); len(data) > 0 {
		err := plots.LearningCurve(r.path("returns.png"), title, data)
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

// checkpointNames returns a function naming successive checkpoints in
// the checkpoint directory of the run
func (r *run) checkpointNames() (func() string, error) {
	return checkpointer.InDir(r.path(CheckpointDir),
		checkpointer.FilenameEnumerator(0, "agent", ".bin"))
}
