package experiment

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	"github.com/samuelfneumann/rltrain/experiment/checkpointer"
	"github.com/samuelfneumann/rltrain/experiment/trackers"
	ts "github.com/samuelfneumann/rltrain/timestep"
	"github.com/samuelfneumann/rltrain/utils/progressbar"
)

// ReturnWindow is the number of recent episodes whose mean return is
// logged at the end of each episode
const ReturnWindow = 100

// Online is an Experiment that runs an agent online, optionally
// evaluating it on a separate environment at regular intervals.
//
// An Online experiment ends once either the maximum number of
// environment steps or the maximum number of episodes is reached.
// A limit of 0 means no limit, but at least one limit must be set.
type Online struct {
	env.Environment
	agent.Agent

	maxSteps     int
	maxEpisodes  int
	currentSteps int
	episodes     int

	trackers      []trackers.Tracker
	checkpointers []checkpointer.Checkpointer
	returns       *trackers.MovingAverage

	evalEnv      env.Environment
	evalEvery    int
	evalEpisodes int
	evalReturns  []float64

	logger        zerolog.Logger
	logEvery      int
	progressWidth int
	progress      *progressbar.ManualProgressBar
}

// Option configures an Online experiment
type Option func(*Online)

// WithLogger sets the logger of the experiment. By default nothing is
// logged.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Online) {
		o.logger = l
	}
}

// WithTrackers registers Trackers with the experiment
func WithTrackers(t ...trackers.Tracker) Option {
	return func(o *Online) {
		o.trackers = append(o.trackers, t...)
	}
}

// WithCheckpointers registers Checkpointers with the experiment
func WithCheckpointers(c ...checkpointer.Checkpointer) Option {
	return func(o *Online) {
		o.checkpointers = append(o.checkpointers, c...)
	}
}

// WithEvaluation evaluates the agent for episodes episodes on e every
// every steps, as long as the agent has started learning
func WithEvaluation(e env.Environment, every, episodes int) Option {
	return func(o *Online) {
		o.evalEnv = e
		o.evalEvery = every
		o.evalEpisodes = episodes
	}
}

// WithMaxEpisodes limits the number of episodes run
func WithMaxEpisodes(n int) Option {
	return func(o *Online) {
		o.maxEpisodes = n
	}
}

// WithLogEvery logs the report of the agent every n steps
func WithLogEvery(n int) Option {
	return func(o *Online) {
		o.logEvery = n
	}
}

// WithProgressBar displays a progress bar of the given width
func WithProgressBar(width int) Option {
	return func(o *Online) {
		o.progressWidth = width
	}
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for.
func NewOnline(e env.Environment, a agent.Agent, steps int,
	opts ...Option) (*Online, error) {
	o := &Online{
		Environment: e,
		Agent:       a,
		maxSteps:    steps,
		returns:     trackers.NewMovingAverage(ReturnWindow),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.maxSteps < 0 || o.maxEpisodes < 0 ||
		(o.maxSteps == 0 && o.maxEpisodes == 0) {
		return nil, agent.NewConfigurationError("newOnline", "step and "+
			"episode limits must be non-negative and not both 0 "+
			"\n\thave(steps: %v, episodes: %v)", o.maxSteps, o.maxEpisodes)
	}
	if o.evalEnv != nil && (o.evalEvery <= 0 || o.evalEpisodes <= 0) {
		return nil, agent.NewConfigurationError("newOnline", "evaluation "+
			"interval and episodes must be positive \n\thave(every: %v, "+
			"episodes: %v)", o.evalEvery, o.evalEpisodes)
	}
	if o.progressWidth > 0 {
		o.progress = progressbar.NewManualProgressBar(o.progressWidth,
			o.progressMax())
	}
	return o, nil
}

// Register registers a Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t trackers.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment and returns
// whether the experiment has finished
func (o *Online) RunEpisode(ctx context.Context) (bool, error) {
	step, err := o.Environment.Reset()
	if err != nil {
		return true, errors.Wrap(err, "runEpisode")
	}
	if err := o.Agent.ObserveFirst(step); err != nil {
		return true, errors.Wrap(err, "runEpisode")
	}
	o.track(step)

	var episodeReturn float64
	for !step.Last() && !o.stepLimitReached() {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		o.currentSteps++

		// Select action, step in environment
		action, err := o.Agent.SelectAction(step)
		if err != nil {
			return true, errors.Wrap(err, "runEpisode")
		}
		step, _, err = o.Environment.Step(action)
		if err != nil {
			return true, errors.Wrap(err, "runEpisode")
		}
		episodeReturn += step.Reward

		// Cache the environment step in each Tracker
		o.track(step)

		// Observe the timestep and step the agent
		if err := o.Agent.Observe(action, step); err != nil {
			return true, errors.Wrap(err, "runEpisode")
		}
		if err := o.Agent.Step(); err != nil {
			return true, errors.Wrap(err, "runEpisode")
		}

		if err := o.checkpoint(step); err != nil {
			return true, errors.Wrap(err, "runEpisode")
		}
		if err := o.afterStep(ctx); err != nil {
			return true, errors.Wrap(err, "runEpisode")
		}
	}

	if step.Last() {
		o.episodes++
		mean := o.returns.Add(episodeReturn)
		o.logger.Debug().
			Int("episode", o.episodes).
			Int("step", o.currentSteps).
			Int("length", step.Number).
			Str("end", step.EndType().String()).
			Float64("return", episodeReturn).
			Float64("mean_return", mean).
			Msg("episode finished")

		if o.maxSteps == 0 {
			o.advanceProgress()
		}
	}

	return o.finished(), nil
}

// afterStep evaluates the agent, logs its report, and advances the
// progress bar as needed after each environment step
func (o *Online) afterStep(ctx context.Context) error {
	if o.maxSteps > 0 {
		o.advanceProgress()
	}

	if o.logEvery > 0 && o.currentSteps%o.logEvery == 0 {
		o.logReport(o.logger.Info(), "training")
	}

	if o.evalEnv == nil || o.currentSteps%o.evalEvery != 0 || !o.learning() {
		return nil
	}

	ret, err := Evaluate(ctx, o.evalEnv, o.Agent, o.evalEpisodes)
	if err != nil {
		return err
	}
	o.evalReturns = append(o.evalReturns, ret)
	o.logReport(o.logger.Info().Float64("eval_return", ret), "evaluation")
	return nil
}

// learning returns whether the agent updated its parameters on the
// latest step. Agents which do not report this are always considered
// to be learning.
func (o *Online) learning() bool {
	if t, ok := o.Agent.(interface{ Trained() bool }); ok {
		return t.Trained()
	}
	return true
}

func (o *Online) logReport(e *zerolog.Event, msg string) {
	e = e.Int("step", o.currentSteps).Int("episodes", o.episodes)
	if r, ok := o.Agent.(agent.Reporter); ok {
		e = e.Fields(r.Report())
	}
	e.Msg(msg)
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run(ctx context.Context) error {
	o.logger.Info().
		Int("max_steps", o.maxSteps).
		Int("max_episodes", o.maxEpisodes).
		Msg("starting experiment")

	for {
		ended, err := o.RunEpisode(ctx)
		if err != nil {
			return err
		}
		if ended {
			break
		}
	}

	o.logger.Info().
		Int("steps", o.currentSteps).
		Int("episodes", o.episodes).
		Float64("mean_return", o.returns.Mean()).
		Msg("experiment finished")
	return nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return errors.Wrap(err, "save")
		}
	}
	return nil
}

// Steps returns the number of environment steps taken
func (o *Online) Steps() int {
	return o.currentSteps
}

// Episodes returns the number of episodes finished
func (o *Online) Episodes() int {
	return o.episodes
}

// EvalReturns returns the mean return of each evaluation
func (o *Online) EvalReturns() []float64 {
	return o.evalReturns
}

// track tracks the current timestep by caching its data in each Tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tracker := range o.trackers {
		tracker.Track(t)
	}
}

// checkpoint sends the current timestep to each Checkpointer
func (o *Online) checkpoint(t ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return err
		}
	}
	return nil
}

func (o *Online) stepLimitReached() bool {
	return o.maxSteps > 0 && o.currentSteps >= o.maxSteps
}

func (o *Online) finished() bool {
	return o.stepLimitReached() ||
		(o.maxEpisodes > 0 && o.episodes >= o.maxEpisodes)
}

func (o *Online) progressMax() int {
	if o.maxSteps > 0 {
		return o.maxSteps
	}
	return o.maxEpisodes
}

// advanceProgress increments the progress bar, displaying it about
// every 1% of progress
func (o *Online) advanceProgress() {
	if o.progress == nil {
		return
	}
	o.progress.Increment()

	every := o.progressMax() / 100
	if every == 0 || o.progress.Progress()%every == 0 {
		o.progress.Display()
	}
}
