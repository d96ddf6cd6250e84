// Command rltrain trains DQN, REINFORCE, and TD(0) agents and saves
// their returns, checkpoints, and plots to a new run directory.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samuelfneumann/rltrain/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd returns the rltrain command with one subcommand per
// algorithm. Flags are bound to a fresh viper instance so that each
// can also be set through an RLTRAIN_* environment variable.
func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var configFile string

	root := &cobra.Command{
		Use:   "rltrain",
		Short: "Train reinforcement learning agents on classic control tasks",
		Long: `rltrain trains an agent online and writes the episodic returns,
agent checkpoints, and learning curves of the run to a new directory
under --out.

Every setting can be given in a YAML or JSON file passed with --config
and overridden by RLTRAIN_* environment variables, e.g.
RLTRAIN_DEEPQ_GAMMA=0.95, and then by flags.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML or JSON configuration file")
	flags.Uint64("seed", 0, "Random seed")
	flags.Int("steps", 0, "Maximum number of environment steps (0 for no limit)")
	flags.Int("episodes", 0, "Maximum number of episodes (0 for no limit)")
	flags.String("out", "results", "Directory in which to create the run directory")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("progress", false, "Display a progress bar when logging to a terminal")
	flags.String("env", config.Cartpole, "Environment of deepq and reinforce (cartpole, mountaincar, acrobot, pendulum)")

	for key, flag := range map[string]string{
		"seed":      "seed",
		"steps":     "steps",
		"episodes":  "episodes",
		"out":       "out",
		"log_level": "log-level",
		"progress":  "progress",
		"env":       "env",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		newAlgorithmCmd(v, &configFile, config.DeepQ,
			"Train a double DQN agent on a classic control task", runDeepQ),
		newAlgorithmCmd(v, &configFile, config.Reinforce,
			"Train a REINFORCE agent with a baseline on a classic control task",
			runReinforce),
		newAlgorithmCmd(v, &configFile, config.TD,
			"Learn the value function of the random walk with TD(0)",
			runTD),
	)
	return root
}

// runFunc trains an agent as configured by r
type runFunc func(ctx context.Context, r *run) error

func newAlgorithmCmd(v *viper.Viper, configFile *string, algorithm,
	short string, f runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   algorithm,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, algorithm, *configFile)
			if err != nil {
				return err
			}

			tty := isatty.IsTerminal(os.Stderr.Fd())
			logger := newLogger(os.Stderr, cfg.LogLevel, tty)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt,
				syscall.SIGTERM)
			defer stop()

			r, err := newRun(v, cfg, logger, tty && cfg.Progress)
			if err != nil {
				logger.Error().Err(err).Msg("could not create run")
				return err
			}

			start := time.Now()
			if err := f(ctx, r); err != nil {
				logger.Error().Err(err).Str("dir", r.dir).Msg("run failed")
				return err
			}
			logger.Info().
				Str("dir", r.dir).
				Dur("elapsed", time.Since(start)).
				Msg("run saved")
			return nil
		},
	}
}

// newLogger returns a logger writing human readable output to
// terminals and JSON otherwise
func newLogger(out io.Writer, level string, tty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if tty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Files written to each run directory
const (
	ConfigFile  = "config.yaml"
	ReturnsFile = "returns.bin"
	LengthsFile = "lengths.bin"
	AgentFile   = "agent.bin"
)

// run holds the configuration and output directory of a training run
type run struct {
	cfg      config.Config
	dir      string
	logger   zerolog.Logger
	progress bool
}

// newRun creates a uniquely named run directory under the configured
// output directory and saves the settings of v in it, so that the run
// can be repeated with --config
func newRun(v *viper.Viper, cfg config.Config, logger zerolog.Logger,
	progress bool) (*run, error) {
	id := uuid.New()
	dir := filepath.Join(cfg.Out, cfg.Algorithm+"-"+id.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "newRun: could not create %v", dir)
	}

	logger = logger.With().
		Str("algorithm", cfg.Algorithm).
		Str("run", id.String()).
		Uint64("seed", cfg.Seed).
		Logger()

	r := &run{cfg: cfg, dir: dir, logger: logger, progress: progress}
	if err := v.WriteConfigAs(r.path(ConfigFile)); err != nil {
		return nil, errors.Wrap(err, "newRun: could not save configuration")
	}
	return r, nil
}

// path returns the path of a file in the run directory
func (r *run) path(name string) string {
	return filepath.Join(r.dir, name)
}
