// Package config loads the configuration of a training run from
// defaults, an optional YAML or JSON file, RLTRAIN_* environment
// variables, and command line flags, in increasing order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/agent/deepq"
	"github.com/samuelfneumann/rltrain/agent/reinforce"
	"github.com/samuelfneumann/rltrain/agent/td"
)

// EnvPrefix prefixes every environment variable read by the
// configuration, e.g. RLTRAIN_STEPS or RLTRAIN_DEEPQ_GAMMA
const EnvPrefix = "RLTRAIN"

// Control environments DQN and REINFORCE can be trained on
const (
	Cartpole    = "cartpole"
	MountainCar = "mountaincar"
	Acrobot     = "acrobot"
	Pendulum    = "pendulum"
)

// ControlEnvs lists the control environments
var ControlEnvs = []string{Cartpole, MountainCar, Acrobot, Pendulum}

// Algorithms which can be configured
const (
	DeepQ     = "deepq"
	Reinforce = "reinforce"
	TD        = "td"
)

// Experiment configures the environment and the loop driving an agent
type Experiment struct {
	Seed uint64 `mapstructure:"seed"`

	// Limits of the run, 0 means no limit
	Steps    int `mapstructure:"steps"`
	Episodes int `mapstructure:"episodes"`

	// Environment of DQN and REINFORCE, one of ControlEnvs
	Env string `mapstructure:"env"`

	// Maximum number of steps per training episode. Ignored by the
	// random walk, whose episodes only end at either end.
	EpisodeSteps int `mapstructure:"episode_steps"`

	// Evaluation on a separate environment, disabled if EvalEvery is 0
	EvalEvery        int `mapstructure:"eval_every"`
	EvalEpisodes     int `mapstructure:"eval_episodes"`
	EvalEpisodeSteps int `mapstructure:"eval_episode_steps"`

	// Steps between checkpoints, 0 disables checkpointing. REINFORCE
	// instead checkpoints after each episode whose return beats the mean
	// return so far, as long as CheckpointEvery is positive.
	CheckpointEvery int `mapstructure:"checkpoint_every"`
	LogEvery        int `mapstructure:"log_every"`

	// Random walk
	WalkStates int `mapstructure:"walk_states"`
	WalkGroups int `mapstructure:"walk_groups"`

	Out      string `mapstructure:"out"`
	LogLevel string `mapstructure:"log_level"`
	Progress bool   `mapstructure:"progress"`
}

// Config is the full configuration of a training run of one algorithm
type Config struct {
	Algorithm  string `mapstructure:"-"`
	Experiment `mapstructure:",squash"`

	DeepQ     deepq.Config     `mapstructure:"deepq"`
	Reinforce reinforce.Config `mapstructure:"reinforce"`
	TD        td.Config        `mapstructure:"td"`
}

// Default returns the default configuration of an algorithm
func Default(algorithm string) (Config, error) {
	exp := Experiment{
		Env:        Cartpole,
		Out:        "results",
		LogLevel:   "info",
		LogEvery:   1000,
		WalkStates: 1000,
		WalkGroups: 100,
	}

	switch algorithm {
	case DeepQ:
		exp.Steps = 250000
		exp.EpisodeSteps = 500
		exp.EvalEvery = 1000
		exp.EvalEpisodes = 10
		exp.EvalEpisodeSteps = 1000
		exp.CheckpointEvery = 10000

	case Reinforce:
		exp.Episodes = 1000
		exp.EpisodeSteps = 500
		exp.CheckpointEvery = 1

	case TD:
		exp.Episodes = 200

	default:
		return Config{}, agent.NewConfigurationError("default", "unknown "+
			"algorithm \n\twant(%v, %v, %v) \n\thave(%v)", DeepQ,
			Reinforce, TD, algorithm)
	}

	return Config{
		Algorithm:  algorithm,
		Experiment: exp,
		DeepQ:      deepq.DefaultConfig(),
		Reinforce:  reinforce.DefaultConfig(),
		TD:         td.DefaultConfig(),
	}, nil
}

// NewViper returns a viper instance which reads RLTRAIN_* environment
// variables. Nested keys use underscores, so that deepq.gamma is read
// from RLTRAIN_DEEPQ_GAMMA.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load returns the configuration of algorithm. Values in file, which
// may be empty, override the defaults. Environment variables and any
// flags bound to v override the file.
func Load(v *viper.Viper, algorithm, file string) (Config, error) {
	cfg, err := Default(algorithm)
	if err != nil {
		return Config{}, err
	}

	// Viper only unmarshals keys it knows of, so every field needs a
	// default for environment variables to be read
	if err := setDefaults(v, "", cfg.Experiment); err != nil {
		return Config{}, errors.Wrap(err, "load")
	}
	if err := setDefaults(v, DeepQ, cfg.DeepQ); err != nil {
		return Config{}, errors.Wrap(err, "load")
	}
	if err := setDefaults(v, Reinforce, cfg.Reinforce); err != nil {
		return Config{}, errors.Wrap(err, "load")
	}
	if err := setDefaults(v, TD, cfg.TD); err != nil {
		return Config{}, errors.Wrap(err, "load")
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "load: could not read %v",
				file)
		}
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		jsonHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, errors.Wrap(err, "load")
	}
	cfg.Algorithm = algorithm

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "load")
	}
	return cfg, nil
}

// setDefaults registers each field of the struct in with v as a
// default under prefix. Fields which marshal to JSON themselves, such
// as solvers, are registered as nested maps so that each of their
// values can be overridden on its own.
func setDefaults(v *viper.Viper, prefix string, in interface{}) error {
	fields := make(map[string]interface{})
	if err := mapstructure.Decode(in, &fields); err != nil {
		return err
	}
	for key, value := range fields {
		if prefix != "" {
			key = prefix + "." + key
		}
		if _, ok := value.(json.Marshaler); ok || isStructPtr(value) {
			nested, err := toMap(value)
			if err != nil {
				return errors.Wrapf(err, "setDefaults: %v", key)
			}
			value = nested
		}
		v.SetDefault(key, value)
	}
	return nil
}

func isStructPtr(value interface{}) bool {
	t := reflect.TypeOf(value)
	return t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}

// toMap converts value to the generic form encoding/json decodes it to
func toMap(value interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	m := make(map[string]interface{})
	return m, json.Unmarshal(data, &m)
}

var jsonUnmarshaler = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()

// jsonHook decodes maps into structs which implement json.Unmarshaler,
// such as solvers and weight initializers, through their UnmarshalJSON
// method. Numeric strings, as read from environment variables, are
// decoded as numbers.
func jsonHook(from, to reflect.Type, data interface{}) (interface{},
	error) {
	if to.Kind() != reflect.Struct || !reflect.PtrTo(to).Implements(jsonUnmarshaler) {
		return data, nil
	}
	if from.Kind() != reflect.Map {
		return data, nil
	}

	raw, err := json.Marshal(parseNumbers(data))
	if err != nil {
		return nil, err
	}
	out := reflect.New(to)
	if err := out.Interface().(json.Unmarshaler).UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return out.Elem().Interface(), nil
}

// parseNumbers returns a copy of data with every string leaf that
// parses as a number replaced by that number
func parseNumbers(data interface{}) interface{} {
	switch d := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(d))
		for k, v := range d {
			out[k] = parseNumbers(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(d))
		for k, v := range d {
			out[fmt.Sprint(k)] = parseNumbers(v)
		}
		return out
	case string:
		if f, err := strconv.ParseFloat(d, 64); err == nil {
			return f
		}
	}
	return data
}

// Validate checks the experiment settings and the configuration of the
// chosen algorithm
func (c Config) Validate() error {
	if err := c.Experiment.Validate(); err != nil {
		return err
	}

	switch c.Algorithm {
	case DeepQ, Reinforce:
		if !isControlEnv(c.Env) {
			return agent.NewConfigurationError("validate", "unknown "+
				"environment \n\twant(%v) \n\thave(%v)", ControlEnvs,
				c.Env)
		}
		if c.EpisodeSteps <= 0 {
			return agent.NewConfigurationError("validate", "control "+
				"episodes need a positive step limit \n\thave(%v)",
				c.EpisodeSteps)
		}
		if c.Algorithm == DeepQ {
			return c.DeepQ.Validate()
		}
		return c.Reinforce.Validate()
	case TD:
		if c.WalkGroups <= 0 || c.WalkGroups > c.WalkStates {
			return agent.NewConfigurationError("validate", "number of "+
				"groups must be in [1, %v] \n\thave(%v)", c.WalkStates,
				c.WalkGroups)
		}
		return c.TD.Validate()
	}
	return agent.NewConfigurationError("validate", "unknown algorithm "+
		"\n\thave(%v)", c.Algorithm)
}

// Validate checks the limits and intervals of an Experiment
func (e Experiment) Validate() error {
	switch {
	case e.Steps < 0 || e.Episodes < 0 || (e.Steps == 0 && e.Episodes == 0):
		return agent.NewConfigurationError("validate", "step and episode "+
			"limits must be non-negative and not both 0 \n\thave(steps: "+
			"%v, episodes: %v)", e.Steps, e.Episodes)
	case e.EpisodeSteps < 0:
		return agent.NewConfigurationError("validate", "episode steps "+
			"must be non-negative \n\thave(%v)", e.EpisodeSteps)
	case e.EvalEvery < 0:
		return agent.NewConfigurationError("validate", "evaluation "+
			"interval must be non-negative \n\thave(%v)", e.EvalEvery)
	case e.EvalEvery > 0 && (e.EvalEpisodes <= 0 || e.EvalEpisodeSteps <= 0):
		return agent.NewConfigurationError("validate", "evaluation "+
			"needs a positive number of episodes and episode steps "+
			"\n\thave(episodes: %v, steps: %v)", e.EvalEpisodes,
			e.EvalEpisodeSteps)
	case e.CheckpointEvery < 0 || e.LogEvery < 0:
		return agent.NewConfigurationError("validate", "checkpoint and "+
			"log intervals must be non-negative \n\thave(checkpoint: %v, "+
			"log: %v)", e.CheckpointEvery, e.LogEvery)
	case e.Out == "":
		return agent.NewConfigurationError("validate", "output "+
			"directory must be set")
	}

	if _, err := zerolog.ParseLevel(e.LogLevel); err != nil {
		return agent.NewConfigurationError("validate", "invalid log level "+
			"\n\thave(%v)", e.LogLevel)
	}
	return nil
}

func isControlEnv(name string) bool {
	for _, e := range ControlEnvs {
		if name == e {
			return true
		}
	}
	return false
}
