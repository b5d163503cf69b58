package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/validation"
)

// Config holds the recommendation engine settings. Storage location and
// debug mode come from CLI flags, not from here.
type Config struct {
	Bandit    BanditConfig    `koanf:"bandit"`
	Recommend RecommendConfig `koanf:"recommend"`
	Log       LogConfig       `koanf:"log"`

	// Source is the settings file that was loaded, empty when none was found.
	Source string `koanf:"-"`
}

type BanditConfig struct {
	Root       string        `koanf:"root" validate:"required"`     // directory holding trial workspaces
	Template   string        `koanf:"template" validate:"required"` // workspace cloned for every trial
	Java       string        `koanf:"java" validate:"required"`
	Jar        string        `koanf:"jar" validate:"required"` // relative to the trial directory unless absolute
	Trees      int           `koanf:"trees" validate:"min=1"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	KeepTrials int           `koanf:"keep_trials" validate:"min=0"` // 0 keeps every trial
	Breaker    BreakerConfig `koanf:"breaker"`
}

type BreakerConfig struct {
	Failures uint32        `koanf:"failures" validate:"min=1"`
	Cooldown time.Duration `koanf:"cooldown" validate:"gt=0"`
}

type RecommendConfig struct {
	RetrainEvery  int     `koanf:"retrain_every" validate:"min=1"`
	TrainFraction float64 `koanf:"train_fraction" validate:"gt=0,lt=1"`
	Seed          uint64  `koanf:"seed"` // 0 seeds from the clock
}

type LogConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the built-in settings for a given config directory.
func Default(configDir string) *Config {
	root := filepath.Join(configDir, constants.DefaultTrialDirName)
	return &Config{
		Bandit: BanditConfig{
			Root:       root,
			Template:   filepath.Join(root, constants.DefaultTemplateName),
			Java:       constants.DefaultJavaBinary,
			Jar:        constants.DefaultBoostSRLJar,
			Trees:      constants.DefaultTrees,
			Timeout:    constants.DefaultOracleTimeout,
			KeepTrials: constants.DefaultKeepTrials,
			Breaker: BreakerConfig{
				Failures: constants.DefaultBreakerFailures,
				Cooldown: constants.DefaultBreakerCooldown,
			},
		},
		Recommend: RecommendConfig{
			RetrainEvery:  constants.DefaultRetrainEvery,
			TrainFraction: constants.DefaultTrainFraction,
		},
	}
}

// Load layers defaults, the settings file and PLATEWISE_* environment
// variables, in that order of precedence (env wins).
//
// When path is empty, <configDir>/settings.yaml is used if it exists. An
// explicit path that does not exist is an error.
func Load(configDir, path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(configDir), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	source := path
	if source == "" {
		candidate := filepath.Join(configDir, constants.DefaultSettingsFile)
		if _, err := os.Stat(candidate); err == nil {
			source = candidate
		}
	} else if _, err := os.Stat(source); err != nil {
		return nil, apperrors.Configuration("settings file %s: %v", source, err)
	}

	if source != "" {
		if err := k.Load(file.Provider(source), yaml.Parser()); err != nil {
			return nil, apperrors.Configuration("failed to load settings file %s: %v", source, err)
		}
	}

	// PLATEWISE_BANDIT__KEEP_TRIALS -> bandit.keep_trials
	if err := k.Load(env.Provider(constants.EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, apperrors.Configuration("failed to decode settings: %v", err)
	}
	cfg.Source = source

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, constants.EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks field ranges and returns a configuration error listing every problem.
func (c *Config) Validate() error {
	result := validation.ValidationResult{Conflicts: validation.Struct(c)}
	return result.Err()
}

// JarPath resolves the classifier jar for a trial directory.
func (b BanditConfig) JarPath(trialDir string) string {
	if filepath.IsAbs(b.Jar) {
		return b.Jar
	}
	return filepath.Join(trialDir, b.Jar)
}
