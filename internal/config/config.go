// Package config loads the optional profbisect settings file. Settings supply
// defaults only; command-line flags always win.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds the tunables a site may want to pin once instead of passing
// on every invocation.
type Settings struct {
	// ExternalDecider is the default decider executable.
	ExternalDecider string `yaml:"external_decider"`
	// StateFile is the default resumable-state location.
	StateFile string `yaml:"state_file"`
	// JournalFile enables the SQLite oracle-call journal when set.
	JournalFile string `yaml:"journal_file"`
	// ArtifactDir is where candidate profiles are materialized.
	ArtifactDir string `yaml:"artifact_dir"`
	// RangeTrials overrides the range search budget when positive.
	RangeTrials int `yaml:"range_trials"`
	// DeciderTimeout bounds one decider call, e.g. "45m". Empty disables.
	DeciderTimeout string `yaml:"decider_timeout"`
	// SkipValidation disables the baseline sanity probes.
	SkipValidation bool `yaml:"skip_validation"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		StateFile: "profbisect_state.json",
	}
}

// Load reads settings from a YAML file, layered over Default. A missing file
// is not an error; a malformed one is.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}

// Timeout parses DeciderTimeout. Empty means no limit.
func (s Settings) Timeout() (time.Duration, error) {
	if s.DeciderTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.DeciderTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid decider_timeout %q: %w", s.DeciderTimeout, err)
	}
	return d, nil
}
