// Package state persists the durable run state of a bisection: the PRNG seed
// and the ordered verdict history of every recorded decider call. The file is
// rewritten atomically after each recorded call, so an interrupted run loses at
// most the single in-flight call.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// CorruptError reports an unreadable or structurally invalid state file. It is
// fatal and requires manual removal of the file; stale state is never silently
// discarded.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("state file %s is corrupt (remove it to start over): %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

type fileFormat struct {
	Seed               *int64 `json:"seed"`
	AccumulatedResults []int  `json:"accumulated_results"`
}

// Store owns the state file for one run. Not safe for concurrent use; the
// search is strictly sequential by design.
type Store struct {
	path        string
	seed        int64
	pending     []int // unreplayed history, consumed FIFO on resume
	accumulated []int // verdicts persisted so far this run
	log         *zap.Logger
}

// New creates a fresh store with the given seed. Nothing is written until the
// first Append.
func New(path string, seed int64, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, seed: seed, log: log}
}

// Load resumes from an existing state file. The stored seed re-initializes the
// PRNG so a resumed run reproduces the original branch ordering bit for bit.
func Load(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	if f.Seed == nil {
		return nil, &CorruptError{Path: path, Err: fmt.Errorf("missing required key %q", "seed")}
	}
	if f.AccumulatedResults == nil {
		return nil, &CorruptError{Path: path, Err: fmt.Errorf("missing required key %q", "accumulated_results")}
	}
	log.Info("resuming from saved state",
		zap.String("path", path),
		zap.Int64("seed", *f.Seed),
		zap.Int("recorded_calls", len(f.AccumulatedResults)))
	return &Store{path: path, seed: *f.Seed, pending: f.AccumulatedResults, log: log}, nil
}

// Seed returns the seed governing all shuffling for this run.
func (s *Store) Seed() int64 { return s.seed }

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// NextReplay pops the next unconsumed history entry, if any. The consumed
// entry is re-appended to the accumulated buffer and persisted, keeping the
// file a faithful prefix of the run at all times.
func (s *Store) NextReplay() (int, bool, error) {
	if len(s.pending) == 0 {
		return 0, false, nil
	}
	v := s.pending[0]
	s.pending = s.pending[1:]
	if err := s.Append(v); err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// Replaying reports whether unconsumed history remains.
func (s *Store) Replaying() bool { return len(s.pending) > 0 }

// Append records one verdict and rewrites the state file before returning.
func (s *Store) Append(verdict int) error {
	s.accumulated = append(s.accumulated, verdict)
	return s.save()
}

// save writes the full state via temp-file-then-rename in the target
// directory, so a crash mid-write can never truncate the previous state.
func (s *Store) save() error {
	seed := s.seed
	f := fileFormat{Seed: &seed, AccumulatedResults: s.accumulated}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Finish disposes of the state file after a completed run: removed when
// remove is set, otherwise renamed aside so a later invocation starts fresh
// while the history stays available.
func (s *Store) Finish(remove bool) error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil // nothing was ever recorded
	}
	if remove {
		return os.Remove(s.path)
	}
	completed := fmt.Sprintf("%s.completed.%s", s.path, time.Now().Format("2006-01-02"))
	if err := os.Rename(s.path, completed); err != nil {
		return err
	}
	s.log.Info("state file archived", zap.String("path", completed))
	return nil
}
