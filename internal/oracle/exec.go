package oracle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"profbisect/internal/profile"
)

// Decision is the outcome of one live decider invocation.
type Decision struct {
	Verdict  Verdict
	Artifact string // basename of the materialized candidate
	Elapsed  time.Duration
}

// Client judges candidate configurations. Production use is ExecClient; tests
// substitute deterministic doubles.
type Client interface {
	Decide(ctx context.Context, cfg profile.Configuration) (Decision, error)
}

// ExecConfig configures an ExecClient.
type ExecConfig struct {
	// Decider is the path to the external decider executable. It is invoked
	// with a single argument: the path of the candidate profile.
	Decider string
	// ArtifactDir is where candidate profiles are materialized. Defaults to
	// the system temp directory.
	ArtifactDir string
	// Timeout bounds a single decider invocation. Zero means no limit; a
	// full build+test cycle can legitimately take minutes.
	Timeout time.Duration
}

// ExecClient runs the external decider process on materialized candidates.
type ExecClient struct {
	cfg ExecConfig
	log *zap.Logger
}

// NewExecClient creates a client for the given decider.
func NewExecClient(cfg ExecConfig, log *zap.Logger) *ExecClient {
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = os.TempDir()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecClient{cfg: cfg, log: log}
}

// Decide materializes cfg to a temporary artifact, runs the decider on it and
// maps the exit status. The artifact is removed immediately afterwards except
// on a PROBLEM verdict, where it is kept and its path surfaced in the error.
func (c *ExecClient) Decide(ctx context.Context, cfg profile.Configuration) (Decision, error) {
	name := fmt.Sprintf("candidate-%s.prof", uuid.NewString())
	path := filepath.Join(c.cfg.ArtifactDir, name)
	if err := writeArtifact(path, cfg); err != nil {
		return Decision{}, err
	}

	runCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(runCtx, c.cfg.Decider, path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() != nil {
		os.Remove(path)
		return Decision{}, fmt.Errorf("decider did not finish: %w", runCtx.Err())
	}

	status := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			os.Remove(path)
			return Decision{}, fmt.Errorf("run decider %s: %w", c.cfg.Decider, err)
		}
		status = exitErr.ExitCode()
	}

	v, verr := FromExitStatus(status)
	if verr != nil {
		os.Remove(path)
		return Decision{}, verr
	}
	c.log.Debug("decider finished",
		zap.String("verdict", v.String()),
		zap.Duration("elapsed", elapsed),
		zap.Int("items", len(cfg)))

	if v == Problem {
		// Keep the artifact for postmortem debugging.
		return Decision{Verdict: v, Artifact: name, Elapsed: elapsed}, &ProblemError{ArtifactPath: path}
	}
	os.Remove(path)
	return Decision{Verdict: v, Artifact: name, Elapsed: elapsed}, nil
}

func writeArtifact(path string, cfg profile.Configuration) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("materialize candidate: %w", err)
	}
	if err := cfg.WriteText(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("materialize candidate: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("materialize candidate: %w", err)
	}
	return nil
}
