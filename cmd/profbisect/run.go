package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"profbisect/internal/bisect"
	"profbisect/internal/check"
	"profbisect/internal/config"
	"profbisect/internal/journal"
	"profbisect/internal/oracle"
	"profbisect/internal/profile"
	"profbisect/internal/report"
	"profbisect/internal/state"
)

func runAnalysis(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(settingsFile)
	if err != nil {
		return err
	}
	if externalDecider == "" {
		externalDecider = settings.ExternalDecider
	}
	if externalDecider == "" {
		return fmt.Errorf("no external decider given (--external-decider or settings file)")
	}
	if stateFile == "" {
		stateFile = settings.StateFile
	}
	if !skipValidation {
		skipValidation = settings.SkipValidation
	}
	timeout, err := settings.Timeout()
	if err != nil {
		return err
	}

	good, err := profile.Load(goodProf)
	if err != nil {
		return err
	}
	bad, err := profile.Load(badProf)
	if err != nil {
		return err
	}
	logger.Info("profiles loaded",
		zap.Int("good_items", len(good)),
		zap.Int("bad_items", len(bad)))

	st, err := openState(cmd.Flags().Changed("seed"))
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(st.Seed()))

	var jn *journal.Journal
	if settings.JournalFile != "" {
		jn, err = journal.Open(settings.JournalFile, logger)
		if err != nil {
			// The journal is observational only; a broken one must not
			// stop a multi-hour analysis.
			logger.Warn("journal unavailable", zap.Error(err))
			jn = nil
		} else {
			defer jn.Close()
		}
	}

	// An interrupt lets the in-flight decider call finish and persist, then
	// stops the run before the next call starts. State is already on disk,
	// so rerunning without --no-resume picks up where we left off.
	var stop atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("interrupt received; finishing current decider call")
			stop.Store(true)
		case <-done:
		}
	}()

	client := oracle.NewExecClient(oracle.ExecConfig{
		Decider:     externalDecider,
		ArtifactDir: settings.ArtifactDir,
		Timeout:     timeout,
	}, logger)
	rec := oracle.NewRecorder(client, st, jn, uuid.NewString(), &stop, logger)

	ctx := context.Background()
	checker := check.NewChecker(good, bad, rec.WithSource("check"), logger)
	if !skipValidation {
		if err := checker.ValidateBaselines(ctx); err != nil {
			return err
		}
	}

	search := bisect.NewRangeSearcher(good, bad, rec.WithSource("range"), rng, settings.RangeTrials, logger)
	engine := bisect.NewEngine(good, bad, rec.WithSource("bisect"), search, rng, logger)
	res, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	// The two supplementary probes cover culprits outside the common-item
	// intersection, which the bisection cannot see.
	goodHealsBad, err := checker.GoodHealsBad(ctx)
	if err != nil {
		return err
	}
	badInfectsGood, err := checker.BadInfectsGood(ctx)
	if err != nil {
		return err
	}

	rep := report.New(st.Seed(), res, goodHealsBad, badInfectsGood)
	if err := rep.Write(outputFile); err != nil {
		return err
	}
	if err := st.Finish(removeState); err != nil {
		return err
	}

	fmt.Printf("Analysis complete: %d individual culprit(s), %d problematic range(s)\n",
		len(rep.BisectResults.Individuals), len(rep.BisectResults.Ranges))
	fmt.Printf("Results written to %s (seed %d)\n", outputFile, rep.Seed)
	return nil
}

// openState resumes from the state file unless --no-resume is given or none
// exists. A fresh run seeds from --seed, falling back to the current time;
// a resumed run must not be given a conflicting seed.
func openState(seedSet bool) (*state.Store, error) {
	_, statErr := os.Stat(stateFile)
	resuming := statErr == nil && !noResume
	if resuming {
		if seedSet {
			return nil, fmt.Errorf("--seed cannot be combined with resumption; pass --no-resume to start fresh")
		}
		return state.Load(stateFile, logger)
	}
	seed := seedFlag
	if !seedSet {
		seed = time.Now().Unix()
	}
	logger.Info("starting fresh run", zap.Int64("seed", seed), zap.String("state_file", stateFile))
	return state.New(stateFile, seed, logger), nil
}
