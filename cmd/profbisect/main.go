package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"profbisect/internal/oracle"
)

var (
	// Global flags
	goodProf        string
	badProf         string
	externalDecider string
	outputFile      string
	stateFile       string
	settingsFile    string
	seedFlag        int64
	noResume        bool
	removeState     bool
	skipValidation  bool
	verbose         bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "profbisect",
	Short: "profbisect - determine what makes a bad performance profile bad",
	Long: `profbisect takes a known-good and a known-bad profile (JSON objects
mapping item names to payload text) plus an external decider executable, and
isolates the items - or minimal interacting combinations of items - whose bad
payloads are responsible for the bad behavior.

The decider is invoked with a single argument, the path to a candidate
profile, and answers through its exit status: 0 GOOD, 1 BAD, 125 SKIP,
127 PROBLEM.

Recorded decider verdicts are persisted after every call, so an interrupted
run resumes from its state file without repeating completed decider calls.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runAnalysis,
}

func init() {
	rootCmd.Flags().StringVar(&goodProf, "good-prof", "", "known-good profile (JSON item map) [required]")
	rootCmd.Flags().StringVar(&badProf, "bad-prof", "", "known-bad profile (JSON item map) [required]")
	rootCmd.Flags().StringVar(&externalDecider, "external-decider", "", "executable judging candidate profiles GOOD/BAD/SKIP")
	rootCmd.Flags().StringVar(&outputFile, "analysis-output-file", "", "file for the JSON result report [required]")
	rootCmd.Flags().StringVar(&stateFile, "state-file", "", "resumable-state location (default profbisect_state.json)")
	rootCmd.Flags().StringVar(&settingsFile, "config", "profbisect.yaml", "optional settings file")
	rootCmd.Flags().Int64Var(&seedFlag, "seed", 0, "seed for all randomness (default: current time)")
	rootCmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore any existing state file and start fresh")
	rootCmd.Flags().BoolVar(&removeState, "remove-state-on-completion", false, "delete the state file after a successful run instead of archiving it")
	rootCmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "skip the baseline GOOD/BAD sanity probes")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	_ = rootCmd.MarkFlagRequired("good-prof")
	_ = rootCmd.MarkFlagRequired("bad-prof")
	_ = rootCmd.MarkFlagRequired("analysis-output-file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, oracle.ErrInterrupted) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
