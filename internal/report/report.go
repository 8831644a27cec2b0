// Package report defines the JSON result document handed to external report
// writers, and writes it atomically so consumers never observe a partial file.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"profbisect/internal/bisect"
)

// BisectResults is the culprit section of the report.
type BisectResults struct {
	Individuals []string   `json:"individuals"`
	Ranges      [][]string `json:"ranges"`
}

// Report is the complete result document for one run.
type Report struct {
	Seed          int64         `json:"seed"`
	BisectResults BisectResults `json:"bisect_results"`
	// GoodOnlyFunctions is true when adding the good-only items heals the
	// bad profile; BadOnlyFunctions when adding the bad-only items infects
	// the good one.
	GoodOnlyFunctions bool `json:"good_only_functions"`
	BadOnlyFunctions  bool `json:"bad_only_functions"`
}

// New assembles a report. Empty culprit collections marshal as [], not null.
func New(seed int64, res bisect.Result, goodHealsBad, badInfectsGood bool) Report {
	individuals := res.Individuals
	if individuals == nil {
		individuals = []string{}
	}
	ranges := res.Ranges
	if ranges == nil {
		ranges = [][]string{}
	}
	return Report{
		Seed:              seed,
		BisectResults:     BisectResults{Individuals: individuals, Ranges: ranges},
		GoodOnlyFunctions: goodHealsBad,
		BadOnlyFunctions:  badInfectsGood,
	}
}

// Write serializes the report to path via temp-file-then-rename.
func (r Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
