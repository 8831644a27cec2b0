package bisect

import (
	"context"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"profbisect/internal/oracle"
	"profbisect/internal/profile"
)

// DefaultTrials is the range search budget: how many shuffled attempts are
// spent looking for a smaller interacting range before settling.
const DefaultTrials = 20

// RangeSearcher isolates a minimal interacting range when neither half of a
// bisection window reproduces BAD on its own. Each trial binary-searches the
// upper and lower borders of the culpable combination; reshuffling between
// trials probes for smaller ranges within the budget.
type RangeSearcher struct {
	good, bad profile.Configuration
	oracle    oracle.Evaluator
	rng       *rand.Rand
	trials    int
	log       *zap.Logger
}

// NewRangeSearcher builds a searcher sharing the run's oracle and RNG.
// trials <= 0 selects DefaultTrials.
func NewRangeSearcher(good, bad profile.Configuration, ev oracle.Evaluator, rng *rand.Rand, trials int, log *zap.Logger) *RangeSearcher {
	if trials <= 0 {
		trials = DefaultTrials
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RangeSearcher{good: good, bad: bad, oracle: ev, rng: rng, trials: trials, log: log}
}

// FindMinimalRange searches items[lo:hi) for the smallest contiguous slice
// (in trial order) whose bad payloads jointly reproduce BAD. The culprit is
// known to straddle the window's midpoint. Returns a sorted range, or an
// empty slice when no trial reproduced BAD.
func (s *RangeSearcher) FindMinimalRange(ctx context.Context, items []string, lo, hi int) ([]string, error) {
	var left, right []string
	var best []string // smallest candidate so far, in concatenation order

	for trial := 0; trial < s.trials; trial++ {
		if len(best) > 0 {
			// Narrow the working halves to the span of the best range,
			// then reshuffle each side to hunt for a smaller one.
			left = left[index(left, best[0]):]
			right = right[:index(right, best[len(best)-1])+1]
			s.rng.Shuffle(len(left), func(i, j int) { left[i], left[j] = left[j], left[i] })
			s.rng.Shuffle(len(right), func(i, j int) { right[i], right[j] = right[j], right[i] })
		} else {
			mid := (lo + hi) / 2
			left = append([]string(nil), items[lo:mid]...)
			right = append([]string(nil), items[mid:hi]...)
		}

		working := make([]string, 0, len(left)+len(right))
		working = append(working, left...)
		working = append(working, right...)
		m := len(left)
		n := len(working)

		// Each probe substitutes exactly working[from:to]; everything else
		// stays at its good payload, so no state leaks between probes.
		probe := func(from, to int) (oracle.Verdict, error) {
			return s.oracle.Evaluate(ctx, profile.Overlay(s.good, s.bad, working[from:to]), true)
		}

		// Upper border: smallest u in (m, n] such that substituting
		// working[0:u] (left half plus a right-half prefix) is BAD.
		upper := -1
		loB, hiB := m, n
		for {
			midB := (loB + hiB) / 2
			if midB == loB || midB == hiB {
				break
			}
			v, err := probe(0, midB)
			if err != nil {
				return nil, err
			}
			if v == oracle.Bad {
				upper, hiB = midB, midB
			} else {
				loB = midB
			}
		}
		if upper < 0 {
			// No partial extension reproduced BAD; confirm the full span
			// before giving up on this shuffle.
			v, err := probe(0, n)
			if err != nil {
				return nil, err
			}
			if v != oracle.Bad {
				continue
			}
			upper = n
		}

		// Lower border: largest l in [0, m) such that working[l:upper] is
		// still BAD; a GOOD probe means the prefix cut too deep.
		lower := 0
		loB, hiB = 0, m
		for {
			midB := (loB + hiB) / 2
			if midB == loB || midB == hiB {
				break
			}
			v, err := probe(midB, upper)
			if err != nil {
				return nil, err
			}
			if v == oracle.Bad {
				lower, loB = midB, midB
			} else {
				hiB = midB
			}
		}

		candidate := append([]string(nil), working[lower:upper]...)
		s.log.Debug("range trial",
			zap.Int("trial", trial),
			zap.Int("size", len(candidate)),
			zap.Int("best", len(best)))
		if len(candidate) == 2 {
			// A range always spans both halves, so two is minimal.
			sort.Strings(candidate)
			return candidate, nil
		}
		if len(best) == 0 || len(candidate) < len(best) {
			best = candidate
		}
	}

	out := append([]string(nil), best...)
	sort.Strings(out)
	return out, nil
}

func index(items []string, name string) int {
	for i, it := range items {
		if it == name {
			return i
		}
	}
	return -1
}
