package bisect

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"profbisect/internal/oracle"
	"profbisect/internal/profile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// oracleFunc adapts a plain judging function to the oracle surface.
type oracleFunc func(cfg profile.Configuration) oracle.Verdict

func (f oracleFunc) Evaluate(_ context.Context, cfg profile.Configuration, _ bool) (oracle.Verdict, error) {
	return f(cfg), nil
}

// testProfiles builds good/bad baselines sharing items f1..fn.
func testProfiles(n int) (profile.Configuration, profile.Configuration) {
	good := make(profile.Configuration, n)
	bad := make(profile.Configuration, n)
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("f%d", i)
		good[name] = "good"
		bad[name] = "bad"
	}
	return good, bad
}

func newTestEngine(good, bad profile.Configuration, ev oracle.Evaluator, seed int64) *Engine {
	rng := rand.New(rand.NewSource(seed))
	return NewEngine(good, bad, ev, nil, rng, nil)
}

func TestSingleCulprit(t *testing.T) {
	good, bad := testProfiles(8)
	// BAD whenever f3's bad payload is present, regardless of others.
	ev := oracleFunc(func(cfg profile.Configuration) oracle.Verdict {
		if cfg["f3"] == "bad" {
			return oracle.Bad
		}
		return oracle.Good
	})

	for seed := int64(1); seed <= 5; seed++ {
		engine := newTestEngine(good, bad, ev, seed)
		res, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("seed %d: Run failed: %v", seed, err)
		}
		if diff := cmp.Diff([]string{"f3"}, res.Individuals); diff != "" {
			t.Fatalf("seed %d: individuals mismatch (-want +got):\n%s", seed, diff)
		}
		if len(res.Ranges) != 0 {
			t.Fatalf("seed %d: unexpected ranges: %v", seed, res.Ranges)
		}
	}
}

func TestInteractingPair(t *testing.T) {
	good, bad := testProfiles(8)
	// BAD only when f5 and f6 carry their bad payloads together.
	ev := oracleFunc(func(cfg profile.Configuration) oracle.Verdict {
		if cfg["f5"] == "bad" && cfg["f6"] == "bad" {
			return oracle.Bad
		}
		return oracle.Good
	})

	for seed := int64(1); seed <= 5; seed++ {
		engine := newTestEngine(good, bad, ev, seed)
		res, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("seed %d: Run failed: %v", seed, err)
		}
		if len(res.Individuals) != 0 {
			t.Fatalf("seed %d: unexpected individuals: %v", seed, res.Individuals)
		}
		if len(res.Ranges) != 1 {
			t.Fatalf("seed %d: ranges = %v, want exactly one", seed, res.Ranges)
		}
		// The search is order sensitive, so an unlucky seed may settle on a
		// slightly larger range, but it always contains the pair.
		r := res.Ranges[0]
		if !contains(r, "f5") || !contains(r, "f6") {
			t.Fatalf("seed %d: range %v does not contain the pair", seed, r)
		}
	}
}

func TestDeterminismPerSeed(t *testing.T) {
	good, bad := testProfiles(16)
	ev := oracleFunc(func(cfg profile.Configuration) oracle.Verdict {
		if cfg["f7"] == "bad" && cfg["f12"] == "bad" {
			return oracle.Bad
		}
		return oracle.Good
	})

	first, err := newTestEngine(good, bad, ev, 99).Run(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := newTestEngine(good, bad, ev, 99).Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("same seed produced different results (-first +second):\n%s", diff)
	}
}

func TestSkipHalvesAreNotInvestigated(t *testing.T) {
	good, bad := testProfiles(8)
	ev := oracleFunc(func(cfg profile.Configuration) oracle.Verdict {
		return oracle.Skip
	})

	res, err := newTestEngine(good, bad, ev, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Individuals) != 0 || len(res.Ranges) != 0 {
		t.Fatalf("SKIP verdicts must be inconclusive, got %+v", res)
	}
}

func TestEmptyCommonSet(t *testing.T) {
	good := profile.Configuration{"only_good": "g"}
	bad := profile.Configuration{"only_bad": "b"}
	calls := 0
	ev := oracleFunc(func(cfg profile.Configuration) oracle.Verdict {
		calls++
		return oracle.Good
	})

	res, err := newTestEngine(good, bad, ev, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Individuals) != 0 || len(res.Ranges) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if calls != 0 {
		t.Fatalf("no oracle calls expected for disjoint profiles, got %d", calls)
	}
}

func TestOracleErrorAbortsSearch(t *testing.T) {
	good, bad := testProfiles(8)
	wantErr := &oracle.ProblemError{ArtifactPath: "/tmp/kept.prof"}
	failing := evaluatorFunc(func(ctx context.Context, cfg profile.Configuration, record bool) (oracle.Verdict, error) {
		return oracle.Problem, wantErr
	})

	_, err := newTestEngine(good, bad, failing, 1).Run(context.Background())
	if err != wantErr {
		t.Fatalf("Run error = %v, want the decider's ProblemError", err)
	}
}

// evaluatorFunc adapts a full evaluate function (verdict and error).
type evaluatorFunc func(ctx context.Context, cfg profile.Configuration, record bool) (oracle.Verdict, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, cfg profile.Configuration, record bool) (oracle.Verdict, error) {
	return f(ctx, cfg, record)
}

func contains(items []string, name string) bool {
	for _, it := range items {
		if it == name {
			return true
		}
	}
	return false
}
