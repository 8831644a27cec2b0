// Package check sanity-checks the experiment baselines and probes items that
// live outside the common-item intersection, which the bisection engine
// structurally cannot see. All probes here are verification-only: they are
// never recorded, so a resumed run repeats them live.
package check

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"profbisect/internal/oracle"
	"profbisect/internal/profile"
)

// BaselineError reports that an unmodified baseline did not produce its
// expected verdict; bisection over such baselines would only report noise.
type BaselineError struct {
	Which string // "good" or "bad"
	Want  oracle.Verdict
	Got   oracle.Verdict
}

func (e *BaselineError) Error() string {
	return fmt.Sprintf("supplied %s profile is not actually %s (decider said %s)", e.Which, e.Want, e.Got)
}

// Checker runs the supplementary consistency probes.
type Checker struct {
	good, bad profile.Configuration
	oracle    oracle.Evaluator
	log       *zap.Logger
}

// NewChecker builds a checker over the two baselines.
func NewChecker(good, bad profile.Configuration, ev oracle.Evaluator, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{good: good, bad: bad, oracle: ev, log: log}
}

// ValidateBaselines evaluates both baselines unmodified and fails unless they
// verdict GOOD and BAD respectively.
func (c *Checker) ValidateBaselines(ctx context.Context) error {
	v, err := c.oracle.Evaluate(ctx, c.good, false)
	if err != nil {
		return err
	}
	if v != oracle.Good {
		return &BaselineError{Which: "good", Want: oracle.Good, Got: v}
	}
	v, err = c.oracle.Evaluate(ctx, c.bad, false)
	if err != nil {
		return err
	}
	if v != oracle.Bad {
		return &BaselineError{Which: "bad", Want: oracle.Bad, Got: v}
	}
	c.log.Info("baselines validated")
	return nil
}

// GoodHealsBad reports whether the bad profile becomes GOOD once every item it
// lacks is added in from the good profile. True implies the culprit lives
// among the good-only items.
func (c *Checker) GoodHealsBad(ctx context.Context) (bool, error) {
	v, err := c.oracle.Evaluate(ctx, profile.Union(c.bad, c.good), false)
	if err != nil {
		return false, err
	}
	c.log.Debug("good-heals-bad probe", zap.String("verdict", v.String()))
	return v == oracle.Good, nil
}

// BadInfectsGood reports whether the good profile becomes BAD once every item
// it lacks is added in from the bad profile. True implies the culprit lives
// among the bad-only items.
func (c *Checker) BadInfectsGood(ctx context.Context) (bool, error) {
	v, err := c.oracle.Evaluate(ctx, profile.Union(c.good, c.bad), false)
	if err != nil {
		return false, err
	}
	c.log.Debug("bad-infects-good probe", zap.String("verdict", v.String()))
	return v == oracle.Bad, nil
}
