package oracle

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"profbisect/internal/journal"
	"profbisect/internal/profile"
	"profbisect/internal/state"
)

// Evaluator is the oracle surface the search engines and consistency checks
// consume. record distinguishes search probes, which are persisted and
// replayed positionally on resume, from verification-only calls.
type Evaluator interface {
	Evaluate(ctx context.Context, cfg profile.Configuration, record bool) (Verdict, error)
}

// Recorder wraps a Client with positional call recording. Recorded calls are
// persisted to the state store before Evaluate returns and are satisfied from
// history on resume without spawning the decider. Unrecorded calls are
// verification-only: never persisted, re-executed every time.
type Recorder struct {
	client  Client
	store   *state.Store
	journal *journal.Journal
	runID   string
	stop    *atomic.Bool
	source  string
	calls   *atomic.Int64 // shared across WithSource views
	log     *zap.Logger
}

// NewRecorder builds a recorder over client. stop, journal and log may be nil.
func NewRecorder(client Client, store *state.Store, jn *journal.Journal, runID string, stop *atomic.Bool, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		client:  client,
		store:   store,
		journal: jn,
		runID:   runID,
		stop:    stop,
		source:  "bisect",
		calls:   new(atomic.Int64),
		log:     log,
	}
}

// WithSource returns a view of the recorder that tags journal entries with the
// given source. The underlying client, state and history are shared.
func (r *Recorder) WithSource(source string) *Recorder {
	cp := *r
	cp.source = source
	return &cp
}

// Evaluate judges one candidate configuration. With record set, the call
// either replays the next history entry or executes live and persists its
// verdict before returning. With record unset the call always executes live
// and leaves no trace in the state file.
func (r *Recorder) Evaluate(ctx context.Context, cfg profile.Configuration, record bool) (Verdict, error) {
	if r.stop != nil && r.stop.Load() {
		return 0, ErrInterrupted
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if record && r.store.Replaying() {
		raw, ok, err := r.store.NextReplay()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("replay queue drained unexpectedly")
		}
		v, err := FromExitStatus(raw)
		if err != nil || v == Problem {
			// Fatal verdicts are never appended, so one in the file means
			// the file does not come from this tool.
			return 0, &state.CorruptError{Path: r.store.Path(), Err: fmt.Errorf("recorded verdict %d is not replayable", raw)}
		}
		seq := int(r.calls.Add(1))
		r.log.Debug("verdict replayed from state",
			zap.Int("call", seq),
			zap.String("verdict", v.String()))
		r.journal.Record(journal.Entry{
			RunID:    r.runID,
			Seq:      seq,
			Source:   r.source,
			Verdict:  v.String(),
			Replayed: true,
		})
		return v, nil
	}

	d, err := r.client.Decide(ctx, cfg)
	if err != nil {
		return d.Verdict, err
	}
	if record {
		if err := r.store.Append(int(d.Verdict)); err != nil {
			return 0, err
		}
	}
	seq := int(r.calls.Add(1))
	r.log.Debug("decider call",
		zap.Int("call", seq),
		zap.String("verdict", d.Verdict.String()),
		zap.Bool("recorded", record),
		zap.Duration("elapsed", d.Elapsed))
	r.journal.Record(journal.Entry{
		RunID:    r.runID,
		Seq:      seq,
		Source:   r.source,
		Verdict:  d.Verdict.String(),
		Duration: d.Elapsed,
		Artifact: d.Artifact,
	})
	return d.Verdict, nil
}
