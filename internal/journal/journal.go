// Package journal keeps a SQLite audit trail of every decider invocation,
// live or replayed, for postmortem analysis of long bisection runs. The
// journal is strictly observational: the search engines never read it and a
// broken journal never fails a run.
package journal

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Entry is one decider invocation.
type Entry struct {
	RunID    string
	Seq      int
	Source   string // "bisect", "range" or "check"
	Verdict  string
	Replayed bool
	Duration time.Duration
	Artifact string // artifact filename, empty for replayed calls
}

// Journal records oracle calls to a SQLite database.
type Journal struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating if needed) the journal database and ensures its schema.
func Open(path string, log *zap.Logger) (*Journal, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS oracle_calls (
		run_id      TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		source      TEXT NOT NULL,
		verdict     TEXT NOT NULL,
		replayed    BOOLEAN NOT NULL,
		duration_ms INTEGER NOT NULL,
		artifact    TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_oracle_calls_run ON oracle_calls(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, log: log}, nil
}

// Record appends one entry. Errors are logged and swallowed; auditing must
// never change the outcome of a run.
func (j *Journal) Record(e Entry) {
	if j == nil {
		return
	}
	_, err := j.db.Exec(
		`INSERT INTO oracle_calls (run_id, seq, source, verdict, replayed, duration_ms, artifact)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Seq, e.Source, e.Verdict, e.Replayed, e.Duration.Milliseconds(), e.Artifact,
	)
	if err != nil {
		j.log.Warn("journal write failed", zap.Error(err))
	}
}

// Close closes the underlying database. Safe on a nil journal.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
