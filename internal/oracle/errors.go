package oracle

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned when a stop was requested before a new decider
// call started. Recorded state is already flushed; the run is resumable.
var ErrInterrupted = errors.New("run interrupted; state saved, rerun to resume")

// ProtocolError reports a decider exit status outside the 0/1/125/127 table.
type ProtocolError struct {
	Status int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("external decider returned unexpected exit status %d", e.Status)
}

// ProblemError reports that the decider judged its own invocation broken
// (exit status 127). The candidate artifact is preserved for postmortem
// debugging and its path carried here.
type ProblemError struct {
	ArtifactPath string
}

func (e *ProblemError) Error() string {
	return fmt.Sprintf("external decider reported PROBLEM; offending profile kept at %s", e.ArtifactPath)
}
