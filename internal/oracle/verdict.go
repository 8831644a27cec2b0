// Package oracle invokes the external decider process on candidate
// configurations and maps its exit status to a verdict. The Recorder wrapper
// adds crash-resumable call recording on top of the raw client.
package oracle

import "fmt"

// Verdict is the decider's judgement of one candidate configuration.
type Verdict int

// Verdict values mirror the decider's exit-status protocol.
const (
	Good    Verdict = 0
	Bad     Verdict = 1
	Skip    Verdict = 125
	Problem Verdict = 127
)

func (v Verdict) String() string {
	switch v {
	case Good:
		return "GOOD"
	case Bad:
		return "BAD"
	case Skip:
		return "SKIP"
	case Problem:
		return "PROBLEM"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// FromExitStatus maps a decider exit status to a Verdict. Statuses outside
// the protocol table are a ProtocolError, distinct from Problem.
func FromExitStatus(code int) (Verdict, error) {
	switch code {
	case 0:
		return Good, nil
	case 1:
		return Bad, nil
	case 125:
		return Skip, nil
	case 127:
		return Problem, nil
	}
	return 0, &ProtocolError{Status: code}
}
