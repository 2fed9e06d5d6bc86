// Package status defines the lifecycle states of a tracked run.
package status

import "fmt"

// ExecutionStatus is the lifecycle state of a tracked run. The zero value
// is Unsubmitted, the state of a run that has not been launched yet.
//
// Transitions: Unsubmitted -> Running on launch; Running -> Completed on
// exit code zero; Running -> Failed on nonzero exit; Running -> Cancelled
// when a cancel request was recorded before the child exited. Unknown is
// reachable from any non-terminal state when the underlying process cannot
// be inspected. No transition leaves a terminal state.
type ExecutionStatus int

const (
	Unsubmitted ExecutionStatus = iota
	Running
	Completed
	Cancelled
	Failed
	Unknown
)

var names = [...]string{
	Unsubmitted: "unsubmitted",
	Running:     "running",
	Completed:   "completed",
	Cancelled:   "cancelled",
	Failed:      "failed",
	Unknown:     "unknown",
}

func (s ExecutionStatus) String() string {
	if s < 0 || int(s) >= len(names) {
		return fmt.Sprintf("ExecutionStatus(%d)", int(s))
	}
	return names[s]
}

// IsTerminal reports whether no further transition can occur.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case Completed, Cancelled, Failed:
		return true
	}
	return false
}

// Parse converts a status name as produced by String back to a status.
func Parse(text string) (ExecutionStatus, error) {
	for i, name := range names {
		if name == text {
			return ExecutionStatus(i), nil
		}
	}
	return Unknown, fmt.Errorf("unrecognized execution status %q", text)
}

// MarshalText implements encoding.TextMarshaler for JSON and YAML surfaces.
func (s ExecutionStatus) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(names) {
		return nil, fmt.Errorf("invalid execution status %d", int(s))
	}
	return []byte(names[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ExecutionStatus) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
