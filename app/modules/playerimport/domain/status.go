package importdomain

import "fmt"

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

const (
	StatusCreated   BatchStatus = "created"
	StatusUploaded  BatchStatus = "uploaded"
	StatusParsing   BatchStatus = "parsing"
	StatusStaged    BatchStatus = "staged"
	StatusExecuting BatchStatus = "executing"
	StatusCompleted BatchStatus = "completed"
	StatusFailed    BatchStatus = "failed"
)

// transitions lists every edge of the batch state machine. parsing -> uploaded is the
// release path after a transient failure; executing -> staged is the abort path.
var transitions = map[BatchStatus][]BatchStatus{
	StatusCreated:   {StatusUploaded, StatusFailed},
	StatusUploaded:  {StatusParsing, StatusFailed},
	StatusParsing:   {StatusStaged, StatusUploaded, StatusFailed},
	StatusStaged:    {StatusExecuting},
	StatusExecuting: {StatusCompleted, StatusStaged},
	StatusCompleted: nil,
	StatusFailed:    nil,
}

// ParseBatchStatus converts a stored value into a BatchStatus.
func ParseBatchStatus(s string) (BatchStatus, error) {
	st := BatchStatus(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown batch status %q", s)
	}
	return st, nil
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s BatchStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// HasStagedRows reports whether a batch in this state owns a complete staged row set.
func (s BatchStatus) HasStagedRows() bool {
	switch s {
	case StatusStaged, StatusExecuting, StatusCompleted:
		return true
	}
	return false
}

func (s BatchStatus) String() string { return string(s) }
