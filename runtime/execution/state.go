package execution

// RunState represents the current state of a machine run.
type RunState string

const (
	RunStatePending RunState = "pending"
	RunStateRunning RunState = "running"
	// RunStateWaitForDecision indicates the run has enumerated its tools and
	// is waiting for the decider to pick one.
	RunStateWaitForDecision RunState = "waitForDecision"
	RunStateCompleted       RunState = "completed"
	RunStateFailed          RunState = "failed"
	RunStateCancelled       RunState = "cancelled"
)

// IsTerminal reports whether the run can no longer make progress.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateCancelled:
		return true
	}
	return false
}

func (s RunState) IsWaitForDecision() bool {
	return s == RunStateWaitForDecision
}
