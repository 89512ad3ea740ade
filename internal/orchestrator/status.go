package orchestrator

import "github.com/distnet/coordinator/internal/models"

// CompletionPolicy decides the aggregate status of a task whose workers
// have all finished. The original behavior marks any fully-terminal
// task completed; FailOnWorkerFailure instead marks the task failed as
// soon as all workers are done and at least one of them failed.
type CompletionPolicy struct {
	FailOnWorkerFailure bool
}

// DeriveTaskStatus is the single place aggregate task status is
// computed from assignment statuses. Every mutation path re-runs it.
//
//   - all assignments terminal and all stopped  -> stopped
//   - all assignments terminal, any failed      -> failed (policy) or completed
//   - all assignments terminal otherwise        -> completed
//   - any assignment past pending               -> running
//   - otherwise                                 -> pending
func DeriveTaskStatus(assignments []models.Assignment, policy CompletionPolicy) models.TaskStatus {
	if len(assignments) == 0 {
		return models.TaskStatusPending
	}

	allTerminal := true
	allStopped := true
	anyFailed := false
	anyStarted := false

	for _, a := range assignments {
		if !a.Status.Terminal() {
			allTerminal = false
		}
		if a.Status != models.AssignmentStatusStopped {
			allStopped = false
		}
		if a.Status == models.AssignmentStatusFailed {
			anyFailed = true
		}
		if a.Status != models.AssignmentStatusPending {
			anyStarted = true
		}
	}

	switch {
	case allTerminal && allStopped:
		return models.TaskStatusStopped
	case allTerminal && anyFailed && policy.FailOnWorkerFailure:
		return models.TaskStatusFailed
	case allTerminal:
		return models.TaskStatusCompleted
	case anyStarted:
		return models.TaskStatusRunning
	default:
		return models.TaskStatusPending
	}
}
