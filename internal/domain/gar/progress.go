package gar

import "wink/internal/domain/tasks"

// TaskProgress returns the fraction of a task that is done, in [0,1].
// Quantitative tasks use goal_progress/goal_target. Other tasks use the
// completed share of subtask weight, or a status heuristic when the task
// has no subtasks.
func TaskProgress(task Task, subtasks []Subtask) float64 {
	if task.IsQuantitative {
		if task.GoalTarget == nil || *task.GoalTarget <= 0 || task.GoalProgress == nil {
			return 0
		}
		return clamp01(*task.GoalProgress / *task.GoalTarget)
	}

	if len(subtasks) == 0 {
		switch task.Status {
		case tasks.StatusCompleted:
			return 1
		case tasks.StatusInProgress:
			return 0.5
		default:
			return 0
		}
	}

	var total, done float64
	for _, st := range subtasks {
		total += st.Weight
		if st.Completed {
			done += st.Weight
		}
	}
	if total <= 0 {
		return 0
	}
	return clamp01(done / total)
}

// completedOnTime decides timeliness for a completed task. Missing deadline
// or completion data is treated as on time.
func completedOnTime(task Task) bool {
	if task.Deadline == nil || task.CompletedAt == nil {
		return assumeOnTimeWhenUnknown
	}
	return !task.CompletedAt.After(*task.Deadline)
}

// assumeOnTimeWhenUnknown is the optimistic default for tasks that lack the
// timestamps needed to judge lateness.
const assumeOnTimeWhenUnknown = true

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
