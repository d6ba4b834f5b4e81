package gar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wink/internal/domain/tasks"
)

func ptr[T any](v T) *T { return &v }

func TestTaskProgress(t *testing.T) {
	tests := []struct {
		name     string
		task     Task
		subtasks []Subtask
		want     float64
	}{
		{
			name: "quantitative partial",
			task: Task{IsQuantitative: true, GoalTarget: ptr(200.0), GoalProgress: ptr(50.0)},
			want: 0.25,
		},
		{
			name: "quantitative over target is capped",
			task: Task{IsQuantitative: true, GoalTarget: ptr(10.0), GoalProgress: ptr(25.0)},
			want: 1,
		},
		{
			name: "quantitative zero target",
			task: Task{IsQuantitative: true, GoalTarget: ptr(0.0), GoalProgress: ptr(5.0)},
			want: 0,
		},
		{
			name: "quantitative missing progress",
			task: Task{IsQuantitative: true, GoalTarget: ptr(10.0)},
			want: 0,
		},
		{
			name: "quantitative negative progress floors at zero",
			task: Task{IsQuantitative: true, GoalTarget: ptr(10.0), GoalProgress: ptr(-3.0)},
			want: 0,
		},
		{
			name:     "quantitative ignores subtasks",
			task:     Task{IsQuantitative: true, GoalTarget: ptr(4.0), GoalProgress: ptr(1.0)},
			subtasks: []Subtask{{Weight: 1, Completed: true}},
			want:     0.25,
		},
		{
			name: "no subtasks completed",
			task: Task{Status: tasks.StatusCompleted},
			want: 1,
		},
		{
			name: "no subtasks in progress",
			task: Task{Status: tasks.StatusInProgress},
			want: 0.5,
		},
		{
			name: "no subtasks pending",
			task: Task{Status: tasks.StatusPending},
			want: 0,
		},
		{
			name: "no subtasks under review",
			task: Task{Status: tasks.StatusUnderReview},
			want: 0,
		},
		{
			name:     "weighted subtasks",
			task:     Task{Status: tasks.StatusInProgress},
			subtasks: []Subtask{
				{Weight: 3, Completed: true},
				{Weight: 1, Completed: false},
			},
			want: 0.75,
		},
		{
			name:     "zero weight subtasks",
			task:     Task{Status: tasks.StatusCompleted},
			subtasks: []Subtask{
				{Weight: 0, Completed: true},
				{Weight: 0, Completed: false},
			},
			want: 0,
		},
		{
			name:     "subtasks override status heuristic",
			task:     Task{Status: tasks.StatusCompleted},
			subtasks: []Subtask{
				{Weight: 1, Completed: false},
			},
			want: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TaskProgress(tc.task, tc.subtasks)
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestCompletedOnTime(t *testing.T) {
	deadline := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)

	assert.True(t, completedOnTime(Task{}), "no deadline and no completion counts as on time")
	assert.True(t, completedOnTime(Task{CompletedAt: ptr(deadline.Add(48 * time.Hour))}), "no deadline counts as on time")
	assert.True(t, completedOnTime(Task{Deadline: &deadline}), "no completion timestamp counts as on time")
	assert.True(t, completedOnTime(Task{Deadline: &deadline, CompletedAt: &deadline}), "completion at the deadline is on time")
	assert.False(t, completedOnTime(Task{Deadline: &deadline, CompletedAt: ptr(deadline.Add(time.Second))}))
}
