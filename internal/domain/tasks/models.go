package tasks

import (
	"math"
	"time"
)

type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssigneeID     string     `json:"assigneeId"`
	CreatorID      string     `json:"creatorId"`
	Department     string     `json:"department"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	IsQuantitative bool       `json:"isQuantitative"`
	GoalTarget     *float64   `json:"goalTarget,omitempty"`
	GoalProgress   *float64   `json:"goalProgress,omitempty"`
	MinComments    int        `json:"minComments"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type Subtask struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Title     string    `json:"title"`
	Weight    float64   `json:"weight"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	EmployeeID string    `json:"employeeId"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Review struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	ManagerID string    `json:"managerId"`
	Rating    *float64  `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type CommentStats struct {
	Total                int     `json:"total"`
	Required             int     `json:"required"`
	CompletionPercentage float64 `json:"completionPercentage"`
}

// Details is a task with everything hanging off it.
type Details struct {
	Task
	Subtasks     []Subtask    `json:"subtasks"`
	Comments     []Comment    `json:"comments"`
	Review       *Review      `json:"review,omitempty"`
	CommentStats CommentStats `json:"commentStats"`
}

type CreateInput struct {
	Title          string
	Description    string
	Priority       string
	AssigneeID     string
	Department     string
	Deadline       *time.Time
	IsQuantitative bool
	GoalTarget     *float64
	GoalProgress   *float64
	MinComments    *int
}

// Patch is a partial task update; nil fields are left alone.
type Patch struct {
	Title          *string
	Description    *string
	Status         *string
	Priority       *string
	AssigneeID     *string
	Department     *string
	Deadline       *time.Time
	IsQuantitative *bool
	GoalTarget     *float64
	GoalProgress   *float64
	MinComments    *int

	// Clear flags null the matching nullable column.
	ClearDeadline     bool
	ClearGoalTarget   bool
	ClearGoalProgress bool
}

// onlyAssigneeFields reports whether the patch touches nothing beyond what
// an assignee may change.
func (p Patch) onlyAssigneeFields() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.AssigneeID == nil &&
		p.Department == nil && p.Deadline == nil && p.IsQuantitative == nil && p.GoalTarget == nil &&
		p.MinComments == nil && !p.ClearDeadline && !p.ClearGoalTarget
}

type SubtaskPatch struct {
	Title     *string
	Weight    *float64
	Completed *bool
}

type Filter struct {
	AssigneeID string
	CreatorID  string
	Status     string
	Department string
}

func commentStats(total, required int) CommentStats {
	stats := CommentStats{Total: total, Required: required}
	if required > 0 {
		pct := float64(total) / float64(required) * 100
		stats.CompletionPercentage = math.Round(pct*100) / 100
	}
	return stats
}
