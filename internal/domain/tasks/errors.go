package tasks

import "errors"

var (
	ErrNotFound          = errors.New("task not found")
	ErrSubtaskNotFound   = errors.New("subtask not found")
	ErrForbidden         = errors.New("not allowed to modify this task")
	ErrAssigneeFields    = errors.New("assignees may only change status and goal progress")
	ErrAssigneeNotFound  = errors.New("assignee not found or inactive")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrInvalidPriority   = errors.New("invalid task priority")
	ErrInvalidWeight     = errors.New("subtask weight must not be negative")
	ErrInvalidRating     = errors.New("rating must be between 1 and 10")
	ErrTaskNotCompleted  = errors.New("only completed tasks can be reviewed")
	ErrReviewExists      = errors.New("task already reviewed")
	ErrCommentNotAllowed = errors.New("only the assignee or privileged roles may comment")
	ErrGoalTargetNeeded  = errors.New("quantitative tasks need a goal target")
)
