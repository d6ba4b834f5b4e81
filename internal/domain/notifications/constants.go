package notifications

const (
	TypeTaskAssigned = "task_assigned"
	TypeTaskReviewed = "task_reviewed"
)
