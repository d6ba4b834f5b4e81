package tasks

const (
	StatusPending     = "pending"
	StatusInProgress  = "in_progress"
	StatusCompleted   = "completed"
	StatusRejected    = "rejected"
	StatusUnderReview = "under_review"

	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"

	DefaultMinComments   = 5
	DefaultSubtaskWeight = 1.0

	MinRating = 1
	MaxRating = 10
)

var Statuses = []string{StatusPending, StatusInProgress, StatusCompleted, StatusRejected, StatusUnderReview}

var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func ValidStatus(status string) bool {
	return contains(Statuses, status)
}

func ValidPriority(priority string) bool {
	return contains(Priorities, priority)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
