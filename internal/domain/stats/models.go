package stats

import (
	"errors"
	"time"

	"wink/internal/domain/gar"
)

var ErrNotFound = errors.New("employee not found")

const (
	recentReviewLimit = 5
	trendLimit        = 12
)

type EmployeeStats struct {
	EmployeeID          string     `json:"employeeId"`
	TotalTasksCompleted int        `json:"totalTasksCompleted"`
	AverageRating       float64    `json:"averageRating"`
	TotalRating         float64    `json:"totalRating"`
	RatingCount         int        `json:"ratingCount"`
	LastActivity        *time.Time `json:"lastActivity,omitempty"`
}

type RecentReview struct {
	TaskID    string    `json:"taskId"`
	TaskTitle string    `json:"taskTitle"`
	Rating    *float64  `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// Details is the per-employee dashboard. AverageRating covers the recent
// reviews only and is nil when none of them carries a rating.
type Details struct {
	EmployeeID     string         `json:"employeeId"`
	EmployeeName   string         `json:"employeeName"`
	TasksCompleted int            `json:"tasksCompleted"`
	AverageRating  *float64       `json:"averageRating"`
	RecentReviews  []RecentReview `json:"recentReviews"`
	Totals         *EmployeeStats `json:"totals,omitempty"`
	Trend          []gar.Snapshot `json:"trend"`
}

type Company struct {
	TotalEmployees      int `json:"totalEmployees"`
	TotalTasksCompleted int `json:"totalTasksCompleted"`
	ManagerReviewsTotal int `json:"managerReviewsTotal"`
}
