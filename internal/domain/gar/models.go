package gar

import (
	"errors"
	"time"
)

var (
	ErrInvalidWeights = errors.New("invalid weights")
	ErrInvalidWindow  = errors.New("since must not be after until")
)

// Weights are the coefficients applied to each sub-metric. They are not
// required to sum to one.
type Weights struct {
	TCR          float64 `json:"TCR"`
	GoalProgress float64 `json:"GoalProgress"`
	Timeliness   float64 `json:"Timeliness"`
	Quality      float64 `json:"Quality"`
}

var DefaultWeights = Weights{
	TCR:          0.4,
	GoalProgress: 0.3,
	Timeliness:   0.2,
	Quality:      0.1,
}

// WeightsUpdate is a partial update. A nil field keeps its current value;
// a non-nil zero sets the weight to zero.
type WeightsUpdate struct {
	TCR          *float64 `json:"TCR"`
	GoalProgress *float64 `json:"GoalProgress"`
	Timeliness   *float64 `json:"Timeliness"`
	Quality      *float64 `json:"Quality"`
}

func (u WeightsUpdate) Apply(w Weights) Weights {
	if u.TCR != nil {
		w.TCR = *u.TCR
	}
	if u.GoalProgress != nil {
		w.GoalProgress = *u.GoalProgress
	}
	if u.Timeliness != nil {
		w.Timeliness = *u.Timeliness
	}
	if u.Quality != nil {
		w.Quality = *u.Quality
	}
	return w
}

func (u WeightsUpdate) Empty() bool {
	return u.TCR == nil && u.GoalProgress == nil && u.Timeliness == nil && u.Quality == nil
}

// Task is the slice of a task row the rating needs.
type Task struct {
	ID             string
	Status         string
	Deadline       *time.Time
	CompletedAt    *time.Time
	IsQuantitative bool
	GoalTarget     *float64
	GoalProgress   *float64
	CreatedAt      time.Time
}

type Subtask struct {
	TaskID    string
	Weight    float64
	Completed bool
}

// Window bounds task creation time. Both ends are inclusive and optional.
type Window struct {
	Since *time.Time
	Until *time.Time
}

func (w Window) Validate() error {
	if w.Since != nil && w.Until != nil && w.Since.After(*w.Until) {
		return ErrInvalidWindow
	}
	return nil
}

func (w Window) Contains(t time.Time) bool {
	if w.Since != nil && t.Before(*w.Since) {
		return false
	}
	if w.Until != nil && t.After(*w.Until) {
		return false
	}
	return true
}

// Metrics is the human-readable breakdown shown next to the score.
type Metrics struct {
	TCR          string  `json:"TCR"`
	GoalProgress string  `json:"GoalProgress"`
	Timeliness   string  `json:"Timeliness"`
	Quality      float64 `json:"Quality"`
}

// Components are the unrounded sub-scores before weighting.
type Components struct {
	TCR               float64 `json:"tcr"`
	GoalProgress      float64 `json:"goalProgress"`
	Timeliness        float64 `json:"timeliness"`
	Quality           float64 `json:"quality"`
	QualityNormalized float64 `json:"qualityNormalized"`
}

type Result struct {
	GAR        float64
	Metrics    Metrics
	Weights    Weights
	Components Components
	TaskCount  int
	Completed  int
	OnTime     int
	Reviews    int
}

// Empty reports the no-tasks outcome. It is indistinguishable from an
// unknown employee, so callers check existence first.
func (r Result) Empty() bool {
	return r.TaskCount == 0
}

func emptyResult(weights Weights) Result {
	return Result{
		Metrics: Metrics{TCR: "0/0", GoalProgress: "0%", Timeliness: "0/0", Quality: 0},
		Weights: weights,
	}
}
