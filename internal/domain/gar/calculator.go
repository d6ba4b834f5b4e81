package gar

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"wink/internal/domain/tasks"
)

// DefaultQualityDivisor maps mean ratings onto the weighted scale. Ratings
// run 1..10, so values above 5 normalize past 1.0; a divisor of 10 keeps
// quality inside [0,1].
const DefaultQualityDivisor = 5.0

type Recorder interface {
	RecordGAR(empty bool, duration time.Duration)
}

type Options struct {
	QualityDivisor float64
	Recorder       Recorder
}

type Calculator struct {
	data    DataSource
	weights *WeightService
	opts    Options
}

func NewCalculator(data DataSource, weights *WeightService, opts Options) *Calculator {
	if opts.QualityDivisor <= 0 {
		opts.QualityDivisor = DefaultQualityDivisor
	}
	return &Calculator{data: data, weights: weights, opts: opts}
}

// Calculate computes the rating for one employee over tasks created inside
// window. Reviews are not windowed.
func (c *Calculator) Calculate(ctx context.Context, employeeID string, window Window) (Result, error) {
	start := time.Now()
	if err := window.Validate(); err != nil {
		return Result{}, err
	}

	taskList, err := c.data.ListTasks(ctx, employeeID, window)
	if err != nil {
		return Result{}, fmt.Errorf("list tasks: %w", err)
	}

	if len(taskList) == 0 {
		weights, err := c.weights.Get(ctx)
		if err != nil {
			return Result{}, err
		}
		c.record(true, start)
		return emptyResult(weights), nil
	}

	subtasks, err := c.data.ListSubtasks(ctx, subtaskOwners(taskList))
	if err != nil {
		return Result{}, fmt.Errorf("list subtasks: %w", err)
	}
	ratings, err := c.data.ListReviewRatings(ctx, employeeID)
	if err != nil {
		return Result{}, fmt.Errorf("list review ratings: %w", err)
	}
	weights, err := c.weights.Get(ctx)
	if err != nil {
		return Result{}, err
	}

	res := c.score(taskList, subtasks, ratings, weights)
	c.record(false, start)
	return res, nil
}

// score is the pure part of Calculate.
func (c *Calculator) score(taskList []Task, subtasks map[string][]Subtask, ratings []float64, weights Weights) Result {
	total := len(taskList)
	var completed, onTime int
	var progressSum float64
	for _, task := range taskList {
		progressSum += TaskProgress(task, subtasks[task.ID])
		if task.Status != tasks.StatusCompleted {
			continue
		}
		completed++
		if completedOnTime(task) {
			onTime++
		}
	}

	comp := Components{
		TCR:          float64(completed) / float64(total),
		GoalProgress: progressSum / float64(total),
	}
	if completed > 0 {
		comp.Timeliness = float64(onTime) / float64(completed)
	}
	if len(ratings) > 0 {
		var sum float64
		for _, r := range ratings {
			sum += r
		}
		comp.Quality = sum / float64(len(ratings))
	}
	comp.QualityNormalized = comp.Quality / c.opts.QualityDivisor

	rating := comp.TCR*weights.TCR +
		comp.GoalProgress*weights.GoalProgress +
		comp.Timeliness*weights.Timeliness +
		comp.QualityNormalized*weights.Quality

	return Result{
		GAR: round(rating, 4),
		Metrics: Metrics{
			TCR:          fmt.Sprintf("%d/%d", completed, total),
			GoalProgress: formatPercent(comp.GoalProgress),
			Timeliness:   fmt.Sprintf("%d/%d", onTime, completed),
			Quality:      round(comp.Quality, 2),
		},
		Weights:    weights,
		Components: comp,
		TaskCount:  total,
		Completed:  completed,
		OnTime:     onTime,
		Reviews:    len(ratings),
	}
}

func (c *Calculator) record(empty bool, start time.Time) {
	if c.opts.Recorder != nil {
		c.opts.Recorder.RecordGAR(empty, time.Since(start))
	}
}

// subtaskOwners lists tasks whose progress comes from subtasks.
func subtaskOwners(taskList []Task) []string {
	ids := make([]string, 0, len(taskList))
	for _, task := range taskList {
		if !task.IsQuantitative {
			ids = append(ids, task.ID)
		}
	}
	return ids
}

func formatPercent(fraction float64) string {
	return strconv.FormatFloat(round(fraction*100, 1), 'f', 1, 64) + "%"
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
