package gar

import (
	"context"
	"sort"
)

type memoryWeights struct {
	row    *Weights
	writes int
}

func (m *memoryWeights) ReadWeights(ctx context.Context) (*Weights, error) {
	if m.row == nil {
		return nil, nil
	}
	w := *m.row
	return &w, nil
}

func (m *memoryWeights) UpsertWeights(ctx context.Context, update WeightsUpdate) (Weights, error) {
	m.writes++
	base := DefaultWeights
	if m.row != nil {
		base = *m.row
	}
	next := update.Apply(base)
	m.row = &next
	return next, nil
}

type memoryData struct {
	tasks    map[string][]Task
	subtasks map[string][]Subtask
	ratings  map[string][]float64
	calls    int
}

func newMemoryData() *memoryData {
	return &memoryData{
		tasks:    map[string][]Task{},
		subtasks: map[string][]Subtask{},
		ratings:  map[string][]float64{},
	}
}

func (m *memoryData) ListTasks(ctx context.Context, employeeID string, window Window) ([]Task, error) {
	m.calls++
	var out []Task
	for _, t := range m.tasks[employeeID] {
		if window.Contains(t.CreatedAt) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryData) ListSubtasks(ctx context.Context, taskIDs []string) (map[string][]Subtask, error) {
	out := map[string][]Subtask{}
	for _, id := range taskIDs {
		if subs, ok := m.subtasks[id]; ok {
			out[id] = subs
		}
	}
	return out, nil
}

func (m *memoryData) ListReviewRatings(ctx context.Context, employeeID string) ([]float64, error) {
	return m.ratings[employeeID], nil
}
