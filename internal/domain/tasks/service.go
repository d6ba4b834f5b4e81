package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wink/internal/domain/auth"
	"wink/internal/domain/notifications"
)

type Service struct {
	store    StoreAPI
	notifier Notifier
	stats    StatsRecorder
	now      func() time.Time
}

func NewService(store StoreAPI, notifier Notifier, stats StatsRecorder) *Service {
	return &Service{store: store, notifier: notifier, stats: stats, now: time.Now}
}

func (s *Service) Create(ctx context.Context, actor auth.UserContext, in CreateInput) (Task, error) {
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidPriority(priority) {
		return Task{}, ErrInvalidPriority
	}
	active, err := s.store.AssigneeActive(ctx, in.AssigneeID)
	if err != nil {
		return Task{}, err
	}
	if !active {
		return Task{}, ErrAssigneeNotFound
	}

	minComments := DefaultMinComments
	if in.MinComments != nil {
		minComments = *in.MinComments
	}
	task, err := s.store.CreateTask(ctx, Task{
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Status:         StatusPending,
		Priority:       priority,
		AssigneeID:     in.AssigneeID,
		CreatorID:      actor.UserID,
		Department:     in.Department,
		Deadline:       in.Deadline,
		IsQuantitative: in.IsQuantitative,
		GoalTarget:     in.GoalTarget,
		GoalProgress:   in.GoalProgress,
		MinComments:    minComments,
	})
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}

	s.notify(ctx, task.AssigneeID, notifications.TypeTaskAssigned, "New task", fmt.Sprintf("You have been assigned: %s", task.Title), task.ID)
	return task, nil
}

func (s *Service) Get(ctx context.Context, taskID string) (Task, error) {
	return s.store.GetTask(ctx, taskID)
}

// Details loads a task together with subtasks, comments, review and
// comment progress.
func (s *Service) Details(ctx context.Context, taskID string) (Details, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return Details{}, err
	}
	subtasks, err := s.store.ListSubtasks(ctx, taskID)
	if err != nil {
		return Details{}, err
	}
	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return Details{}, err
	}
	review, err := s.store.GetReview(ctx, taskID)
	if err != nil {
		return Details{}, err
	}
	return Details{
		Task:         task,
		Subtasks:     subtasks,
		Comments:     comments,
		Review:       review,
		CommentStats: commentStats(len(comments), task.MinComments),
	}, nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Task, int, error) {
	items, err := s.store.ListTasks(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountTasks(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update applies a partial update and returns the task before and after.
// Unprivileged callers must be the assignee and may only move status and
// goal progress.
func (s *Service) Update(ctx context.Context, actor auth.UserContext, taskID string, patch Patch) (Task, Task, error) {
	before, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, Task{}, err
	}
	if !auth.IsPrivileged(actor.Role) {
		if before.AssigneeID != actor.UserID {
			return Task{}, Task{}, ErrForbidden
		}
		if !patch.onlyAssigneeFields() {
			return Task{}, Task{}, ErrAssigneeFields
		}
	}

	next := before
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Status != nil {
		if !ValidStatus(*patch.Status) {
			return Task{}, Task{}, ErrInvalidStatus
		}
		next.Status = *patch.Status
	}
	if patch.Priority != nil {
		if !ValidPriority(*patch.Priority) {
			return Task{}, Task{}, ErrInvalidPriority
		}
		next.Priority = *patch.Priority
	}
	if patch.AssigneeID != nil && *patch.AssigneeID != before.AssigneeID {
		active, err := s.store.AssigneeActive(ctx, *patch.AssigneeID)
		if err != nil {
			return Task{}, Task{}, err
		}
		if !active {
			return Task{}, Task{}, ErrAssigneeNotFound
		}
		next.AssigneeID = *patch.AssigneeID
	}
	if patch.Department != nil {
		next.Department = *patch.Department
	}
	if patch.Deadline != nil {
		next.Deadline = patch.Deadline
	}
	if patch.IsQuantitative != nil {
		next.IsQuantitative = *patch.IsQuantitative
	}
	if patch.GoalTarget != nil {
		next.GoalTarget = patch.GoalTarget
	}
	if patch.GoalProgress != nil {
		next.GoalProgress = patch.GoalProgress
	}
	if patch.MinComments != nil {
		next.MinComments = *patch.MinComments
	}
	if patch.ClearDeadline {
		next.Deadline = nil
	}
	if patch.ClearGoalTarget {
		if next.IsQuantitative {
			return Task{}, Task{}, ErrGoalTargetNeeded
		}
		next.GoalTarget = nil
	}
	if patch.ClearGoalProgress {
		next.GoalProgress = nil
	}

	justCompleted := next.Status == StatusCompleted && before.Status != StatusCompleted
	switch {
	case justCompleted:
		now := s.now()
		next.CompletedAt = &now
	case next.Status != StatusCompleted:
		next.CompletedAt = nil
	}

	after, err := s.store.UpdateTask(ctx, next)
	if err != nil {
		return Task{}, Task{}, fmt.Errorf("update task: %w", err)
	}
	s.syncCompletionStats(ctx, before, after)
	if after.AssigneeID != before.AssigneeID {
		s.notify(ctx, after.AssigneeID, notifications.TypeTaskAssigned, "New task", fmt.Sprintf("You have been assigned: %s", after.Title), after.ID)
	}
	return before, after, nil
}

func (s *Service) Delete(ctx context.Context, taskID string) (Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return Task{}, err
	}
	if task.Status == StatusCompleted {
		s.recordReopen(ctx, task.AssigneeID)
	}
	return task, nil
}

// syncCompletionStats keeps each employee's completed count equal to the
// number of completed tasks they hold: leaving completed or moving a
// completed task to someone else takes the completion back.
func (s *Service) syncCompletionStats(ctx context.Context, before, after Task) {
	wasCompleted := before.Status == StatusCompleted
	isCompleted := after.Status == StatusCompleted
	moved := before.AssigneeID != after.AssigneeID
	if wasCompleted && (!isCompleted || moved) {
		s.recordReopen(ctx, before.AssigneeID)
	}
	if isCompleted && (!wasCompleted || moved) && s.stats != nil {
		if err := s.stats.RecordCompletion(ctx, after.AssigneeID); err != nil {
			slog.Warn("stats completion update failed", "employeeId", after.AssigneeID, "err", err)
		}
	}
}

func (s *Service) recordReopen(ctx context.Context, employeeID string) {
	if s.stats == nil {
		return
	}
	if err := s.stats.RecordReopen(ctx, employeeID); err != nil {
		slog.Warn("stats reopen update failed", "employeeId", employeeID, "err", err)
	}
}

func (s *Service) AddSubtask(ctx context.Context, taskID, title string, weight *float64) (Subtask, error) {
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return Subtask{}, err
	}
	w := DefaultSubtaskWeight
	if weight != nil {
		w = *weight
	}
	if w < 0 {
		return Subtask{}, ErrInvalidWeight
	}
	return s.store.CreateSubtask(ctx, Subtask{TaskID: taskID, Title: strings.TrimSpace(title), Weight: w})
}

func (s *Service) UpdateSubtask(ctx context.Context, actor auth.UserContext, taskID, subtaskID string, patch SubtaskPatch) (Subtask, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return Subtask{}, err
	}
	if !auth.IsPrivileged(actor.Role) {
		if task.AssigneeID != actor.UserID {
			return Subtask{}, ErrForbidden
		}
		if patch.Title != nil || patch.Weight != nil {
			return Subtask{}, ErrAssigneeFields
		}
	}
	st, err := s.store.GetSubtask(ctx, taskID, subtaskID)
	if err != nil {
		return Subtask{}, err
	}
	if patch.Title != nil {
		st.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Weight != nil {
		if *patch.Weight < 0 {
			return Subtask{}, ErrInvalidWeight
		}
		st.Weight = *patch.Weight
	}
	if patch.Completed != nil {
		st.Completed = *patch.Completed
	}
	return s.store.UpdateSubtask(ctx, st)
}

func (s *Service) DeleteSubtask(ctx context.Context, taskID, subtaskID string) error {
	return s.store.DeleteSubtask(ctx, taskID, subtaskID)
}

func (s *Service) AddComment(ctx context.Context, actor auth.UserContext, taskID, text string) (Comment, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return Comment{}, err
	}
	if task.AssigneeID != actor.UserID && !auth.IsPrivileged(actor.Role) {
		return Comment{}, ErrCommentNotAllowed
	}
	return s.store.CreateComment(ctx, Comment{TaskID: taskID, EmployeeID: actor.UserID, Comment: strings.TrimSpace(text)})
}

func (s *Service) ListComments(ctx context.Context, taskID string) ([]Comment, CommentStats, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, CommentStats{}, err
	}
	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, CommentStats{}, err
	}
	return comments, commentStats(len(comments), task.MinComments), nil
}

// Review records the single manager review a completed task may carry and
// folds the rating into the assignee's running stats.
func (s *Service) Review(ctx context.Context, actor auth.UserContext, taskID string, rating float64, comment string) (Review, error) {
	if rating < MinRating || rating > MaxRating {
		return Review{}, ErrInvalidRating
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return Review{}, err
	}
	if task.Status != StatusCompleted {
		return Review{}, ErrTaskNotCompleted
	}
	review, err := s.store.CreateReview(ctx, Review{
		TaskID:    taskID,
		ManagerID: actor.UserID,
		Rating:    &rating,
		Comment:   strings.TrimSpace(comment),
	})
	if err != nil {
		return Review{}, err
	}

	if s.stats != nil {
		if err := s.stats.RecordRating(ctx, task.AssigneeID, rating); err != nil {
			slog.Warn("stats rating update failed", "employeeId", task.AssigneeID, "err", err)
		}
	}
	s.notify(ctx, task.AssigneeID, notifications.TypeTaskReviewed, "Task reviewed",
		fmt.Sprintf("Your task %q was rated %.1f", task.Title, rating), task.ID)
	return review, nil
}

func (s *Service) notify(ctx context.Context, userID, ntype, title, message, relatedID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, ntype, title, message, relatedID); err != nil {
		slog.Warn("task notification failed", "userId", userID, "type", ntype, "err", err)
	}
}
