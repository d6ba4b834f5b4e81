package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"wink/internal/platform/metrics"
)

const (
	JobStatsRebuild = "stats_rebuild"
	JobGARSnapshot  = "gar_snapshot"
	JobRetention    = "retention_cleanup"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type RunFunc func(context.Context) (any, error)

// Service runs background work on a single worker goroutine. Jobs arrive
// either from cron schedules or from Enqueue, and every run is recorded.
type Service struct {
	runs    RunStore
	metrics *metrics.Collector
	queue   chan job
	cron    *cron.Cron

	mu      sync.Mutex
	started bool
}

type job struct {
	Type string
	Run  RunFunc
}

func New(runs RunStore, collector *metrics.Collector) *Service {
	return &Service{
		runs:    runs,
		metrics: collector,
		queue:   make(chan job, 128),
		cron:    cron.New(),
	}
}

// Schedule registers run under a standard five-field cron expression. An
// empty spec leaves the job unscheduled.
func (s *Service) Schedule(spec, jobType string, run RunFunc) error {
	if spec == "" {
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		s.Enqueue(jobType, run)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", jobType, err)
	}
	slog.Info("job scheduled", "jobType", jobType, "spec", spec)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.worker(ctx)
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}

func (s *Service) Enqueue(jobType string, run RunFunc) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) ListRuns(ctx context.Context, jobType string, limit, offset int) ([]Run, error) {
	return s.runs.ListRuns(ctx, jobType, limit, offset)
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID, err := s.runs.StartRun(ctx, j.Type)
	if err != nil {
		slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
	}

	details, runErr := j.Run(ctx)
	status := StatusCompleted
	if runErr != nil {
		status = StatusFailed
		details = map[string]any{"error": runErr.Error(), "details": details}
	}
	s.metrics.RecordJob(j.Type, runErr != nil)

	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if err := s.runs.FinishRun(ctx, runID, status, detailsJSON); err != nil {
			slog.Warn("job run update failed", "jobType", j.Type, "err", err)
		}
	}
	slog.Info("job run finished", "jobType", j.Type, "status", status)
	return details, runErr
}
