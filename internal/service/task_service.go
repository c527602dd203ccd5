package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/changelog"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/pipeline"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
)

const defaultPerformanceDays = 7

// TaskController is the part of the scheduler operators drive.
type TaskController interface {
	Status() []pipeline.NodeStatus
	Trigger(name string) error
	Suspend(name string) error
	Resume(name string) error
}

// TaskOverview is the scheduler status view plus change-log positions.
type TaskOverview struct {
	Tasks      []pipeline.NodeStatus `json:"tasks"`
	ChangeLogs []changelog.Stats     `json:"change_logs"`
}

type TaskService struct {
	controller TaskController
	taskLogs   repository.TaskLogRepository
	changeLogs *pipeline.ChangeLogs
	actions    *ActionService
	now        func() time.Time
}

func NewTaskService(controller TaskController, taskLogs repository.TaskLogRepository, changeLogs *pipeline.ChangeLogs, actions *ActionService) *TaskService {
	return &TaskService{
		controller: controller,
		taskLogs:   taskLogs,
		changeLogs: changeLogs,
		actions:    actions,
		now:        time.Now,
	}
}

func (s *TaskService) WithClock(now func() time.Time) *TaskService {
	s.now = now
	return s
}

func (s *TaskService) Overview() TaskOverview {
	out := TaskOverview{Tasks: s.controller.Status(), ChangeLogs: make([]changelog.Stats, 0)}
	if s.changeLogs != nil {
		for _, l := range s.changeLogs.All() {
			out.ChangeLogs = append(out.ChangeLogs, l.Stats())
		}
	}
	return out
}

func (s *TaskService) Logs(ctx context.Context, filter domain.TaskLogFilter) ([]domain.TaskExecutionLog, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	logs, err := s.taskLogs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = make([]domain.TaskExecutionLog, 0)
	}
	return logs, nil
}

// Performance aggregates the execution log over the last days (7 by default).
func (s *TaskService) Performance(ctx context.Context, days int) ([]domain.TaskPerformance, error) {
	if days <= 0 {
		days = defaultPerformanceDays
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	perf, err := s.taskLogs.Performance(ctx, since)
	if err != nil {
		return nil, err
	}
	if perf == nil {
		perf = make([]domain.TaskPerformance, 0)
	}
	return perf, nil
}

// Run requests an immediate refresh of one task.
func (s *TaskService) Run(ctx context.Context, name, by string) error {
	if err := s.controller.Trigger(name); err != nil {
		return err
	}
	if s.actions != nil {
		s.actions.RecordManualRefresh(ctx, by, name)
	}
	log.Info().Str("task", name).Str("actor", actor(by)).Msg("manual refresh requested")
	return nil
}

func (s *TaskService) Suspend(name string) error {
	if err := s.controller.Suspend(name); err != nil {
		return err
	}
	log.Info().Str("task", name).Msg("task suspended")
	return nil
}

func (s *TaskService) Resume(name string) error {
	if err := s.controller.Resume(name); err != nil {
		return err
	}
	log.Info().Str("task", name).Msg("task resumed")
	return nil
}
