package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
	"github.com/ahmethakanbesel/nbp-datahub/internal/logging"
)

type Service struct {
	repo   Repository
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)
	return s
}

// RecoverStaleJobs closes out runs left in the running state by a process
// that died mid-run.
func (s *Service) RecoverStaleJobs(ctx context.Context) error {
	n, err := s.repo.RecoverStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Warn("marked interrupted runs as failed", "count", n)
	}
	return nil
}

// Begin records the start of run id.
func (s *Service) Begin(ctx context.Context, id string) (*Job, error) {
	if err := s.RecoverStaleJobs(ctx); err != nil {
		return nil, err
	}
	j := &Job{
		ID:        id,
		Status:    StatusRunning,
		StartedAt: s.now().UTC().Truncate(time.Second),
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// End records the outcome of j. A nil runErr completes the run.
func (s *Service) End(ctx context.Context, j *Job, stage string, runErr error) error {
	finished := s.now().UTC().Truncate(time.Second)
	j.FinishedAt = &finished
	j.Status = StatusCompleted
	j.Stage = ""
	j.Error = ""
	if runErr != nil {
		j.Status = StatusFailed
		j.Stage = stage
		j.Error = runErr.Error()
	}
	return s.repo.Update(ctx, j)
}

func (s *Service) Get(ctx context.Context, req GetJobRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, req.ID)
}

func (s *Service) List(ctx context.Context, req ListJobsRequest) ([]Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	jobs, err := s.repo.List(ctx, req.Status, req.limit())
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list jobs", err)
	}
	return jobs, nil
}
