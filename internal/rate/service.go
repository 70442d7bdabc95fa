package rate

import (
	"context"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
)

// Service is the read side of the store used by the HTTP API.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListRates(ctx context.Context, req ListRatesRequest) ([]RatePoint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	records, err := s.repo.ListRates(ctx, req.filter())
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list rates", err)
	}
	return toPoints(records), nil
}

// Partition returns every row stored for one effective date.
func (s *Service) Partition(ctx context.Context, date time.Time) ([]RatePoint, error) {
	records, err := s.repo.ListByDate(ctx, Day(date))
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list partition", err)
	}
	if len(records) == 0 {
		return nil, apperror.New(apperror.NotFound, "no rates loaded for "+date.Format(DateFormat))
	}
	return toPoints(records), nil
}

func (s *Service) Dates(ctx context.Context) ([]string, error) {
	dates, err := s.repo.Dates(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list dates", err)
	}
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(DateFormat)
	}
	return out, nil
}
