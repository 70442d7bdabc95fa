package job

import (
	"github.com/google/uuid"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type GetJobRequest struct {
	ID string
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if _, err := uuid.Parse(r.ID); err != nil {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	return nil
}

type ListJobsRequest struct {
	Status Status
	Limit  int
}

func (r ListJobsRequest) Validate() *apperror.AppError {
	switch r.Status {
	case "", StatusRunning, StatusCompleted, StatusFailed:
	default:
		return apperror.New(apperror.BadRequest, "status must be running, completed or failed")
	}
	if r.Limit < 0 || r.Limit > maxListLimit {
		return apperror.New(apperror.BadRequest, "limit must be between 1 and 100")
	}
	return nil
}

func (r ListJobsRequest) limit() int {
	if r.Limit == 0 {
		return defaultListLimit
	}
	return r.Limit
}
