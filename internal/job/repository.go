package job

import "context"

type Repository interface {
	Create(ctx context.Context, j *Job) error
	Update(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, status Status, limit int) ([]Job, error)
	// RecoverStale marks runs still recorded as running as failed.
	RecoverStale(ctx context.Context) (int64, error)
}
