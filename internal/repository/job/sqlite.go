package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
	domain "github.com/ahmethakanbesel/nbp-datahub/internal/job"
)

const selectJobs = `SELECT id, status, stage, error, fetched, normalized, rows_merged,
	files_skipped, started_at, finished_at FROM jobs`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, j *domain.Job) error {
	const query = `INSERT INTO jobs (id, status, started_at) VALUES (?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, j.ID, string(j.Status), j.StartedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, j *domain.Job) error {
	const query = `UPDATE jobs SET status = ?, stage = ?, error = ?, fetched = ?, normalized = ?,
		rows_merged = ?, files_skipped = ?, finished_at = ?
		WHERE id = ?`

	var finished sql.NullString
	if j.FinishedAt != nil {
		finished = sql.NullString{String: j.FinishedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query,
		string(j.Status), nullString(j.Stage), nullString(j.Error),
		j.Fetched, j.Normalized, j.RowsMerged, j.FilesSkipped,
		finished, j.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.NotFound, "job not found")
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, selectJobs+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *Repository) List(ctx context.Context, status domain.Status, limit int) ([]domain.Job, error) {
	query := selectJobs
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *Repository) RecoverStale(ctx context.Context) (int64, error) {
	const query = `UPDATE jobs SET status = 'failed', error = 'interrupted',
		finished_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE status = 'running'`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*domain.Job, error) {
	j := &domain.Job{}
	var (
		status        string
		stage, errMsg sql.NullString
		started       string
		finished      sql.NullString
	)
	if err := s.Scan(
		&j.ID, &status, &stage, &errMsg,
		&j.Fetched, &j.Normalized, &j.RowsMerged, &j.FilesSkipped,
		&started, &finished,
	); err != nil {
		return nil, err
	}

	j.Status = domain.Status(status)
	j.Stage = stage.String
	j.Error = errMsg.String
	var err error
	if j.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
		return nil, fmt.Errorf("job %s: invalid started_at %q: %w", j.ID, started, err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339, finished.String)
		if err != nil {
			return nil, fmt.Errorf("job %s: invalid finished_at %q: %w", j.ID, finished.String, err)
		}
		j.FinishedAt = &t
	}
	return j, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
