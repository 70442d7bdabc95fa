package job

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
	domain "github.com/ahmethakanbesel/nbp-datahub/internal/job"
	"github.com/ahmethakanbesel/nbp-datahub/internal/platform/sqlite"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newJob(id string, started time.Time) *domain.Job {
	return &domain.Job{ID: id, Status: domain.StatusRunning, StartedAt: started}
}

func TestCreate_And_Get(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()
	started := time.Date(2025, 10, 22, 14, 0, 0, 0, time.UTC)

	if err := repo.Create(ctx, newJob("run-1", started)); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusRunning {
		t.Errorf("expected running, got %s", got.Status)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected %s, got %s", started, got.StartedAt)
	}
	if got.FinishedAt != nil {
		t.Errorf("expected no finish time, got %s", got.FinishedAt)
	}
}

func TestUpdate(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	j := newJob("run-1", time.Now().UTC().Truncate(time.Second))
	if err := repo.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	finished := j.StartedAt.Add(3 * time.Second)
	j.Status = domain.StatusFailed
	j.Stage = "load"
	j.Error = "STORE: open store"
	j.Fetched, j.Normalized, j.FilesSkipped = 33, 33, 1
	j.FinishedAt = &finished
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusFailed || got.Stage != "load" || got.Error != "STORE: open store" {
		t.Errorf("unexpected job %+v", got)
	}
	if got.Fetched != 33 || got.FilesSkipped != 1 {
		t.Errorf("unexpected counts %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("expected finish %s, got %v", finished, got.FinishedAt)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	err := repo.Update(context.Background(), newJob("missing", time.Now()))
	if !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	_, err := repo.Get(context.Background(), "missing")
	if !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGet_CorruptTimestamp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO jobs (id, status, started_at) VALUES ('run-bad', 'running', 'yesterday')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := repo.Get(ctx, "run-bad"); err == nil || !strings.Contains(err.Error(), "invalid started_at") {
		t.Fatalf("expected started_at error, got %v", err)
	}

	if _, err := db.Exec(`UPDATE jobs SET started_at = '2025-10-22T14:00:00Z', finished_at = 'later' WHERE id = 'run-bad'`); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := repo.List(ctx, "", 10); err == nil || !strings.Contains(err.Error(), "invalid finished_at") {
		t.Fatalf("expected finished_at error, got %v", err)
	}
}

func TestList(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()
	base := time.Date(2025, 10, 20, 6, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		j := newJob(id, base.AddDate(0, 0, i))
		if err := repo.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
		if id != "run-3" {
			j.Status = domain.StatusCompleted
			if err := repo.Update(ctx, j); err != nil {
				t.Fatal(err)
			}
		}
	}

	jobs, err := repo.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 3 || jobs[0].ID != "run-3" {
		t.Errorf("expected newest first, got %+v", jobs)
	}

	jobs, err = repo.List(ctx, domain.StatusCompleted, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].ID != "run-2" {
		t.Errorf("expected run-2, got %+v", jobs)
	}
}

func TestRecoverStale(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("run-1", time.Now())); err != nil {
		t.Fatal(err)
	}

	n, err := repo.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 recovered, got %d", n)
	}

	got, _ := repo.Get(ctx, "run-1")
	if got.Status != domain.StatusFailed || got.Error != "interrupted" || got.FinishedAt == nil {
		t.Errorf("unexpected job %+v", got)
	}
}
