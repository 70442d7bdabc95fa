package rate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/nbp-datahub/internal/platform/sqlite"
	domain "github.com/ahmethakanbesel/nbp-datahub/internal/rate"
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

func day(m, d int) time.Time {
	return time.Date(2025, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func rec(code, mid string, date time.Time) domain.Record {
	return domain.Record{
		Currency:           "currency " + code,
		Code:               code,
		Mid:                decimal.RequireFromString(mid),
		TableName:          "A",
		EffectiveDate:      date,
		TransformTimestamp: date.Add(14 * time.Hour),
	}
}

func TestReplaceDates_And_ListRates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	n, err := repo.ReplaceDates(ctx, []domain.Record{
		rec("USD", "3.65", day(10, 22)),
		rec("EUR", "4.2449", day(10, 22)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := repo.ListRates(ctx, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "EUR", got[0].Code, "rows are ordered by date, then code")
	assert.True(t, got[1].Mid.Equal(decimal.RequireFromString("3.65")))
	assert.True(t, got[1].EffectiveDate.Equal(day(10, 22)))
	assert.True(t, got[1].TransformTimestamp.Equal(day(10, 22).Add(14*time.Hour)))
}

func TestReplaceDates_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	batch := []domain.Record{rec("USD", "3.65", day(10, 22))}
	for range 3 {
		_, err := repo.ReplaceDates(ctx, batch)
		require.NoError(t, err)
	}

	got, err := repo.ListByDate(ctx, day(10, 22))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "USD", got[0].Code)
}

func TestReplaceDates_ReplacesWholePartition(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	_, err := repo.ReplaceDates(ctx, []domain.Record{
		rec("USD", "3.65", day(10, 22)),
		rec("EUR", "4.2449", day(10, 22)),
	})
	require.NoError(t, err)

	// Second load for the same date no longer carries EUR: it must disappear.
	_, err = repo.ReplaceDates(ctx, []domain.Record{rec("USD", "3.70", day(10, 22))})
	require.NoError(t, err)

	got, err := repo.ListByDate(ctx, day(10, 22))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Mid.Equal(decimal.RequireFromString("3.7")))
}

func TestReplaceDates_IsolatedByDate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	_, err := repo.ReplaceDates(ctx, []domain.Record{rec("USD", "3.60", day(10, 21))})
	require.NoError(t, err)
	_, err = repo.ReplaceDates(ctx, []domain.Record{rec("USD", "3.65", day(10, 22))})
	require.NoError(t, err)

	older, err := repo.ListByDate(ctx, day(10, 21))
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.True(t, older[0].Mid.Equal(decimal.RequireFromString("3.6")))

	dates, err := repo.Dates(ctx)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.True(t, dates[0].Equal(day(10, 21)))
	assert.True(t, dates[1].Equal(day(10, 22)))
}

func TestReplaceDates_RollsBackOnConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	_, err := repo.ReplaceDates(ctx, []domain.Record{rec("USD", "3.60", day(10, 22))})
	require.NoError(t, err)

	// Duplicate key inside one batch violates the unique index; the delete of
	// the existing partition must be rolled back with it.
	_, err = repo.ReplaceDates(ctx, []domain.Record{
		rec("USD", "3.65", day(10, 22)),
		rec("USD", "3.66", day(10, 22)),
	})
	require.Error(t, err)

	got, err := repo.ListByDate(ctx, day(10, 22))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Mid.Equal(decimal.RequireFromString("3.6")))
}

func TestReplaceDates_RejectsOverflowingMid(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	_, err := repo.ReplaceDates(ctx, []domain.Record{
		rec("EUR", "4.2", day(10, 22)),
		rec("USD", "1e400", day(10, 22)),
	})
	require.Error(t, err)

	got, err := repo.ListByDate(ctx, day(10, 22))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListRates_NonFiniteRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO nbp_rates VALUES ('dolar', 'USD', 1e999, 'A', '2025-10-22', '2025-10-22T14:03:11')`)
	require.NoError(t, err)

	_, err = repo.ListRates(ctx, domain.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not finite")
}

func TestListRates_Filter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	for _, d := range []time.Time{day(10, 20), day(10, 21), day(10, 22)} {
		_, err := repo.ReplaceDates(ctx, []domain.Record{rec("USD", "3.65", d), rec("EUR", "4.24", d)})
		require.NoError(t, err)
	}

	got, err := repo.ListRates(ctx, domain.Filter{Code: "USD", From: day(10, 21), To: day(10, 22)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "USD", r.Code)
	}
	assert.True(t, got[0].EffectiveDate.Equal(day(10, 21)))
}

func TestReplaceDates_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	n, err := repo.ReplaceDates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestOpen_OwnsConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datahub.db")

	repo, err := Open(path)
	require.NoError(t, err)
	_, err = repo.ReplaceDates(context.Background(), []domain.Record{rec("USD", "3.65", day(10, 22))})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	dates, err := repo.Dates(context.Background())
	require.NoError(t, err)
	assert.Len(t, dates, 1)
}
