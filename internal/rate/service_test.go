package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
)

type mockRepo struct {
	records []Record
	filter  Filter
	err     error
}

func (m *mockRepo) ReplaceDates(_ context.Context, records []Record) (int64, error) {
	m.records = append(m.records, records...)
	return int64(len(records)), nil
}

func (m *mockRepo) ListRates(_ context.Context, f Filter) ([]Record, error) {
	m.filter = f
	return m.records, m.err
}

func (m *mockRepo) ListByDate(_ context.Context, date time.Time) ([]Record, error) {
	var out []Record
	for _, r := range m.records {
		if r.EffectiveDate.Equal(date) {
			out = append(out, r)
		}
	}
	return out, m.err
}

func (m *mockRepo) Dates(_ context.Context) ([]time.Time, error) {
	return Dates(m.records), m.err
}

func TestService_ListRates(t *testing.T) {
	repo := &mockRepo{records: sampleRecords()}
	svc := NewService(repo)

	points, err := svc.ListRates(context.Background(), ListRatesRequest{Code: "usd"})
	require.NoError(t, err)
	assert.Equal(t, "USD", repo.filter.Code)
	require.Len(t, points, 2)
	assert.Equal(t, 3.65, points[0].Mid)
	assert.Equal(t, "2025-10-22", points[0].EffectiveDate)
}

func TestService_ListRates_Validation(t *testing.T) {
	svc := NewService(&mockRepo{})
	from := time.Date(2025, 10, 22, 0, 0, 0, 0, time.UTC)

	_, err := svc.ListRates(context.Background(), ListRatesRequest{Code: "DOLLAR"})
	assert.True(t, apperror.Is(err, apperror.BadRequest))

	_, err = svc.ListRates(context.Background(), ListRatesRequest{From: from, To: from.AddDate(0, 0, -1)})
	assert.True(t, apperror.Is(err, apperror.BadRequest))
}

func TestService_Partition(t *testing.T) {
	svc := NewService(&mockRepo{records: sampleRecords()})

	points, err := svc.Partition(context.Background(), time.Date(2025, 10, 22, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, points, 2)

	_, err = svc.Partition(context.Background(), time.Date(2025, 10, 23, 0, 0, 0, 0, time.UTC))
	assert.True(t, apperror.Is(err, apperror.NotFound))
}

func TestService_RepoError(t *testing.T) {
	svc := NewService(&mockRepo{err: errors.New("disk I/O error")})

	_, err := svc.Dates(context.Background())
	assert.True(t, apperror.Is(err, apperror.Internal))
}
