package rate

import (
	"context"
	"time"
)

// Filter narrows a rate listing. Zero values mean "no bound".
type Filter struct {
	Code string
	From time.Time
	To   time.Time
}

type Repository interface {
	// ReplaceDates deletes every stored row whose effective date appears in
	// records and inserts records, atomically.
	ReplaceDates(ctx context.Context, records []Record) (int64, error)
	ListRates(ctx context.Context, f Filter) ([]Record, error)
	ListByDate(ctx context.Context, date time.Time) ([]Record, error)
	Dates(ctx context.Context) ([]time.Time, error)
}
