package rate

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahmethakanbesel/nbp-datahub/internal/platform/sqlite"
	domain "github.com/ahmethakanbesel/nbp-datahub/internal/rate"
)

const insertBatchSize = 200

type Repository struct {
	db     *sql.DB
	closer func() error
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open opens (and migrates) the store at dsn. The returned repository owns
// the connection; call Close when done.
func Open(dsn string) (*Repository, error) {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db.DB, closer: db.Close}, nil
}

func (r *Repository) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func (r *Repository) ReplaceDates(ctx context.Context, records []domain.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range domain.Dates(records) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nbp_rates WHERE effective_date = ?`, d.Format(domain.DateFormat)); err != nil {
			return 0, fmt.Errorf("delete %s: %w", d.Format(domain.DateFormat), err)
		}
	}

	var total int64
	for i := 0; i < len(records); i += insertBatchSize {
		end := min(i+insertBatchSize, len(records))
		batch := records[i:end]

		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)*len(domain.Columns))
		for j, rec := range batch {
			if !domain.Finite(rec.Mid) {
				return 0, fmt.Errorf("insert rates: %s mid is out of range", rec.Code)
			}
			placeholders[j] = "(?, ?, ?, ?, ?, ?)"
			args = append(args,
				rec.Currency,
				rec.Code,
				rec.Mid.InexactFloat64(),
				rec.TableName,
				rec.EffectiveDate.Format(domain.DateFormat),
				rec.TransformTimestamp.Format(domain.TimestampFormat),
			)
		}

		query := fmt.Sprintf( //nolint:gosec // placeholders are not user input
			"INSERT INTO nbp_rates (%s) VALUES %s",
			strings.Join(domain.Columns, ", "),
			strings.Join(placeholders, ", "),
		)

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert rates: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

func (r *Repository) ListRates(ctx context.Context, f domain.Filter) ([]domain.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Code != "" {
		where = append(where, "code = ?")
		args = append(args, f.Code)
	}
	if !f.From.IsZero() {
		where = append(where, "effective_date >= ?")
		args = append(args, f.From.Format(domain.DateFormat))
	}
	if !f.To.IsZero() {
		where = append(where, "effective_date <= ?")
		args = append(args, f.To.Format(domain.DateFormat))
	}

	query := selectRates
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY effective_date ASC, code ASC"

	return r.query(ctx, query, args...)
}

func (r *Repository) ListByDate(ctx context.Context, date time.Time) ([]domain.Record, error) {
	return r.query(ctx, selectRates+" WHERE effective_date = ? ORDER BY code ASC", date.Format(domain.DateFormat))
}

func (r *Repository) Dates(ctx context.Context) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT effective_date FROM nbp_rates ORDER BY effective_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []time.Time
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		d, err := asTime(v, domain.DateFormat)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

const selectRates = `SELECT currency, code, mid, table_name, effective_date, transform_timestamp FROM nbp_rates`

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.Record
	for rows.Next() {
		var (
			rec      domain.Record
			mid      float64
			date, ts any
		)
		if err := rows.Scan(&rec.Currency, &rec.Code, &mid, &rec.TableName, &date, &ts); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		if math.IsInf(mid, 0) || math.IsNaN(mid) {
			return nil, fmt.Errorf("scan rate: %s mid is not finite", rec.Code)
		}
		rec.Mid = decimal.NewFromFloat(mid)
		if rec.EffectiveDate, err = asTime(date, domain.DateFormat); err != nil {
			return nil, err
		}
		if rec.TransformTimestamp, err = asTime(ts, domain.TimestampFormat); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// asTime accepts both the TEXT we write and the time.Time the driver yields
// for DATE/TIMESTAMP columns it can parse.
func asTime(v any, layout string) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(layout, t)
	case []byte:
		return time.Parse(layout, string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}
