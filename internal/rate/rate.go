package rate

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// TableName is the store relation the dashboard reads from.
const TableName = "nbp_rates"

const (
	DateFormat      = "2006-01-02"
	TimestampFormat = "2006-01-02T15:04:05"
)

// Canonical column order of clean artifacts and of the store table.
var Columns = []string{
	"currency",
	"code",
	"mid",
	"table_name",
	"effective_date",
	"transform_timestamp",
}

// Record is one normalized row: a single currency's mid rate in one published table.
type Record struct {
	Currency           string          `json:"currency"`
	Code               string          `json:"code" validate:"required,len=3,alpha,uppercase"`
	Mid                decimal.Decimal `json:"mid"`
	TableName          string          `json:"tableName" validate:"required"`
	EffectiveDate      time.Time       `json:"effectiveDate" validate:"required"`
	TransformTimestamp time.Time       `json:"transformTimestamp" validate:"required"`
}

// Finite reports whether d converts to a finite float64, the type the store
// keeps rates in.
func Finite(d decimal.Decimal) bool {
	return !math.IsInf(d.InexactFloat64(), 0)
}

// Dates returns the distinct effective dates of records in first-seen order.
func Dates(records []Record) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, r := range records {
		d := r.EffectiveDate
		if seen[d] {
			continue
		}
		seen[d] = true
		dates = append(dates, d)
	}
	return dates
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}
