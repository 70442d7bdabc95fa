package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
)

// Reasons a source row is dropped.
const (
	ReasonMissingCode   = "missing_code"
	ReasonInvalidMid    = "invalid_mid"
	ReasonNegativeMid   = "negative_mid"
	ReasonDuplicateCode = "duplicate_code"
	ReasonInvalidRecord = "invalid_record"
)

// Columns every source rate row is expected to carry.
var sourceColumns = []string{"currency", "code", "mid"}

// Columns tolerated without a warning. Table C publishes bid/ask instead of mid.
var knownColumns = map[string]bool{
	"currency": true,
	"code":     true,
	"mid":      true,
	"bid":      true,
	"ask":      true,
}

type Drop struct {
	Row    int
	Code   string
	Reason string
	Detail string
}

// Report summarizes one normalization. Missing and Extra are soft schema
// warnings and never fail the batch.
type Report struct {
	Input   int
	Kept    int
	Missing []string
	Extra   []string
	Drops   []Drop
}

func (r Report) Dropped() int { return len(r.Drops) }

// DroppedBy counts drops per reason.
func (r Report) DroppedBy() map[string]int {
	out := make(map[string]int)
	for _, d := range r.Drops {
		out[d.Reason]++
	}
	return out
}

func (r *Report) drop(row int, code, reason, detail string) {
	r.Drops = append(r.Drops, Drop{Row: row, Code: code, Reason: reason, Detail: detail})
}

func (n *Normalizer) normalize(snap rate.Snapshot, stamp time.Time) ([]rate.Record, Report, error) {
	if len(snap.Tables) == 0 {
		return nil, Report{}, rate.ErrEmptySnapshot
	}
	table := snap.Tables[0]

	effective, err := rate.ParseDate(table.EffectiveDate)
	if err != nil {
		return nil, Report{}, fmt.Errorf("invalid effectiveDate %q: %w", table.EffectiveDate, err)
	}

	report := Report{Input: len(table.Rates)}
	report.Missing, report.Extra = schemaDiff(table.Rates)

	seen := make(map[string]bool, len(table.Rates))
	records := make([]rate.Record, 0, len(table.Rates))
	for i, row := range table.Rates {
		code := strings.ToUpper(strings.TrimSpace(text(row["code"])))
		if code == "" {
			report.drop(i, "", ReasonMissingCode, "code is empty")
			continue
		}

		mid, err := midOf(row)
		if err != nil {
			report.drop(i, code, ReasonInvalidMid, err.Error())
			continue
		}
		if mid.IsNegative() {
			report.drop(i, code, ReasonNegativeMid, mid.String())
			continue
		}
		if seen[code] {
			report.drop(i, code, ReasonDuplicateCode, "first occurrence kept")
			continue
		}

		rec := rate.Record{
			Currency:           strings.TrimSpace(text(row["currency"])),
			Code:               code,
			Mid:                mid,
			TableName:          table.Table,
			EffectiveDate:      effective,
			TransformTimestamp: stamp,
		}
		if err := n.check(rec); err != nil {
			report.drop(i, code, ReasonInvalidRecord, err.Error())
			continue
		}

		seen[code] = true
		records = append(records, rec)
	}

	report.Kept = len(records)
	return records, report, nil
}

// midOf reads the mid rate, falling back to the bid/ask midpoint for tables
// that only publish buy and sell rates.
func midOf(row map[string]any) (decimal.Decimal, error) {
	mid, err := rawMid(row)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !rate.Finite(mid) {
		return decimal.Decimal{}, fmt.Errorf("mid out of range")
	}
	return mid, nil
}

func rawMid(row map[string]any) (decimal.Decimal, error) {
	if v, ok := row["mid"]; ok {
		return toDecimal(v)
	}
	bidV, hasBid := row["bid"]
	askV, hasAsk := row["ask"]
	if !hasBid || !hasAsk {
		return decimal.Decimal{}, fmt.Errorf("mid is missing")
	}
	bid, err := toDecimal(bidV)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("bid: %w", err)
	}
	ask, err := toDecimal(askV)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("ask: %w", err)
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case json.Number:
		return decimal.NewFromString(val.String())
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return decimal.Decimal{}, fmt.Errorf("non-finite value")
		}
		return decimal.NewFromFloat(val), nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return decimal.Decimal{}, fmt.Errorf("empty value")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("not numeric: %q", val)
		}
		return d, nil
	case nil:
		return decimal.Decimal{}, fmt.Errorf("null value")
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported type %T", v)
	}
}

func text(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func schemaDiff(rows []map[string]any) (missing, extra []string) {
	present := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			present[k] = true
		}
	}
	if len(rows) > 0 {
		for _, c := range sourceColumns {
			if !present[c] {
				missing = append(missing, c)
			}
		}
	}
	for k := range present {
		if !knownColumns[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return missing, extra
}
