package rate

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Header names written by older artifacts, mapped to canonical columns.
var legacyColumns = map[string]string{
	"effectiveDate": "effective_date",
	"table":         "table_name",
}

// EncodeCSV writes records as a UTF-8 CSV with byte-order mark and the canonical header.
func EncodeCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(bom)

	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			r.Currency,
			r.Code,
			r.Mid.String(),
			r.TableName,
			r.EffectiveDate.Format(DateFormat),
			r.TransformTimestamp.Format(TimestampFormat),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCSV parses a clean artifact. Legacy header names are harmonized and
// extra columns ignored; a missing canonical column or any malformed row fails
// the whole artifact.
func DecodeCSV(data []byte) ([]Record, error) {
	data = bytes.TrimPrefix(data, bom)
	r := csv.NewReader(bytes.NewReader(data))

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if canonical, ok := legacyColumns[name]; ok {
			name = canonical
		}
		idx[name] = i
	}
	for _, col := range Columns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var records []Record
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		key := rec.Code + "|" + rec.EffectiveDate.Format(DateFormat)
		if seen[key] {
			return nil, fmt.Errorf("line %d: duplicate code %s for %s", line, rec.Code, rec.EffectiveDate.Format(DateFormat))
		}
		seen[key] = true
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string, idx map[string]int) (Record, error) {
	get := func(col string) string { return strings.TrimSpace(row[idx[col]]) }

	mid, err := decimal.NewFromString(get("mid"))
	if err != nil {
		return Record{}, fmt.Errorf("invalid mid %q", get("mid"))
	}
	if !Finite(mid) {
		return Record{}, fmt.Errorf("invalid mid %q: out of range", get("mid"))
	}
	if mid.IsNegative() {
		return Record{}, fmt.Errorf("negative mid %s", mid)
	}

	code := get("code")
	if code == "" {
		return Record{}, errors.New("empty code")
	}

	date, err := ParseDate(get("effective_date"))
	if err != nil {
		return Record{}, fmt.Errorf("invalid effective_date %q", get("effective_date"))
	}

	ts, err := parseTimestamp(get("transform_timestamp"))
	if err != nil {
		return Record{}, fmt.Errorf("invalid transform_timestamp %q", get("transform_timestamp"))
	}

	return Record{
		Currency:           get("currency"),
		Code:               code,
		Mid:                mid,
		TableName:          get("table_name"),
		EffectiveDate:      date,
		TransformTimestamp: ts,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{TimestampFormat, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
