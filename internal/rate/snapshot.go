package rate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptySnapshot = errors.New("snapshot is empty")
	ErrMissingRates  = errors.New("snapshot is missing 'rates' key")
)

// Snapshot is one unmodified rate-table response.
type Snapshot struct {
	Body   json.RawMessage
	Tables []Table
}

// Table is a published rate table. Rates keep every source field so the
// normalizer can report unexpected columns.
type Table struct {
	Table         string           `json:"table"`
	No            string           `json:"no"`
	EffectiveDate string           `json:"effectiveDate"`
	Rates         []map[string]any `json:"rates"`
}

// Count returns the number of rate entries in the first table.
func (s Snapshot) Count() int {
	if len(s.Tables) == 0 {
		return 0
	}
	return len(s.Tables[0].Rates)
}

// ParseSnapshot decodes and validates a rate-table body: it must be a
// non-empty array whose first element carries a "rates" key.
func ParseSnapshot(body []byte) (Snapshot, error) {
	var elems []map[string]json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(elems) == 0 {
		return Snapshot{}, ErrEmptySnapshot
	}
	if _, ok := elems[0]["rates"]; !ok {
		return Snapshot{}, ErrMissingRates
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var tables []Table
	if err := dec.Decode(&tables); err != nil {
		return Snapshot{}, fmt.Errorf("decode rate tables: %w", err)
	}

	return Snapshot{Body: json.RawMessage(body), Tables: tables}, nil
}

// Indent returns the snapshot body pretty-printed with two-space indentation.
func (s Snapshot) Indent() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, s.Body, "", "  "); err != nil {
		return nil, fmt.Errorf("indent snapshot: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
