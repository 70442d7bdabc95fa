package rate

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	ts := time.Date(2025, 10, 22, 14, 3, 11, 0, time.UTC)
	day := time.Date(2025, 10, 22, 0, 0, 0, 0, time.UTC)
	return []Record{
		{Currency: "dolar amerykański", Code: "USD", Mid: decimal.RequireFromString("3.65"), TableName: "A", EffectiveDate: day, TransformTimestamp: ts},
		{Currency: "euro", Code: "EUR", Mid: decimal.RequireFromString("4.2449"), TableName: "A", EffectiveDate: day, TransformTimestamp: ts},
	}
}

func TestEncodeCSV(t *testing.T) {
	out, err := EncodeCSV(sampleRecords())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, bom), "clean artifacts start with a UTF-8 BOM")
	lines := strings.Split(strings.TrimSpace(string(bytes.TrimPrefix(out, bom))), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "currency,code,mid,table_name,effective_date,transform_timestamp", lines[0])
	assert.Equal(t, "dolar amerykański,USD,3.65,A,2025-10-22,2025-10-22T14:03:11", lines[1])
}

func TestDecodeCSV_RoundTrip(t *testing.T) {
	want := sampleRecords()
	out, err := EncodeCSV(want)
	require.NoError(t, err)

	got, err := DecodeCSV(out)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Code, got[i].Code)
		assert.True(t, want[i].Mid.Equal(got[i].Mid))
		assert.True(t, want[i].EffectiveDate.Equal(got[i].EffectiveDate))
		assert.True(t, want[i].TransformTimestamp.Equal(got[i].TransformTimestamp))
	}
}

func TestDecodeCSV_LegacyHeader(t *testing.T) {
	data := "\ufeffcurrency,code,mid,table,effectiveDate,transform_timestamp\n" +
		"dolar amerykański,USD,3.65,A,2025-10-22,2025-10-22T14:03:11\n"

	got, err := DecodeCSV([]byte(data))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].TableName)
	assert.Equal(t, "2025-10-22", got[0].EffectiveDate.Format(DateFormat))
}

func TestDecodeCSV_Errors(t *testing.T) {
	header := "currency,code,mid,table_name,effective_date,transform_timestamp\n"
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "", "csv is empty"},
		{"missing column", "currency,code,mid\nx,USD,1\n", `missing column "table_name"`},
		{"bad mid", header + "euro,EUR,abc,A,2025-10-22,2025-10-22T14:03:11\n", "line 2: invalid mid"},
		{"negative mid", header + "euro,EUR,-1,A,2025-10-22,2025-10-22T14:03:11\n", "line 2: negative mid"},
		{"overflowing mid", header + "euro,EUR,1e400,A,2025-10-22,2025-10-22T14:03:11\n", "line 2: invalid mid \"1e400\": out of range"},
		{"overflowing mid after valid row", header +
			"dolar,USD,3.65,A,2025-10-22,2025-10-22T14:03:11\n" +
			"euro,EUR,-1e400,A,2025-10-22,2025-10-22T14:03:11\n", "line 3: invalid mid"},
		{"bad date", header + "euro,EUR,1,A,22.10.2025,2025-10-22T14:03:11\n", "line 2: invalid effective_date"},
		{"duplicate", header +
			"euro,EUR,1,A,2025-10-22,2025-10-22T14:03:11\n" +
			"euro,EUR,2,A,2025-10-22,2025-10-22T14:03:11\n", "line 3: duplicate code EUR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCSV([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite(decimal.RequireFromString("3.65")))
	assert.True(t, Finite(decimal.RequireFromString("1e-400")))
	assert.False(t, Finite(decimal.RequireFromString("1e400")))
	assert.False(t, Finite(decimal.RequireFromString("-1e400")))
}

func TestDates(t *testing.T) {
	recs := sampleRecords()
	recs = append(recs, Record{Code: "CHF", EffectiveDate: time.Date(2025, 10, 21, 0, 0, 0, 0, time.UTC)})

	dates := Dates(recs)
	require.Len(t, dates, 2)
	assert.Equal(t, "2025-10-22", dates[0].Format(DateFormat))
	assert.Equal(t, "2025-10-21", dates[1].Format(DateFormat))
}
