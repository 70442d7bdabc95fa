package nbp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
)

const tableA = `[{"table":"A","no":"205/A/NBP/2025","effectiveDate":"2025-10-22","rates":[
{"currency":"dolar amerykański","code":"USD","mid":3.65},
{"currency":"euro","code":"EUR","mid":4.2456}]}]`

func newTestClient(t *testing.T, status int, body string) (*Client, *string) {
	t.Helper()
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path + "?" + r.URL.RawQuery
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return New(WithClient(ts.Client()), WithBaseURL(ts.URL+"/tables/")), &path
}

func TestFetch(t *testing.T) {
	c, path := newTestClient(t, http.StatusOK, tableA)

	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/tables/A?format=json", *path)
	assert.Equal(t, 2, snap.Count())
	assert.Equal(t, "2025-10-22", snap.Tables[0].EffectiveDate)
}

func TestFetchTable(t *testing.T) {
	c, path := newTestClient(t, http.StatusOK, tableA)
	WithTable("c")(c)

	_, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/tables/C?format=json", *path)
	assert.Equal(t, "C", c.Table())
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "oops"},
		{name: "not found", status: http.StatusNotFound, body: "404 NotFound"},
		{name: "not json", status: http.StatusOK, body: "<html>"},
		{name: "empty array", status: http.StatusOK, body: "[]", target: rate.ErrEmptySnapshot},
		{name: "missing rates", status: http.StatusOK, body: `[{"table":"A"}]`, target: rate.ErrMissingRates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.status, tt.body)
			_, err := c.Fetch(context.Background())
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.Source), "got %v", err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c := New(WithClient(ts.Client()), WithBaseURL(ts.URL), WithTimeout(50*time.Millisecond))
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
