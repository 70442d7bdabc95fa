// Package nbp fetches the current exchange-rate table from the Narodowy
// Bank Polski web API.
package nbp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
)

const (
	DefaultBaseURL = "https://api.nbp.pl/api/exchangerates/tables"
	DefaultTable   = "A"
	defaultTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
	userAgent      = "nbp-datahub/1.0"
)

// Client fetches rate tables.
type Client struct {
	client  *http.Client
	baseURL string
	table   string
	timeout time.Duration
}

// New creates a Client with the given options applied.
func New(opts ...Option) *Client {
	c := &Client{
		client:  http.DefaultClient,
		baseURL: DefaultBaseURL,
		table:   DefaultTable,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithClient sets the HTTP client.
func WithClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithBaseURL overrides the tables endpoint, e.g. for a mock server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTable selects table A, B or C.
func WithTable(t string) Option {
	return func(c *Client) { c.table = strings.ToUpper(t) }
}

// WithTimeout bounds a single fetch. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Endpoint returns the URL fetched for the configured table.
func (c *Client) Endpoint() string {
	return fmt.Sprintf("%s/%s?format=json", c.baseURL, c.table)
}

// Table returns the configured table letter.
func (c *Client) Table() string { return c.table }

// Fetch performs one GET of the current table and validates its shape.
// Every failure is a SOURCE error and nothing is retried.
func (c *Client) Fetch(ctx context.Context) (rate.Snapshot, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint(), nil)
	if err != nil {
		return rate.Snapshot{}, apperror.Wrap(apperror.Source, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	res, err := c.client.Do(req) //nolint:gosec // URL from internal config
	if err != nil {
		return rate.Snapshot{}, apperror.Wrap(apperror.Source, "fetch rate table", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return rate.Snapshot{}, apperror.New(apperror.Source,
			fmt.Sprintf("nbp returned unexpected status: %d", res.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return rate.Snapshot{}, apperror.Wrap(apperror.Source, "read response", err)
	}

	snap, err := rate.ParseSnapshot(body)
	if err != nil {
		return rate.Snapshot{}, apperror.Wrap(apperror.Source, "invalid nbp response", err)
	}
	return snap, nil
}
