// Package rates integrates the external exchange-rate collaborator: an
// HTTP source that may be slow or unavailable, and a cache that refreshes
// it in the background. Pricing treats a missing rate as a fail-soft
// condition, so the cache exposes an explicit "not loaded yet" state
// instead of defaulting to any rate.
package rates

import (
	"io"
	"net/http"
	"strings"
	"time"

	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned while no exchange rate has been loaded.
var ErrUnavailable = errors.New("exchange rate not loaded")

// Source yields the current foreign → local exchange rate.
type Source interface {
	Fetch(ctx context.Context) (decimal.Decimal, error)
}

// Client fetches the exchange rate from the remote rate endpoint.
// Fetching is a pure read, so transient failures are retried with
// constant backoff — unlike order mutations, a repeated read is safe.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    uint64
	backoff    time.Duration
}

// NewClient creates a rate client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		retries:    3,
		backoff:    time.Second,
	}
}

// Fetch requests GET {base}/api/v1/rate and returns the parsed rate.
func (c *Client) Fetch(ctx context.Context) (decimal.Decimal, error) {
	var rate decimal.Decimal
	b := retry.WithMaxRetries(c.retries, retry.NewConstant(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		r, err := c.fetchOnce(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		rate = r
		return nil
	})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch rate")
	}
	return rate, nil
}

func (c *Client) fetchOnce(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/rate", nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, errors.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read body")
	}
	return parseRate(body)
}

// parseRate decodes the collaborator's response body, e.g.
// {"currency":"USD","rate":"12650.40"}. The rate may arrive as a JSON
// string or number.
func parseRate(body []byte) (decimal.Decimal, error) {
	var raw string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "rate":
			switch d.Next() {
			case jx.String:
				s, err := d.Str()
				if err != nil {
					return err
				}
				raw = s
			case jx.Number:
				n, err := d.Num()
				if err != nil {
					return err
				}
				raw = n.String()
			default:
				return errors.New("rate: unexpected type")
			}
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode rate response")
	}
	if raw == "" {
		return decimal.Zero, errors.New("rate missing from response")
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse rate")
	}
	if !rate.IsPositive() {
		return decimal.Zero, errors.Errorf("non-positive rate %s", rate)
	}
	return rate, nil
}
