// internal/clients/client.go
package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"bookexchange/internal/logging"
	"bookexchange/internal/metrics"
)

// ErrNotFound is returned when the downstream service answers 404.
var ErrNotFound = errors.New("resource not found")

const requestTimeout = 5 * time.Second

// baseClient performs JSON GETs against one downstream service behind a
// circuit breaker. A 404 counts as a successful call.
type baseClient struct {
	name    string
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

func newBaseClient(name, baseURL string, httpClient *http.Client) *baseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	metrics.ClientBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("service", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.ClientBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &baseClient{name: name, baseURL: baseURL, http: httpClient, cb: cb}
}

// getJSON fetches path and decodes the body into dst.
func (c *baseClient) getJSON(ctx context.Context, path string, dst interface{}) error {
	body, err := c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if id := logging.RequestIDFromContext(ctx); id != "" {
			req.Header.Set("X-Request-ID", id)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return fmt.Errorf("%s GET %s: %w", c.name, path, err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%s GET %s: decode: %w", c.name, path, err)
	}
	return nil
}
