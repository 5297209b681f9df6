package connector

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bustedglowsticks/quantum-yield-empire-sub001/ledger"
)

// Defaults for the connector's timing and retry knobs.
const (
	DefaultMaxConnectAttempts = 5
	DefaultRetryInterval      = 3 * time.Second
	DefaultConnectTimeout     = 30 * time.Second
	DefaultRequestTimeout     = 15 * time.Second
	DefaultSubmitTimeout      = 30 * time.Second
	DefaultHistoryLimit       = 10
)

// DialFunc opens a ledger session to the given URL. The default dials the
// WebSocket client; tests substitute fakes.
type DialFunc func(ctx context.Context, url string) (ledger.Client, error)

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the structured logger. The default is the global zerolog
// logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Connector) { c.log = logger }
}

// WithDialer replaces the transport dialer.
func WithDialer(dial DialFunc) Option {
	return func(c *Connector) { c.dial = dial }
}

// WithMaxConnectAttempts bounds the number of dial attempts per Connect call.
func WithMaxConnectAttempts(n int) Option {
	return func(c *Connector) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryInterval sets the fixed delay between failed dial attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// WithConnectTimeout bounds the whole Connect call, retries and faucet
// funding included.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithRequestTimeout bounds each post-connect query round trip.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithSubmitTimeout bounds a submission including its validation wait.
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.submitTimeout = d
		}
	}
}

// WithSubmitLimiter applies a rate limiter ahead of each submission.
func WithSubmitLimiter(limiter *rate.Limiter) Option {
	return func(c *Connector) { c.limiter = limiter }
}

// WithHTTPClient sets the HTTP client used for faucet funding requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) {
		if client != nil {
			c.httpClient = client
		}
	}
}
