package provision

import (
	"net/http"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type config struct {
	logger      logger.Logger
	telemetry   *otel.Telemetry
	httpClient  HTTPClient
	maxAttempts int
	backoff     backoff.Backoff
}

func defaultConfig() config {
	return config{
		logger:      logger.NewNoopLogger(),
		telemetry:   otel.Noop(),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxAttempts: 3,
		backoff:     backoff.NewFixed(time.Second),
	}
}

type Option func(*config)

func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func WithTelemetry(t *otel.Telemetry) Option {
	return func(c *config) {
		c.telemetry = t
	}
}

// WithHTTPClient sets the client used by the HTTP based provisioners.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// WithRetry controls how often HTTP provisioners retry transport failures.
func WithRetry(maxAttempts int, b backoff.Backoff) Option {
	return func(c *config) {
		c.maxAttempts = maxAttempts
		c.backoff = b
	}
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxAttempts < 1 {
		cfg.maxAttempts = 1
	}
	return cfg
}
