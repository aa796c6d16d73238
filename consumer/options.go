package consumer

import (
	"context"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
)

type sleepFunc func(ctx context.Context, d time.Duration) error

type config struct {
	reset       kafka.OffsetReset
	idleBackoff backoff.Backoff
	pollTimeout time.Duration
	name        string
	logger      logger.Logger
	telemetry   *otel.Telemetry
	sleep       sleepFunc
}

func defaultConfig() config {
	return config{
		reset:       kafka.ResumeCommitted,
		idleBackoff: backoff.NewFixed(time.Second),
		pollTimeout: 100 * time.Millisecond,
		name:        "consumer",
		logger:      logger.NewNoopLogger(),
		telemetry:   otel.Noop(),
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Option func(*config)

// WithResetToEarliest makes every newly assigned partition start from the
// earliest retained offset instead of the committed one.
func WithResetToEarliest(earliest bool) Option {
	return func(c *config) {
		if earliest {
			c.reset = kafka.ResetEarliest
		} else {
			c.reset = kafka.ResumeCommitted
		}
	}
}

// WithIdleSleep sets the fixed wait after a drain cycle that found nothing.
func WithIdleSleep(d time.Duration) Option {
	return func(c *config) {
		c.idleBackoff = backoff.NewFixed(d)
	}
}

// WithIdleBackoff replaces the fixed idle wait. Next receives the number of
// consecutive empty cycles, starting at zero.
func WithIdleBackoff(b backoff.Backoff) Option {
	return func(c *config) {
		c.idleBackoff = b
	}
}

// WithPollTimeout bounds how long a single poll waits for a record.
func WithPollTimeout(d time.Duration) Option {
	return func(c *config) {
		c.pollTimeout = d
	}
}

// WithName labels log lines and metrics of this consumer.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

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
