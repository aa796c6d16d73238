package agent

import (
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-transit/errorhandler"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
)

type options struct {
	logger    logger.Logger
	telemetry *otel.Telemetry

	// errorHandler overrides the default phase routing when set.
	errorHandler errorhandler.Handler

	maxProduceAttempts int
	produceBackoff     backoff.Backoff

	reset                 kafka.OffsetReset
	pollTimeout           time.Duration
	pollErrorBackoff      backoff.Backoff
	channelBufferSize     int
	workerShutdownTimeout time.Duration
}

func defaultOptions() options {
	return options{
		logger:                logger.NewNoopLogger(),
		telemetry:             otel.Noop(),
		maxProduceAttempts:    5,
		produceBackoff:        backoff.NewFixed(500 * time.Millisecond),
		reset:                 kafka.ResumeCommitted,
		pollTimeout:           100 * time.Millisecond,
		pollErrorBackoff:      backoff.NewFixed(time.Second),
		channelBufferSize:     100,
		workerShutdownTimeout: 30 * time.Second,
	}
}

type Option func(*options)

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithTelemetry(t *otel.Telemetry) Option {
	return func(o *options) {
		o.telemetry = t
	}
}

// WithErrorHandler replaces the default handling of skipping undecodable
// records, failing on processor errors and retrying sends.
func WithErrorHandler(h errorhandler.Handler) Option {
	return func(o *options) {
		o.errorHandler = h
	}
}

// WithProduceRetry bounds how often a failed send to the sink is attempted
// before the agent stops.
func WithProduceRetry(maxAttempts int, b backoff.Backoff) Option {
	return func(o *options) {
		if maxAttempts > 0 {
			o.maxProduceAttempts = maxAttempts
		}
		if b != nil {
			o.produceBackoff = b
		}
	}
}

// WithResetToEarliest starts newly assigned source partitions from the
// earliest retained offset.
func WithResetToEarliest(earliest bool) Option {
	return func(o *options) {
		if earliest {
			o.reset = kafka.ResetEarliest
		} else {
			o.reset = kafka.ResumeCommitted
		}
	}
}

func WithPollTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollTimeout = d
		}
	}
}

func WithPollErrorBackoff(b backoff.Backoff) Option {
	return func(o *options) {
		if b != nil {
			o.pollErrorBackoff = b
		}
	}
}

// WithChannelBufferSize sets the queue length of each partition worker.
func WithChannelBufferSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.channelBufferSize = size
		}
	}
}

// WithWorkerShutdownTimeout bounds how long a stopping worker may take to
// finish queued records.
func WithWorkerShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.workerShutdownTimeout = d
		}
	}
}
