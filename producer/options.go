package producer

import (
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
)

type config struct {
	partitions int32
	replicas   int16
	logger     logger.Logger
	telemetry  *otel.Telemetry
}

func defaultConfig() config {
	return config{
		partitions: 1,
		replicas:   1,
		logger:     logger.NewNoopLogger(),
		telemetry:  otel.Noop(),
	}
}

type Option func(*config)

// WithPartitions sets the partition count used if the topic has to be created.
func WithPartitions(n int32) Option {
	return func(c *config) {
		c.partitions = n
	}
}

// WithReplicas sets the replication factor used if the topic has to be created.
func WithReplicas(n int16) Option {
	return func(c *config) {
		c.replicas = n
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
