package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
	"github.com/hugolhafner/go-transit/provision"
	"github.com/hugolhafner/go-transit/serde"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrClosed = errors.New("producer is closed")

// Producer publishes typed records to a single topic.
type Producer[K, V any] struct {
	client     kafka.Producer
	topic      string
	keySerde   serde.Serialiser[K]
	valueSerde serde.Serialiser[V]

	logger    logger.Logger
	telemetry *otel.Telemetry
	attrs     metric.MeasurementOption

	// mu orders Publish against Close: Close takes the write side, so every
	// record produced under the read side is buffered before Flush runs.
	mu     sync.RWMutex
	closed bool
}

// New ensures the topic exists and returns a producer bound to it. A nil
// keySerde publishes every record without a key. Construction fails if the
// topic could not be provisioned.
func New[K, V any](
	ctx context.Context,
	client kafka.Producer,
	prov provision.Provisioner,
	topic string,
	keySerde serde.Serialiser[K],
	valueSerde serde.Serialiser[V],
	opts ...Option,
) (*Producer[K, V], error) {
	if valueSerde == nil {
		return nil, fmt.Errorf("producer for %s: value serialiser is required", topic)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	spec := kafka.TopicSpec{Name: topic, Partitions: cfg.partitions, ReplicationFactor: cfg.replicas}
	if err := prov.Ensure(ctx, spec); err != nil {
		return nil, fmt.Errorf("producer for %s: %w", topic, err)
	}

	p := &Producer[K, V]{
		client:     client,
		topic:      topic,
		keySerde:   keySerde,
		valueSerde: valueSerde,
		logger:     cfg.logger.With("component", "producer", "topic", topic),
		telemetry:  cfg.telemetry,
		attrs:      metric.WithAttributeSet(attribute.NewSet(otel.AttrTopic.String(topic))),
	}

	p.logger.Info("Producer created")
	return p, nil
}

func (p *Producer[K, V]) Topic() string {
	return p.topic
}

// Publish serialises key and value and hands the record to the client
// without waiting for the broker acknowledgement. Delivery failures are
// logged when they are reported.
func (p *Producer[K, V]) Publish(ctx context.Context, key K, value V) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	var keyBytes []byte
	if p.keySerde != nil {
		var err error
		if keyBytes, err = serde.SerialiseKey(p.keySerde, p.topic, key); err != nil {
			return err
		}
	}

	valueBytes, err := serde.SerialiseValue(p.valueSerde, p.topic, value)
	if err != nil {
		return err
	}

	var headers []kafka.Header
	p.telemetry.Propagator.Inject(ctx, otel.NewHeaderCarrier(&headers))

	start := time.Now()
	p.client.Produce(
		ctx, p.topic, keyBytes, valueBytes, headers, func(err error) {
			p.telemetry.ProduceDuration.Record(context.Background(), time.Since(start).Seconds(), p.attrs)
			if err != nil {
				p.telemetry.Errors.Add(context.Background(), 1, p.attrs)
				p.logger.Error("Failed to deliver record", "error", err)
				return
			}
			p.telemetry.MessagesProduced.Add(context.Background(), 1, p.attrs)
		},
	)

	return nil
}

// Close flushes every record accepted by Publish. Calling it again is a no-op.
func (p *Producer[K, V]) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.topic, err)
	}

	p.logger.Info("Producer closed")
	return nil
}
