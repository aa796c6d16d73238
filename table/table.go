package table

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
	"github.com/hugolhafner/go-transit/serde"
	"go.opentelemetry.io/otel/metric"
)

// Table is an in-memory key/value projection whose durable copy is its
// changelog topic. Entries are only ever inserted or overwritten.
type Table[K comparable, V any] struct {
	topic      string
	keySerde   serde.Serde[K]
	valueSerde serde.Serde[V]

	mu      sync.RWMutex
	entries map[K]V

	logger    logger.Logger
	telemetry *otel.Telemetry
	attrs     metric.MeasurementOption
}

type config struct {
	logger    logger.Logger
	telemetry *otel.Telemetry
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

func New[K comparable, V any](
	changelogTopic string, keySerde serde.Serde[K], valueSerde serde.Serde[V], opts ...Option,
) (*Table[K, V], error) {
	if changelogTopic == "" {
		return nil, errors.New("table: changelog topic is required")
	}
	if keySerde == nil || valueSerde == nil {
		return nil, errors.New("table: key and value serdes are required")
	}

	cfg := config{
		logger:    logger.NewNoopLogger(),
		telemetry: otel.Noop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Table[K, V]{
		topic:      changelogTopic,
		keySerde:   keySerde,
		valueSerde: valueSerde,
		entries:    make(map[K]V),
		logger:     cfg.logger.With("component", "table", "changelog", changelogTopic),
		telemetry:  cfg.telemetry,
		attrs:      metric.WithAttributes(otel.AttrTopic.String(changelogTopic)),
	}, nil
}

// Topic returns the changelog topic backing the table.
func (t *Table[K, V]) Topic() string {
	return t.topic
}

func (t *Table[K, V]) KeySerde() serde.Serde[K] {
	return t.keySerde
}

func (t *Table[K, V]) ValueSerde() serde.Serde[V] {
	return t.valueSerde
}

func (t *Table[K, V]) Put(key K, value V) {
	t.mu.Lock()
	_, existed := t.entries[key]
	t.entries[key] = value
	t.mu.Unlock()

	if !existed {
		t.telemetry.TableEntries.Add(context.Background(), 1, t.attrs)
	}
}

func (t *Table[K, V]) Get(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.entries[key]
	return v, ok
}

func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}

// Snapshot returns a copy of every entry.
func (t *Table[K, V]) Snapshot() map[K]V {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return maps.Clone(t.entries)
}

// Restore replays the changelog from its earliest offset, applying records in
// log order so the latest value per key wins. Records that cannot be decoded
// are logged and skipped.
func (t *Table[K, V]) Restore(ctx context.Context, reader kafka.ChangelogReader) error {
	records, err := reader.ReadChangelog(ctx, t.topic)
	if err != nil {
		return fmt.Errorf("read changelog %s: %w", t.topic, err)
	}

	var applied, skipped int
	for _, rec := range records {
		key, value, err := t.decode(rec)
		if err != nil {
			skipped++
			t.logger.Warn(
				"Skipping changelog record that could not be decoded",
				"error", err,
				"partition", rec.Partition,
				"offset", rec.Offset,
			)
			continue
		}

		t.Put(key, value)
		applied++
	}

	t.logger.Info("Restored table from changelog", "applied", applied, "skipped", skipped, "entries", t.Len())
	return nil
}

func (t *Table[K, V]) decode(rec kafka.ConsumerRecord) (K, V, error) {
	var value V

	key, err := serde.DeserialiseKey(t.keySerde, rec.Topic, rec.Key)
	if err != nil {
		return key, value, err
	}

	value, err = serde.DeserialiseValue(t.valueSerde, rec.Topic, rec.Value)
	return key, value, err
}
