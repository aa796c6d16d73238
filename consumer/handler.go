package consumer

import (
	"context"

	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/record"
	"github.com/hugolhafner/go-transit/serde"
)

// Handler processes one consumed record. A returned *serde.DeserializationError
// skips the record; any other error stops the consumer.
type Handler interface {
	Handle(ctx context.Context, rec kafka.ConsumerRecord) error
}

type HandlerFunc func(ctx context.Context, rec kafka.ConsumerRecord) error

func (f HandlerFunc) Handle(ctx context.Context, rec kafka.ConsumerRecord) error {
	return f(ctx, rec)
}

// Typed decodes the key and value before calling fn. A nil key deserialiser
// leaves the key at its zero value. Pass Avro deserialisers for
// schema-validated topics and JSON or String ones for plain topics.
func Typed[K, V any](
	keyDe serde.Deserialiser[K],
	valueDe serde.Deserialiser[V],
	fn func(ctx context.Context, r record.Record[K, V]) error,
) Handler {
	return HandlerFunc(
		func(ctx context.Context, rec kafka.ConsumerRecord) error {
			var key K
			if keyDe != nil && rec.Key != nil {
				var err error
				if key, err = serde.DeserialiseKey(keyDe, rec.Topic, rec.Key); err != nil {
					return err
				}
			}

			value, err := serde.DeserialiseValue(valueDe, rec.Topic, rec.Value)
			if err != nil {
				return err
			}

			return fn(ctx, record.Record[K, V]{Key: key, Value: value, Metadata: record.MetadataFrom(rec)})
		},
	)
}
