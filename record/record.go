package record

import (
	"time"

	"github.com/hugolhafner/go-transit/kafka"
)

type Metadata struct {
	Timestamp time.Time
	Headers   []kafka.Header

	Topic     string
	Partition int32
	Offset    int64
}

// MetadataFrom captures the origin of a consumed record.
func MetadataFrom(r kafka.ConsumerRecord) Metadata {
	return Metadata{
		Timestamp: r.Timestamp,
		Headers:   r.Headers,
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
	}
}

type Record[K, V any] struct {
	Key   K
	Value V
	Metadata
}
