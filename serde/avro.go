package serde

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/go-transit/schema"
	"github.com/linkedin/goavro/v2"
)

type avroConfig struct {
	registry        schema.Registry
	subjectStrategy func(topic string) string
	timeout         time.Duration
}

type AvroOption func(*avroConfig)

// WithSchemaRegistry frames every payload with the schema id obtained by
// registering the schema under the subject returned by subject(topic).
func WithSchemaRegistry(reg schema.Registry, subject func(topic string) string) AvroOption {
	return func(c *avroConfig) {
		c.registry = reg
		c.subjectStrategy = subject
	}
}

// WithRegistryTimeout bounds each schema registry call.
func WithRegistryTimeout(d time.Duration) AvroOption {
	return func(c *avroConfig) {
		c.timeout = d
	}
}

// TopicKeySubject and TopicValueSubject implement the default
// topic name subject strategy.
func TopicKeySubject(topic string) string   { return topic + "-key" }
func TopicValueSubject(topic string) string { return topic + "-value" }

// AvroSerde encodes T as Avro binary. T is mapped onto the schema through its
// JSON representation, so struct field tags must use the Avro field names.
type AvroSerde[T any] struct {
	codec  *goavro.Codec
	config avroConfig

	mu       sync.RWMutex
	ids      map[string]int
	decoders map[int]*goavro.Codec
}

var _ Serde[any] = (*AvroSerde[any])(nil)

func Avro[T any](schemaJSON string, opts ...AvroOption) (*AvroSerde[T], error) {
	codec, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("parse avro schema: %w", err)
	}

	cfg := avroConfig{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &AvroSerde[T]{
		codec:    codec,
		config:   cfg,
		ids:      make(map[string]int),
		decoders: make(map[int]*goavro.Codec),
	}, nil
}

// Schema returns the canonical form of the writer schema.
func (s *AvroSerde[T]) Schema() string {
	return s.codec.CanonicalSchema()
}

func (s *AvroSerde[T]) Serialise(topic string, value T) ([]byte, error) {
	textual, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	native, _, err := s.codec.NativeFromTextual(textual)
	if err != nil {
		return nil, fmt.Errorf("value does not conform to schema: %w", err)
	}

	binary, err := s.codec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, fmt.Errorf("encode avro: %w", err)
	}

	if s.config.registry == nil {
		return binary, nil
	}

	id, err := s.schemaID(topic)
	if err != nil {
		return nil, err
	}
	return schema.Frame(id, binary), nil
}

func (s *AvroSerde[T]) Deserialise(topic string, data []byte) (T, error) {
	var result T

	codec := s.codec
	payload := data
	if s.config.registry != nil {
		id, framed, err := schema.Unframe(data)
		if err != nil {
			return result, err
		}

		codec, err = s.writerCodec(id)
		if err != nil {
			return result, err
		}
		payload = framed
	}

	native, _, err := codec.NativeFromBinary(payload)
	if err != nil {
		return result, fmt.Errorf("decode avro: %w", err)
	}

	textual, err := codec.TextualFromNative(nil, native)
	if err != nil {
		return result, fmt.Errorf("decode avro: %w", err)
	}

	if err := json.Unmarshal(textual, &result); err != nil {
		return result, err
	}
	return result, nil
}

func (s *AvroSerde[T]) schemaID(topic string) (int, error) {
	subject := s.config.subjectStrategy(topic)

	s.mu.RLock()
	id, ok := s.ids[subject]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.timeout)
	defer cancel()

	id, err := s.config.registry.Register(ctx, subject, s.codec.Schema())
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.ids[subject] = id
	s.decoders[id] = s.codec
	s.mu.Unlock()

	return id, nil
}

func (s *AvroSerde[T]) writerCodec(id int) (*goavro.Codec, error) {
	s.mu.RLock()
	codec, ok := s.decoders[id]
	s.mu.RUnlock()
	if ok {
		return codec, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.timeout)
	defer cancel()

	sch, err := s.config.registry.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	codec, err = goavro.NewCodec(sch.Schema)
	if err != nil {
		return nil, fmt.Errorf("parse writer schema %d: %w", id, err)
	}

	s.mu.Lock()
	s.decoders[id] = codec
	s.mu.Unlock()

	return codec, nil
}
