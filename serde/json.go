package serde

import (
	"encoding/json"
	"fmt"
)

type jsonSerde[T any] struct{}

// JSON encodes T with encoding/json. Unknown fields are ignored so connector
// rows may carry more columns than T declares.
func JSON[T any]() Serde[T] {
	return jsonSerde[T]{}
}

func (jsonSerde[T]) Serialise(topic string, value T) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", topic, err)
	}
	return data, nil
}

func (jsonSerde[T]) Deserialise(topic string, data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("topic %s: %w", topic, err)
	}
	return out, nil
}
