package serde

import (
	"errors"
	"fmt"
)

// SerializationError is returned when a value does not conform to the
// format it is being written as.
type SerializationError struct {
	Topic string
	Part  Part
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialise %s for topic %s: %v", e.Part, e.Topic, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// DeserializationError is returned when a payload read from a topic cannot
// be decoded.
type DeserializationError struct {
	Topic string
	Part  Part
	Err   error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialise %s from topic %s: %v", e.Part, e.Topic, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

func IsDeserializationError(err error) bool {
	var de *DeserializationError
	return errors.As(err, &de)
}

func IsSerializationError(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}

// SerialiseKey runs s and wraps any failure in a SerializationError.
func SerialiseKey[T any](s Serialiser[T], topic string, key T) ([]byte, error) {
	data, err := s.Serialise(topic, key)
	if err != nil {
		return nil, &SerializationError{Topic: topic, Part: PartKey, Err: err}
	}
	return data, nil
}

func SerialiseValue[T any](s Serialiser[T], topic string, value T) ([]byte, error) {
	data, err := s.Serialise(topic, value)
	if err != nil {
		return nil, &SerializationError{Topic: topic, Part: PartValue, Err: err}
	}
	return data, nil
}

// DeserialiseKey runs d and wraps any failure in a DeserializationError.
func DeserialiseKey[T any](d Deserialiser[T], topic string, data []byte) (T, error) {
	v, err := d.Deserialise(topic, data)
	if err != nil {
		var zero T
		return zero, &DeserializationError{Topic: topic, Part: PartKey, Err: err}
	}
	return v, nil
}

func DeserialiseValue[T any](d Deserialiser[T], topic string, data []byte) (T, error) {
	v, err := d.Deserialise(topic, data)
	if err != nil {
		var zero T
		return zero, &DeserializationError{Topic: topic, Part: PartValue, Err: err}
	}
	return v, nil
}
