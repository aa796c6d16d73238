//go:build unit

package serde_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hugolhafner/go-transit/schema"
	"github.com/hugolhafner/go-transit/serde"
	"github.com/stretchr/testify/require"
)

const stopSchema = `{
	"type": "record",
	"name": "stop",
	"fields": [
		{"name": "stop_id", "type": "int"},
		{"name": "name", "type": "string"},
		{"name": "accessible", "type": "boolean"}
	]
}`

type stop struct {
	StopID     int    `json:"stop_id"`
	Name       string `json:"name"`
	Accessible bool   `json:"accessible"`
}

type fakeRegistry struct {
	schemas   map[int]string
	registers int
	err       error
}

func (f *fakeRegistry) Register(_ context.Context, _ string, s string) (int, error) {
	f.registers++
	if f.err != nil {
		return 0, f.err
	}
	f.schemas[42] = s
	return 42, nil
}

func (f *fakeRegistry) GetByID(_ context.Context, id int) (*schema.Schema, error) {
	s, ok := f.schemas[id]
	if !ok {
		return nil, errors.New("unknown id")
	}
	return &schema.Schema{ID: id, Schema: s}, nil
}

func TestAvroSerde_InvalidSchema(t *testing.T) {
	_, err := serde.Avro[stop](`{"type": "nope"}`)
	require.Error(t, err)
}

func TestAvroSerde_Roundtrip(t *testing.T) {
	s, err := serde.Avro[stop](stopSchema)
	require.NoError(t, err)

	in := stop{StopID: 30001, Name: "Austin", Accessible: true}
	data, err := s.Serialise("stops", in)
	require.NoError(t, err)

	out, err := s.Deserialise("stops", data)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestAvroSerde_NonConformingValue(t *testing.T) {
	s, err := serde.Avro[map[string]any](stopSchema)
	require.NoError(t, err)

	tests := []struct {
		name  string
		value map[string]any
	}{
		{name: "wrong type", value: map[string]any{"stop_id": "abc", "name": "x", "accessible": true}},
		{name: "missing field", value: map[string]any{"stop_id": 1, "name": "x"}},
		{name: "unknown field", value: map[string]any{"stop_id": 1, "name": "x", "accessible": true, "extra": 1}},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				_, err := s.Serialise("stops", tt.value)
				require.Error(t, err)
			},
		)
	}
}

func TestAvroSerde_TruncatedPayload(t *testing.T) {
	s, err := serde.Avro[stop](stopSchema)
	require.NoError(t, err)

	data, err := s.Serialise("stops", stop{StopID: 1, Name: "Clark/Lake"})
	require.NoError(t, err)

	_, err = s.Deserialise("stops", data[:2])
	require.Error(t, err)
}

func TestAvroSerde_SchemaRegistryFraming(t *testing.T) {
	reg := &fakeRegistry{schemas: map[int]string{}}
	s, err := serde.Avro[stop](stopSchema, serde.WithSchemaRegistry(reg, serde.TopicValueSubject))
	require.NoError(t, err)

	in := stop{StopID: 2, Name: "Belmont"}
	data, err := s.Serialise("stops", in)
	require.NoError(t, err)

	id, _, err := schema.Unframe(data)
	require.NoError(t, err)
	require.Equal(t, 42, id)

	_, err = s.Serialise("stops", in)
	require.NoError(t, err)
	require.Equal(t, 1, reg.registers)

	reader, err := serde.Avro[stop](stopSchema, serde.WithSchemaRegistry(reg, serde.TopicValueSubject))
	require.NoError(t, err)
	out, err := reader.Deserialise("stops", data)
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = reader.Deserialise("stops", []byte("raw"))
	require.ErrorIs(t, err, schema.ErrNotFramed)
}

func TestAvroSerde_RegistryFailure(t *testing.T) {
	reg := &fakeRegistry{schemas: map[int]string{}, err: errors.New("unavailable")}
	s, err := serde.Avro[stop](stopSchema, serde.WithSchemaRegistry(reg, serde.TopicValueSubject))
	require.NoError(t, err)

	_, err = s.Serialise("stops", stop{})
	require.Error(t, err)
}
