//go:build unit

package provision_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hugolhafner/go-transit/kafka"
	mockkafka "github.com/hugolhafner/go-transit/kafka/mock"
	"github.com/hugolhafner/go-transit/provision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var summaryStatement = provision.Statement{
	Name:              "turnstile_summary",
	SQL:               "CREATE TABLE turnstile_summary AS SELECT 1;",
	SentinelTopic:     "TURNSTILE_SUMMARY",
	StreamsProperties: map[string]string{"ksql.streams.auto.offset.reset": "earliest"},
}

func TestQueryProvisioner_ExecutesStatement(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/ksql", r.URL.Path)
				assert.Equal(t, "application/vnd.ksql.v1+json", r.Header.Get("Content-Type"))
				assert.Equal(t, "application/vnd.ksql.v1+json", r.Header.Get("Accept"))

				var body map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				assert.Equal(t, summaryStatement.SQL, body["ksql"])
				assert.Equal(
					t, map[string]any{"ksql.streams.auto.offset.reset": "earliest"}, body["streamsProperties"],
				)
				w.WriteHeader(http.StatusOK)
			},
		),
	)
	defer ts.Close()

	p := provision.NewQueryProvisioner(ts.URL, mockkafka.NewClient(), provision.NewRegistry())
	require.NoError(t, p.Ensure(context.Background(), summaryStatement))
	require.NoError(t, p.Ensure(context.Background(), summaryStatement))
	require.Equal(t, int32(1), calls.Load())
}

func TestQueryProvisioner_SkipsWhenSentinelTopicExists(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
			},
		),
	)
	defer ts.Close()

	client := mockkafka.NewClient()
	client.AddTopic(kafka.TopicSpec{Name: "TURNSTILE_SUMMARY", Partitions: 1, ReplicationFactor: 1})

	p := provision.NewQueryProvisioner(ts.URL, client, nil)
	require.NoError(t, p.Ensure(context.Background(), summaryStatement))
	require.Equal(t, int32(0), calls.Load())
}

func TestQueryProvisioner_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"message":"line 1:1: mismatched input"}`, http.StatusBadRequest)
			},
		),
	)
	defer ts.Close()

	p := provision.NewQueryProvisioner(ts.URL, mockkafka.NewClient(), nil)
	err := p.Ensure(context.Background(), summaryStatement)
	require.ErrorContains(t, err, "mismatched input")
}

func TestQueryProvisioner_InvalidStatement(t *testing.T) {
	p := provision.NewQueryProvisioner("http://unused", nil, nil)
	err := p.Ensure(context.Background(), provision.Statement{Name: "x"})
	require.ErrorIs(t, err, provision.ErrInvalidStatement)
}
