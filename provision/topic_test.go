//go:build unit

package provision_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hugolhafner/go-transit/kafka"
	mockkafka "github.com/hugolhafner/go-transit/kafka/mock"
	"github.com/hugolhafner/go-transit/logger"
	mocklogger "github.com/hugolhafner/go-transit/logger/mock"
	"github.com/hugolhafner/go-transit/provision"
	"github.com/stretchr/testify/require"
)

func TestTopicProvisioner_EnsureIsIdempotent(t *testing.T) {
	client := mockkafka.NewClient()
	p := provision.NewTopicProvisioner(client, provision.NewRegistry())

	spec := kafka.TopicSpec{Name: "arm.stations.v1.arrivals", Partitions: 1, ReplicationFactor: 1}
	require.NoError(t, p.Ensure(context.Background(), spec))
	require.NoError(t, p.Ensure(context.Background(), spec))

	require.Equal(t, 1, client.CreateTopicCalls(spec.Name))
	got, ok := client.Topic(spec.Name)
	require.True(t, ok)
	require.Equal(t, spec, got)
}

func TestTopicProvisioner_SharedRegistryAcrossProvisioners(t *testing.T) {
	client := mockkafka.NewClient()
	registry := provision.NewRegistry()

	spec := kafka.TopicSpec{Name: "t", Partitions: 1, ReplicationFactor: 1}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = provision.NewTopicProvisioner(client, registry).Ensure(context.Background(), spec)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, client.CreateTopicCalls("t"))
}

func TestTopicProvisioner_AlreadyExistsIsNotAnError(t *testing.T) {
	client := mockkafka.NewClient()
	client.AddTopic(kafka.TopicSpec{Name: "t", Partitions: 1, ReplicationFactor: 1})

	l := mocklogger.New()
	p := provision.NewTopicProvisioner(client, provision.NewRegistry(), provision.WithLogger(l))

	err := p.Ensure(context.Background(), kafka.TopicSpec{Name: "t", Partitions: 1, ReplicationFactor: 1})
	require.NoError(t, err)
	l.AssertCalledWithLevelAndMessage(t, logger.InfoLevel, "Topic already exists")
}

func TestTopicProvisioner_FailureIsLoggedReturnedAndNotRetried(t *testing.T) {
	boom := errors.New("broker unavailable")
	client := mockkafka.NewClient()
	client.SetCreateTopicErrorFunc(func(kafka.TopicSpec) error { return boom })

	l := mocklogger.New()
	registry := provision.NewRegistry()
	p := provision.NewTopicProvisioner(client, registry, provision.WithLogger(l))

	spec := kafka.TopicSpec{Name: "t", Partitions: 1, ReplicationFactor: 1}
	err := p.Ensure(context.Background(), spec)
	require.ErrorIs(t, err, boom)
	l.AssertCalledWithLevelAndMessage(t, logger.ErrorLevel, "Failed to create topic")
	require.True(t, registry.Provisioned("t"))

	require.NoError(t, p.Ensure(context.Background(), spec))
	require.Equal(t, 1, client.CreateTopicCalls("t"))
}

func TestTopicProvisioner_InvalidSpec(t *testing.T) {
	client := mockkafka.NewClient()
	p := provision.NewTopicProvisioner(client, nil)

	tests := []struct {
		name string
		spec kafka.TopicSpec
	}{
		{"empty name", kafka.TopicSpec{Partitions: 1, ReplicationFactor: 1}},
		{"zero partitions", kafka.TopicSpec{Name: "t", ReplicationFactor: 1}},
		{"zero replicas", kafka.TopicSpec{Name: "t", Partitions: 1}},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				err := p.Ensure(context.Background(), tt.spec)
				require.ErrorIs(t, err, provision.ErrInvalidTopic)
			},
		)
	}

	require.Equal(t, 0, client.CreateTopicCalls("t"))
}
