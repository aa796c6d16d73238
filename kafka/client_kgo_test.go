//go:build unit

package kafka_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hugolhafner/go-transit/consumer"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kfake"
	"github.com/twmb/franz-go/pkg/kgo"
)

const arrivals = "arm.stations.v1.arrivals"

func newCluster(t *testing.T, topics ...string) []string {
	t.Helper()

	opts := []kfake.Opt{kfake.NumBrokers(1)}
	if len(topics) > 0 {
		opts = append(opts, kfake.SeedTopics(1, topics...))
	}

	cluster, err := kfake.NewCluster(opts...)
	require.NoError(t, err)
	t.Cleanup(cluster.Close)

	return cluster.ListenAddrs()
}

func newAdmin(t *testing.T, addrs []string) *kadm.Client {
	t.Helper()

	cl, err := kgo.NewClient(kgo.SeedBrokers(addrs...))
	require.NoError(t, err)
	t.Cleanup(cl.Close)

	return kadm.NewClient(cl)
}

func newKgoClient(t *testing.T, addrs []string, group string) *kafka.KgoClient {
	t.Helper()

	client, err := kafka.NewKgoClient(
		kafka.WithBootstrapServers(addrs),
		kafka.WithGroupID(group),
		kafka.WithSessionTimeout(6*time.Second),
	)
	require.NoError(t, err)
	return client
}

func seed(t *testing.T, client *kafka.KgoClient, topic string, values ...string) {
	t.Helper()

	for _, v := range values {
		require.NoError(t, client.Send(context.Background(), topic, nil, []byte(v), nil))
	}
}

func commitGroupOffset(t *testing.T, adm *kadm.Client, group, topic string, offset int64) {
	t.Helper()

	var os kadm.Offsets
	os.AddOffset(topic, 0, offset, -1)
	require.NoError(t, adm.CommitAllOffsets(context.Background(), group, os))
}

func committedOffset(t *testing.T, adm *kadm.Client, group, topic string) (int64, bool) {
	t.Helper()

	resps, err := adm.FetchOffsets(context.Background(), group)
	require.NoError(t, err)

	o, ok := resps.Lookup(topic, 0)
	if !ok || o.Err != nil {
		return 0, false
	}
	return o.At, true
}

// consume runs a consumer over the topic and returns the number of handled
// records along with a stop function that closes the consumer.
func consume(t *testing.T, client *kafka.KgoClient, topic string, opts ...consumer.Option) (*atomic.Int64, func()) {
	t.Helper()

	var handled atomic.Int64
	h := consumer.HandlerFunc(
		func(context.Context, kafka.ConsumerRecord) error {
			handled.Add(1)
			return nil
		},
	)

	opts = append(opts, consumer.WithIdleSleep(10*time.Millisecond), consumer.WithPollTimeout(50*time.Millisecond))
	c, err := consumer.New(client, topic, h, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	stop := func() {
		cancel()
		require.NoError(t, <-done)
		c.Close()
	}
	return &handled, stop
}

func TestKgoClient_CreateTopic(t *testing.T) {
	addrs := newCluster(t)
	client := newKgoClient(t, addrs, "g")
	t.Cleanup(client.Close)
	ctx := context.Background()

	exists, err := client.TopicExists(ctx, arrivals)
	require.NoError(t, err)
	require.False(t, exists)

	spec := kafka.TopicSpec{Name: arrivals, Partitions: 2, ReplicationFactor: 1}
	require.NoError(t, client.CreateTopic(ctx, spec))

	exists, err = client.TopicExists(ctx, arrivals)
	require.NoError(t, err)
	require.True(t, exists)

	err = client.CreateTopic(ctx, spec)
	require.ErrorIs(t, err, kafka.ErrTopicAlreadyExists)
}

func TestKgoClient_ReadChangelogStopsAtHighWatermark(t *testing.T) {
	addrs := newCluster(t, arrivals)
	client := newKgoClient(t, addrs, "g")
	t.Cleanup(client.Close)

	seed(t, client, arrivals, "a", "b", "c")

	records, err := client.ReadChangelog(context.Background(), arrivals)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, string(records[i].Value))
		require.Equal(t, int64(i), records[i].Offset)
	}
}

func TestKgoClient_ResetToEarliestOverridesCommittedOffset(t *testing.T) {
	addrs := newCluster(t, arrivals)
	adm := newAdmin(t, addrs)

	producer := newKgoClient(t, addrs, "producer")
	t.Cleanup(producer.Close)
	seed(t, producer, arrivals, "a", "b", "c")
	commitGroupOffset(t, adm, "g", arrivals, 3)

	handled, stop := consume(t, newKgoClient(t, addrs, "g"), arrivals, consumer.WithResetToEarliest(true))
	defer stop()

	require.Eventually(t, func() bool { return handled.Load() == 3 }, 15*time.Second, 20*time.Millisecond)
}

func TestKgoClient_ResumesFromCommittedOffset(t *testing.T) {
	addrs := newCluster(t, arrivals)
	adm := newAdmin(t, addrs)

	producer := newKgoClient(t, addrs, "producer")
	t.Cleanup(producer.Close)
	seed(t, producer, arrivals, "a", "b", "c")
	commitGroupOffset(t, adm, "g", arrivals, 2)

	handled, stop := consume(t, newKgoClient(t, addrs, "g"), arrivals)
	defer stop()

	require.Eventually(t, func() bool { return handled.Load() == 1 }, 15*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, int64(1), handled.Load())
}

func TestKgoClient_CloseCommitsMarkedOffsets(t *testing.T) {
	addrs := newCluster(t, arrivals)
	adm := newAdmin(t, addrs)

	producer := newKgoClient(t, addrs, "producer")
	t.Cleanup(producer.Close)
	seed(t, producer, arrivals, "a", "b", "c")

	handled, stop := consume(t, newKgoClient(t, addrs, "g"), arrivals, consumer.WithResetToEarliest(true))
	require.Eventually(t, func() bool { return handled.Load() == 3 }, 15*time.Second, 20*time.Millisecond)
	stop()

	offset, ok := committedOffset(t, adm, "g", arrivals)
	require.True(t, ok)
	require.Equal(t, int64(3), offset)
}
