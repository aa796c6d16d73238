//go:build unit

package consumer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hugolhafner/go-transit/consumer"
	"github.com/hugolhafner/go-transit/kafka"
	mockkafka "github.com/hugolhafner/go-transit/kafka/mock"
	"github.com/hugolhafner/go-transit/logger"
	mocklogger "github.com/hugolhafner/go-transit/logger/mock"
	"github.com/hugolhafner/go-transit/record"
	"github.com/hugolhafner/go-transit/serde"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleeper records idle waits and cancels the run after the given number.
type sleeper struct {
	mu     sync.Mutex
	waits  []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (s *sleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	n := len(s.waits)
	s.mu.Unlock()

	if n >= s.limit {
		s.cancel()
		return ctx.Err()
	}
	return nil
}

func (s *sleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waits)
}

type recorder struct {
	mu      sync.Mutex
	records []kafka.ConsumerRecord
}

func (r *recorder) Handle(_ context.Context, rec kafka.ConsumerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recorder) values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = string(rec.Value)
	}
	return out
}

func runWithSleeper(
	t *testing.T, client *mockkafka.Client, pattern string, h consumer.Handler, idleLimit int, opts ...consumer.Option,
) (*consumer.Consumer, *sleeper, error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &sleeper{limit: idleLimit, cancel: cancel}
	opts = append(opts, consumer.WithSleeper(s.sleep))

	c, err := consumer.New(client, pattern, h, opts...)
	require.NoError(t, err)

	return c, s, c.Run(ctx)
}

func TestConsumer_DrainsUntilEmptyThenIdles(t *testing.T) {
	client := mockkafka.NewClient()
	client.ScriptPolls(
		mockkafka.Message(mockkafka.Record("k1", "a").WithTopic("weather").Build()),
		mockkafka.Message(mockkafka.Record("k2", "b").WithTopic("weather").WithOffset(1).Build()),
		mockkafka.Empty(),
	)

	h := &recorder{}
	c, s, err := runWithSleeper(t, client, "weather", h, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, h.values())
	assert.Equal(t, 1, s.count())
	assert.Len(t, client.PollCalls(), 3)
	assert.Len(t, client.MarkedRecords(), 2)
	assert.Equal(t, consumer.StateIdle, c.State())
}

func TestConsumer_IdleWaitUsesConfiguredInterval(t *testing.T) {
	client := mockkafka.NewClient()

	_, s, err := runWithSleeper(t, client, "weather", &recorder{}, 3, consumer.WithIdleSleep(250*time.Millisecond))
	require.NoError(t, err)

	require.Equal(t, 3, s.count())
	for _, d := range s.waits {
		assert.Equal(t, 250*time.Millisecond, d)
	}
	// one poll per idle wait when nothing arrives
	assert.Len(t, client.PollCalls(), 3)
}

func TestConsumer_DefaultIdleWaitIsOneSecond(t *testing.T) {
	client := mockkafka.NewClient()

	_, s, err := runWithSleeper(t, client, "weather", &recorder{}, 1)
	require.NoError(t, err)
	require.Equal(t, 1, s.count())
	assert.Equal(t, time.Second, s.waits[0])
}

func TestConsumer_PreservesPartitionOrder(t *testing.T) {
	client := mockkafka.NewClient()
	client.AddRecords("arrivals", 0, mockkafka.SimpleRecords("k", "1", "k", "2", "k", "3", "k", "4")...)

	h := &recorder{}
	_, _, err := runWithSleeper(t, client, "arrivals", h, 1, consumer.WithResetToEarliest(true))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3", "4"}, h.values())

	offset, ok := client.CommittedOffset(kafka.TopicPartition{Topic: "arrivals", Partition: 0})
	require.True(t, ok)
	assert.Equal(t, int64(4), offset)
}

func TestConsumer_ResetToEarliestAppliesExplicitOffsets(t *testing.T) {
	client := mockkafka.NewClient()
	client.AddRecords("arrivals", 0, mockkafka.SimpleRecord("k", "v"))
	client.AddRecords("arrivals", 1, mockkafka.SimpleRecord("k", "v"))

	c, err := consumer.New(client, "arrivals", &recorder{}, consumer.WithResetToEarliest(true))
	require.NoError(t, err)
	defer c.Close()

	plans := client.AppliedPlans()
	require.Len(t, plans, 1)
	require.Len(t, plans[0].Partitions, 2)
	for _, ps := range plans[0].Partitions {
		assert.Equal(t, kafka.ResetEarliest, ps.Reset)
	}
	assert.Len(t, plans[0].Explicit(), 2)
	assert.Equal(t, consumer.StateAssigned, c.State())
}

func TestConsumer_WithoutResetKeepsCommittedOffsets(t *testing.T) {
	client := mockkafka.NewClient()
	client.AddRecords("arrivals", 0, mockkafka.SimpleRecord("k", "v"))

	c, err := consumer.New(client, "arrivals", &recorder{})
	require.NoError(t, err)
	defer c.Close()

	plans := client.AppliedPlans()
	require.Len(t, plans, 1)
	assert.Empty(t, plans[0].Explicit())
}

func TestConsumer_PatternSubscription(t *testing.T) {
	client := mockkafka.NewClient()
	client.AddRecords("org.chicago.stations.red", 0, mockkafka.SimpleRecord("k", "red"))
	client.AddRecords("org.chicago.stations.blue", 0, mockkafka.SimpleRecord("k", "blue"))
	client.AddRecords("org.chicago.weather", 0, mockkafka.SimpleRecord("k", "weather"))

	h := &recorder{}
	_, _, err := runWithSleeper(t, client, `^org\.chicago\.stations\..*`, h, 1, consumer.WithResetToEarliest(true))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"red", "blue"}, h.values())
	assert.Equal(t, `^org\.chicago\.stations\..*`, client.Subscription())
}

func TestConsumer_SkipsUndecodableRecords(t *testing.T) {
	client := mockkafka.NewClient()
	client.ScriptPolls(
		mockkafka.Message(mockkafka.Record("k", "not json").WithTopic("weather").Build()),
		mockkafka.Message(mockkafka.Record("k", `{"temperature":21.5}`).WithTopic("weather").WithOffset(1).Build()),
	)

	type weather struct {
		Temperature float64 `json:"temperature"`
	}

	var got []float64
	h := consumer.Typed[string, weather](
		serde.String(), serde.JSON[weather](),
		func(_ context.Context, r record.Record[string, weather]) error {
			got = append(got, r.Value.Temperature)
			return nil
		},
	)

	l := mocklogger.New()
	_, _, err := runWithSleeper(t, client, "weather", h, 2, consumer.WithLogger(l))
	require.NoError(t, err)

	assert.Equal(t, []float64{21.5}, got)
	assert.Len(t, client.MarkedRecords(), 2)
	l.AssertCalledWithLevelAndMessage(t, logger.ErrorLevel, "Skipping record that could not be decoded")
}

func TestConsumer_HandlerErrorStopsRun(t *testing.T) {
	client := mockkafka.NewClient()
	client.ScriptPolls(
		mockkafka.Message(mockkafka.Record("k", "v").WithTopic("weather").Build()),
		mockkafka.Message(mockkafka.Record("k", "v2").WithTopic("weather").WithOffset(1).Build()),
	)

	boom := errors.New("boom")
	calls := 0
	h := consumer.HandlerFunc(
		func(context.Context, kafka.ConsumerRecord) error {
			calls++
			return boom
		},
	)

	_, s, err := runWithSleeper(t, client, "weather", h, 1)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.count())
	assert.Empty(t, client.MarkedRecords())
}

func TestConsumer_PollErrorsCountAsEmptyCycle(t *testing.T) {
	client := mockkafka.NewClient()
	client.ScriptPolls(
		mockkafka.Failure(errors.New("broker unavailable")),
		mockkafka.Message(mockkafka.Record("k", "v").WithTopic("weather").Build()),
	)

	h := &recorder{}
	l := mocklogger.New()
	_, s, err := runWithSleeper(t, client, "weather", h, 2, consumer.WithLogger(l))
	require.NoError(t, err)

	assert.Equal(t, []string{"v"}, h.values())
	assert.Equal(t, 2, s.count())
	l.AssertCalledWithLevelAndMessage(t, logger.WarnLevel, "Poll failed")
}

func TestConsumer_CancelledContextReturnsWithoutPolling(t *testing.T) {
	client := mockkafka.NewClient()
	c, err := consumer.New(client, "weather", &recorder{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Run(ctx))
	assert.Empty(t, client.PollCalls())
}

func TestConsumer_CancelDuringIdleWait(t *testing.T) {
	client := mockkafka.NewClient()
	c, err := consumer.New(client, "weather", &recorder{}, consumer.WithIdleSleep(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(
		t, func() bool { return c.State() == consumer.StateIdle }, time.Second, 5*time.Millisecond,
	)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestConsumer_RunTwiceFails(t *testing.T) {
	client := mockkafka.NewClient()
	c, err := consumer.New(client, "weather", &recorder{}, consumer.WithIdleSleep(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(
		t, func() bool { return c.State() == consumer.StateIdle }, time.Second, 5*time.Millisecond,
	)
	assert.ErrorIs(t, c.Run(ctx), consumer.ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_Close(t *testing.T) {
	client := mockkafka.NewClient()
	c, err := consumer.New(client, "weather", &recorder{})
	require.NoError(t, err)

	c.Close()
	c.Close()

	assert.True(t, client.IsClosed())
	assert.Equal(t, consumer.StateClosed, c.State())
	assert.ErrorIs(t, c.Run(context.Background()), consumer.ErrClosed)
}

func TestNew_Validation(t *testing.T) {
	client := mockkafka.NewClient()

	_, err := consumer.New(client, "", &recorder{})
	assert.Error(t, err)

	_, err = consumer.New(client, "weather", nil)
	assert.Error(t, err)
}

func TestNew_SecondSubscriptionFails(t *testing.T) {
	client := mockkafka.NewClient()

	_, err := consumer.New(client, "weather", &recorder{})
	require.NoError(t, err)

	_, err = consumer.New(client, "weather", &recorder{})
	assert.ErrorIs(t, err, kafka.ErrAlreadySubscribed)
}

func TestComputeAssignment(t *testing.T) {
	partitions := []kafka.TopicPartition{{Topic: "a", Partition: 0}, {Topic: "a", Partition: 1}}

	plan := consumer.ComputeAssignment(partitions, kafka.ResetEarliest)
	require.Len(t, plan.Partitions, 2)
	assert.Equal(t, partitions, plan.TopicPartitions())
	assert.Len(t, plan.Explicit(), 2)

	plan = consumer.ComputeAssignment(partitions, kafka.ResumeCommitted)
	assert.Empty(t, plan.Explicit())

	assert.Empty(t, consumer.ComputeAssignment(nil, kafka.ResetEarliest).Partitions)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "draining", consumer.StateDraining.String())
	assert.Equal(t, "idle", consumer.StateIdle.String())
	assert.Equal(t, "unknown", consumer.State(99).String())
}
