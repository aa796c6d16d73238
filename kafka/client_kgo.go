package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/go-transit/logger"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ Client = (*KgoClient)(nil)

type KgoClientConfig struct {
	BootstrapServers   []string
	GroupID            string
	AutoOffsetReset    string
	SessionTimeout     time.Duration
	HeartbeatInterval  time.Duration
	AutoCommitInterval time.Duration
	// CommitTimeout bounds the final commit made by Close.
	CommitTimeout time.Duration

	Logger logger.Logger
}

func defaultConfig() KgoClientConfig {
	return KgoClientConfig{
		BootstrapServers:   []string{"localhost:9092"},
		GroupID:            "transit-consumer-group",
		AutoOffsetReset:    "earliest",
		SessionTimeout:     45 * time.Second,
		HeartbeatInterval:  3 * time.Second,
		AutoCommitInterval: 5 * time.Second,
		CommitTimeout:      10 * time.Second,
		Logger:             logger.NewNoopLogger(),
	}
}

type KgoOption func(*KgoClientConfig)

func WithBootstrapServers(servers []string) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.BootstrapServers = servers
	}
}

func WithGroupID(id string) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.GroupID = id
	}
}

// WithAutoOffsetReset sets where the group starts when it has no committed
// offset: "earliest" or "latest".
func WithAutoOffsetReset(reset string) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.AutoOffsetReset = reset
	}
}

func WithSessionTimeout(d time.Duration) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.SessionTimeout = d
	}
}

func WithLogger(l logger.Logger) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.Logger = l.With("client", "kgo")
	}
}

// KgoClient implements Client on top of franz-go. Producing and admin
// requests share one kgo client; the group consumer is created on Subscribe
// because its options depend on the subscription.
type KgoClient struct {
	config KgoClientConfig

	client *kgo.Client
	admin  *kadm.Client

	mu          sync.RWMutex
	consumer    *kgo.Client
	rebalanceCb RebalanceCallback
	// resets holds explicit starting positions until adjustFetchOffsets
	// applies them.
	resets map[TopicPartition]OffsetReset

	logger logger.Logger
}

func NewKgoClient(opts ...KgoOption) (*KgoClient, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return nil, fmt.Errorf("invalid auto offset reset %q", cfg.AutoOffsetReset)
	}

	kc := &KgoClient{config: cfg, logger: cfg.Logger, resets: make(map[TopicPartition]OffsetReset)}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.WithLogger(newKgoLogger(kc.logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("create kgo client: %w", err)
	}

	kc.client = client
	kc.admin = kadm.NewClient(client)

	return kc, nil
}

func (k *KgoClient) resetOffset() kgo.Offset {
	if k.config.AutoOffsetReset == "latest" {
		return kgo.NewOffset().AtEnd()
	}
	return kgo.NewOffset().AtStart()
}

func (k *KgoClient) Subscribe(pattern string, rebalanceCb RebalanceCallback) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.consumer != nil {
		return ErrAlreadySubscribed
	}

	kgoOpts := []kgo.Opt{
		kgo.SeedBrokers(k.config.BootstrapServers...),
		kgo.ConsumerGroup(k.config.GroupID),
		kgo.ConsumeTopics(pattern),
		kgo.ConsumeResetOffset(k.resetOffset()),
		kgo.OnPartitionsAssigned(k.onAssigned),
		kgo.OnPartitionsRevoked(k.onRevoked),
		kgo.OnPartitionsLost(k.onLost),
		kgo.AdjustFetchOffsetsFn(k.adjustFetchOffsets),
		kgo.WithLogger(newKgoLogger(k.logger)),
		kgo.SessionTimeout(k.config.SessionTimeout),
		kgo.HeartbeatInterval(k.config.HeartbeatInterval),
		kgo.AutoCommitMarks(),
		kgo.AutoCommitInterval(k.config.AutoCommitInterval),
	}
	if IsPattern(pattern) {
		kgoOpts = append(kgoOpts, kgo.ConsumeRegex())
	}

	consumer, err := kgo.NewClient(kgoOpts...)
	if err != nil {
		return fmt.Errorf("create kgo consumer: %w", err)
	}

	k.consumer = consumer
	k.rebalanceCb = rebalanceCb

	return nil
}

func (k *KgoClient) onAssigned(ctx context.Context, _ *kgo.Client, assigned map[string][]int32) {
	k.mu.RLock()
	cb := k.rebalanceCb
	k.mu.RUnlock()

	if cb == nil {
		return
	}

	cb.OnAssigned(ctx, mapToTopicPartitions(assigned))
}

// onRevoked lets the callback finish the revoked partitions, then commits
// what it marked before the partitions move to another member.
func (k *KgoClient) onRevoked(ctx context.Context, cl *kgo.Client, revoked map[string][]int32) {
	k.notifyRevoked(ctx, revoked)

	if err := cl.CommitMarkedOffsets(ctx); err != nil {
		k.logger.Error("Failed to commit marked offsets on revoke", "error", err)
	}
}

// onLost skips the commit: the partitions already belong to someone else.
func (k *KgoClient) onLost(ctx context.Context, _ *kgo.Client, lost map[string][]int32) {
	k.notifyRevoked(ctx, lost)
}

func (k *KgoClient) notifyRevoked(ctx context.Context, revoked map[string][]int32) {
	k.mu.RLock()
	cb := k.rebalanceCb
	k.mu.RUnlock()

	if cb == nil {
		return
	}

	cb.OnRevoked(ctx, mapToTopicPartitions(revoked))
}

func (k *KgoClient) groupConsumer() (*kgo.Client, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.consumer == nil {
		return nil, ErrNotSubscribed
	}
	return k.consumer, nil
}

// Assign records the starting position of every partition in the plan. The
// positions are applied by adjustFetchOffsets once the group has fetched its
// committed offsets, so an explicit reset overrides the committed offset.
// Partitions that resume from the committed offset are left untouched.
func (k *KgoClient) Assign(ctx context.Context, plan AssignmentPlan) error {
	if _, err := k.groupConsumer(); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	for _, ps := range plan.Partitions {
		if ps.Reset == ResumeCommitted {
			delete(k.resets, ps.TopicPartition)
			continue
		}
		k.resets[ps.TopicPartition] = ps.Reset
	}
	return nil
}

// adjustFetchOffsets runs after OnPartitionsAssigned and before fetching
// starts, with the committed offset (or the reset offset) of every newly
// assigned partition.
func (k *KgoClient) adjustFetchOffsets(
	_ context.Context, offsets map[string]map[int32]kgo.Offset,
) (map[string]map[int32]kgo.Offset, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for topic, partitions := range offsets {
		for partition := range partitions {
			tp := TopicPartition{Topic: topic, Partition: partition}
			reset, ok := k.resets[tp]
			if !ok {
				continue
			}
			delete(k.resets, tp)

			switch reset {
			case ResetEarliest:
				partitions[partition] = kgo.NewOffset().AtStart()
			case ResetLatest:
				partitions[partition] = kgo.NewOffset().AtEnd()
			}
			k.logger.Debug("Partition offset reset", "partition", tp.String(), "reset", reset.String())
		}
	}
	return offsets, nil
}

func (k *KgoClient) Poll(ctx context.Context, timeout time.Duration) (*ConsumerRecord, error) {
	consumer, err := k.groupConsumer()
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetches := consumer.PollRecords(pollCtx, 1)
	if fetches.IsClientClosed() {
		return nil, kgo.ErrClientClosed
	}

	for _, fe := range fetches.Errors() {
		if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
			continue
		}
		return nil, fmt.Errorf("poll %s-%d: %w", fe.Topic, fe.Partition, fe.Err)
	}

	records := fetches.Records()
	if len(records) == 0 {
		return nil, nil
	}

	rec := convertRecord(records[0])
	return &rec, nil
}

func (k *KgoClient) MarkRecords(records ...ConsumerRecord) {
	consumer, err := k.groupConsumer()
	if err != nil {
		return
	}
	consumer.MarkCommitRecords(convertRecordsToKgo(records)...)
}

func (k *KgoClient) Send(ctx context.Context, topic string, key, value []byte, headers []Header) error {
	record := &kgo.Record{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: convertToKgoHeaders(headers),
	}

	return k.client.ProduceSync(ctx, record).FirstErr()
}

func (k *KgoClient) Produce(
	ctx context.Context, topic string, key, value []byte, headers []Header, promise func(error),
) {
	record := &kgo.Record{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: convertToKgoHeaders(headers),
	}

	k.client.Produce(
		ctx, record, func(_ *kgo.Record, err error) {
			if promise != nil {
				promise(err)
			}
		},
	)
}

func (k *KgoClient) Flush(ctx context.Context) error {
	return k.client.Flush(ctx)
}

func (k *KgoClient) CreateTopic(ctx context.Context, spec TopicSpec) error {
	resps, err := k.admin.CreateTopics(ctx, spec.Partitions, spec.ReplicationFactor, nil, spec.Name)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", spec.Name, err)
	}

	resp, ok := resps[spec.Name]
	if !ok {
		return fmt.Errorf("create topic %s: missing response", spec.Name)
	}
	if errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("%w: %s", ErrTopicAlreadyExists, spec.Name)
	}
	if resp.Err != nil {
		return fmt.Errorf("create topic %s: %w", spec.Name, resp.Err)
	}

	return nil
}

func (k *KgoClient) TopicExists(ctx context.Context, name string) (bool, error) {
	details, err := k.admin.ListTopics(ctx, name)
	if err != nil {
		return false, fmt.Errorf("list topics: %w", err)
	}

	d, ok := details[name]
	if !ok || errors.Is(d.Err, kerr.UnknownTopicOrPartition) {
		return false, nil
	}
	if d.Err != nil {
		return false, fmt.Errorf("describe topic %s: %w", name, d.Err)
	}

	return true, nil
}

func (k *KgoClient) ReadChangelog(ctx context.Context, topic string) ([]ConsumerRecord, error) {
	starts, err := k.admin.ListStartOffsets(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("list start offsets: %w", err)
	}
	ends, err := k.admin.ListEndOffsets(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("list end offsets: %w", err)
	}

	// next offset still to be read, per partition
	pending := make(map[int32]int64)
	ends.Each(
		func(end kadm.ListedOffset) {
			if end.Err != nil {
				return
			}
			start, ok := starts.Lookup(topic, end.Partition)
			if ok && start.Err == nil && end.Offset > start.Offset {
				pending[end.Partition] = end.Offset
			}
		},
	)

	if len(pending) == 0 {
		return nil, nil
	}

	reader, err := kgo.NewClient(
		kgo.SeedBrokers(k.config.BootstrapServers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.WithLogger(newKgoLogger(k.logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("create changelog reader: %w", err)
	}
	defer reader.Close()

	var out []ConsumerRecord
	for len(pending) > 0 {
		fetches := reader.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, fe := range fetches.Errors() {
			k.logger.Warn("Changelog fetch error", "topic", fe.Topic, "partition", fe.Partition, "error", fe.Err)
		}

		fetches.EachRecord(
			func(r *kgo.Record) {
				end, ok := pending[r.Partition]
				if !ok {
					return
				}
				out = append(out, convertRecord(r))
				if r.Offset+1 >= end {
					delete(pending, r.Partition)
				}
			},
		)
	}

	return out, nil
}

func (k *KgoClient) Ping(ctx context.Context) error {
	return k.client.Ping(ctx)
}

// Close commits every marked offset, leaves the group and closes all
// connections.
func (k *KgoClient) Close() {
	k.mu.Lock()
	consumer := k.consumer
	k.mu.Unlock()

	if consumer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), k.config.CommitTimeout)
		if err := consumer.CommitMarkedOffsets(ctx); err != nil {
			k.logger.Error("Failed to commit marked offsets on close", "error", err)
		}
		cancel()

		consumer.CloseAllowingRebalance()
	}
	k.client.Close()
}

func convertRecordsToKgo(records []ConsumerRecord) []*kgo.Record {
	kgoRecords := make([]*kgo.Record, len(records))
	for i, r := range records {
		kgoRecords[i] = &kgo.Record{
			Topic:       r.Topic,
			Partition:   r.Partition,
			Offset:      r.Offset,
			Key:         r.Key,
			Value:       r.Value,
			Headers:     convertToKgoHeaders(r.Headers),
			Timestamp:   r.Timestamp,
			LeaderEpoch: r.LeaderEpoch,
		}
	}

	return kgoRecords
}

func convertRecord(r *kgo.Record) ConsumerRecord {
	return ConsumerRecord{
		Topic:       r.Topic,
		Partition:   r.Partition,
		Offset:      r.Offset,
		Key:         r.Key,
		Value:       r.Value,
		Headers:     convertFromKgoHeaders(r.Headers),
		Timestamp:   r.Timestamp,
		LeaderEpoch: r.LeaderEpoch,
	}
}

func convertFromKgoHeaders(headers []kgo.RecordHeader) []Header {
	converted := make([]Header, len(headers))
	for i, h := range headers {
		converted[i] = Header{Key: h.Key, Value: h.Value}
	}
	return converted
}

func convertToKgoHeaders(headers []Header) []kgo.RecordHeader {
	kgoHeaders := make([]kgo.RecordHeader, len(headers))
	for i, h := range headers {
		kgoHeaders[i] = kgo.RecordHeader{Key: h.Key, Value: h.Value}
	}
	return kgoHeaders
}

func mapToTopicPartitions(m map[string][]int32) []TopicPartition {
	var tps []TopicPartition
	for topic, partitions := range m {
		for _, partition := range partitions {
			tps = append(
				tps, TopicPartition{
					Topic:     topic,
					Partition: partition,
				},
			)
		}
	}

	return tps
}
