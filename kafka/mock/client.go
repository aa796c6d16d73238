package mockkafka

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/hugolhafner/go-transit/kafka"
)

var _ kafka.Client = (*Client)(nil)

// ProducedRecord represents a record that was sent via the mock producer.
type ProducedRecord struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers []kafka.Header
}

// PollResult is one scripted answer to Poll. A nil Record with a nil Err
// means the poll timed out with nothing to return.
type PollResult struct {
	Record *kafka.ConsumerRecord
	Err    error
}

type bufferedRecord struct {
	record  ProducedRecord
	promise func(error)
}

type Client struct {
	mu sync.RWMutex

	recordQueues   map[kafka.TopicPartition][]kafka.ConsumerRecord
	queuePositions map[kafka.TopicPartition]int

	script    []PollResult
	pollCalls []time.Time

	buffered         []bufferedRecord
	producedRecords  []ProducedRecord
	committedOffsets map[kafka.TopicPartition]int64
	markedRecords    []kafka.ConsumerRecord

	topics       map[string]kafka.TopicSpec
	createCalls  map[string]int
	appliedPlans []kafka.AssignmentPlan

	subscription       string
	rebalanceCb        kafka.RebalanceCallback
	assignedPartitions []kafka.TopicPartition

	pollDelay time.Duration

	sendErr   func(topic string, key, value []byte) error
	pollErr   func() error
	createErr func(spec kafka.TopicSpec) error
	pingErr   error

	closed     bool
	subscribed bool
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		recordQueues:     make(map[kafka.TopicPartition][]kafka.ConsumerRecord),
		queuePositions:   make(map[kafka.TopicPartition]int),
		committedOffsets: make(map[kafka.TopicPartition]int64),
		topics:           make(map[string]kafka.TopicSpec),
		createCalls:      make(map[string]int),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func matches(pattern, topic string) bool {
	if !kafka.IsPattern(pattern) {
		return pattern == topic
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(topic)
}

// Subscribe registers the rebalance callback and immediately assigns every
// partition that already holds records for a matching topic.
func (c *Client) Subscribe(pattern string, rebalanceCb kafka.RebalanceCallback) error {
	c.mu.Lock()

	if c.subscribed {
		c.mu.Unlock()
		return kafka.ErrAlreadySubscribed
	}

	c.subscription = pattern
	c.rebalanceCb = rebalanceCb
	c.subscribed = true

	var partitions []kafka.TopicPartition
	for tp := range c.recordQueues {
		if matches(pattern, tp.Topic) {
			partitions = append(partitions, tp)
		}
	}
	sortPartitions(partitions)
	c.mu.Unlock()

	if len(partitions) > 0 {
		c.TriggerAssign(partitions)
	}

	return nil
}

// Assign records the plan and positions each partition accordingly.
func (c *Client) Assign(ctx context.Context, plan kafka.AssignmentPlan) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.subscribed {
		return kafka.ErrNotSubscribed
	}

	c.appliedPlans = append(c.appliedPlans, plan)

	for _, ps := range plan.Partitions {
		tp := ps.TopicPartition
		switch ps.Reset {
		case kafka.ResetEarliest:
			c.queuePositions[tp] = 0
		case kafka.ResetLatest:
			c.queuePositions[tp] = len(c.recordQueues[tp])
		case kafka.ResumeCommitted:
			if committed, ok := c.committedOffsets[tp]; ok {
				c.queuePositions[tp] = c.positionFor(tp, committed)
			}
		}
	}

	return nil
}

func (c *Client) positionFor(tp kafka.TopicPartition, offset int64) int {
	for i, r := range c.recordQueues[tp] {
		if r.Offset >= offset {
			return i
		}
	}
	return len(c.recordQueues[tp])
}

// Poll returns the next scripted result if one is queued, otherwise the next
// record from the assigned partitions in round-robin order.
func (c *Client) Poll(ctx context.Context, timeout time.Duration) (*kafka.ConsumerRecord, error) {
	c.mu.Lock()
	c.pollCalls = append(c.pollCalls, time.Now())
	delay := c.pollDelay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.subscribed {
		return nil, kafka.ErrNotSubscribed
	}

	if len(c.script) > 0 {
		next := c.script[0]
		c.script = c.script[1:]
		return next.Record, next.Err
	}

	if c.pollErr != nil {
		if err := c.pollErr(); err != nil {
			return nil, err
		}
	}

	for _, tp := range c.assignedPartitions {
		queue := c.recordQueues[tp]
		pos := c.queuePositions[tp]
		if pos >= len(queue) {
			continue
		}

		c.queuePositions[tp]++
		rec := queue[pos].Copy()
		c.rotate()
		return &rec, nil
	}

	return nil, nil
}

// rotate moves the head partition to the back so partitions are served fairly.
func (c *Client) rotate() {
	if len(c.assignedPartitions) < 2 {
		return
	}
	c.assignedPartitions = append(c.assignedPartitions[1:], c.assignedPartitions[0])
}

// MarkRecords commits the next offset of each record immediately.
func (c *Client) MarkRecords(records ...kafka.ConsumerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, record := range records {
		c.markedRecords = append(c.markedRecords, record)

		tp := record.TopicPartition()
		if current, exists := c.committedOffsets[tp]; !exists || record.Offset+1 > current {
			c.committedOffsets[tp] = record.Offset + 1
		}
	}
}

// Send produces a record and acknowledges it synchronously.
func (c *Client) Send(ctx context.Context, topic string, key, value []byte, headers []kafka.Header) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendErr != nil {
		if err := c.sendErr(topic, key, value); err != nil {
			return err
		}
	}

	c.producedRecords = append(c.producedRecords, copyProduced(topic, key, value, headers))
	return nil
}

// Produce buffers the record; it becomes visible in ProducedRecords and its
// promise fires on the next Flush.
func (c *Client) Produce(
	ctx context.Context, topic string, key, value []byte, headers []kafka.Header, promise func(error),
) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffered = append(
		c.buffered, bufferedRecord{
			record:  copyProduced(topic, key, value, headers),
			promise: promise,
		},
	)
}

func (c *Client) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	pending := c.buffered
	c.buffered = nil

	results := make([]error, len(pending))
	for i, b := range pending {
		if c.sendErr != nil {
			results[i] = c.sendErr(b.record.Topic, b.record.Key, b.record.Value)
		}
		if results[i] == nil {
			c.producedRecords = append(c.producedRecords, b.record)
		}
	}
	c.mu.Unlock()

	for i, b := range pending {
		if b.promise != nil {
			b.promise(results[i])
		}
	}

	return nil
}

func (c *Client) CreateTopic(ctx context.Context, spec kafka.TopicSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.createCalls[spec.Name]++

	if c.createErr != nil {
		if err := c.createErr(spec); err != nil {
			return err
		}
	}

	if _, ok := c.topics[spec.Name]; ok {
		return fmt.Errorf("%w: %s", kafka.ErrTopicAlreadyExists, spec.Name)
	}

	c.topics[spec.Name] = spec
	return nil
}

func (c *Client) TopicExists(ctx context.Context, name string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.topics[name]
	return ok, nil
}

// ReadChangelog returns every queued and produced record for the topic,
// queued records first.
func (c *Client) ReadChangelog(ctx context.Context, topic string) ([]kafka.ConsumerRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var partitions []kafka.TopicPartition
	for tp := range c.recordQueues {
		if tp.Topic == topic {
			partitions = append(partitions, tp)
		}
	}
	sortPartitions(partitions)

	var out []kafka.ConsumerRecord
	for _, tp := range partitions {
		for _, r := range c.recordQueues[tp] {
			out = append(out, r.Copy())
		}
	}

	var offset int64
	for _, p := range c.producedRecords {
		if p.Topic != topic {
			continue
		}
		out = append(
			out, kafka.ConsumerRecord{
				Topic:   p.Topic,
				Key:     p.Key,
				Value:   p.Value,
				Headers: p.Headers,
				Offset:  offset,
			}.Copy(),
		)
		offset++
	}

	return out, nil
}

// Ping checks if the mock client is operational.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.pingErr
}

// Close marks the client as closed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

func copyProduced(topic string, key, value []byte, headers []kafka.Header) ProducedRecord {
	rec := kafka.ConsumerRecord{Key: key, Value: value, Headers: headers}.Copy()
	return ProducedRecord{
		Topic:   topic,
		Key:     rec.Key,
		Value:   rec.Value,
		Headers: rec.Headers,
	}
}

func sortPartitions(tps []kafka.TopicPartition) {
	sort.Slice(
		tps, func(i, j int) bool {
			if tps[i].Topic != tps[j].Topic {
				return tps[i].Topic < tps[j].Topic
			}
			return tps[i].Partition < tps[j].Partition
		},
	)
}
