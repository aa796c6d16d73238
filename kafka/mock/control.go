package mockkafka

import (
	"context"
	"time"

	"github.com/hugolhafner/go-transit/kafka"
)

// AddRecords adds records to be returned by Poll for a specific topic-partition.
// Offsets are assigned sequentially when left at zero.
func (c *Client) AddRecords(topic string, partition int32, records ...kafka.ConsumerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	existing := len(c.recordQueues[tp])

	for i := range records {
		records[i].Topic = topic
		records[i].Partition = partition
		if records[i].Offset == 0 {
			records[i].Offset = int64(existing + i)
		}
	}

	c.recordQueues[tp] = append(c.recordQueues[tp], records...)
}

// ScriptPolls queues results that Poll returns, in order, before falling
// back to the record queues.
func (c *Client) ScriptPolls(results ...PollResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.script = append(c.script, results...)
}

// SetSendError configures an error to be returned on all Send calls.
// Pass nil to clear the error.
func (c *Client) SetSendError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.sendErr = nil
	} else {
		c.sendErr = func(string, []byte, []byte) error { return err }
	}
}

// SetSendErrorFunc configures a function to determine Send errors.
func (c *Client) SetSendErrorFunc(fn func(topic string, key, value []byte) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sendErr = fn
}

// SetPollError configures an error to be returned on unscripted Poll calls.
func (c *Client) SetPollError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.pollErr = nil
	} else {
		c.pollErr = func() error { return err }
	}
}

// SetCreateTopicErrorFunc configures a function to determine CreateTopic errors.
func (c *Client) SetCreateTopicErrorFunc(fn func(spec kafka.TopicSpec) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.createErr = fn
}

// AddTopic registers a topic as already existing on the broker.
func (c *Client) AddTopic(spec kafka.TopicSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.topics[spec.Name] = spec
}

// SetPingError configures an error to be returned by Ping.
func (c *Client) SetPingError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pingErr = err
}

// TriggerAssign simulates a partition assignment event.
func (c *Client) TriggerAssign(partitions []kafka.TopicPartition) {
	c.mu.Lock()
	cb := c.rebalanceCb
	c.assignedPartitions = append(c.assignedPartitions, partitions...)
	c.mu.Unlock()

	if cb != nil {
		cb.OnAssigned(context.Background(), partitions)
	}
}

// TriggerRevoke simulates a partition revocation event.
func (c *Client) TriggerRevoke(partitions []kafka.TopicPartition) {
	c.mu.Lock()
	cb := c.rebalanceCb

	remaining := make([]kafka.TopicPartition, 0, len(c.assignedPartitions))
	for _, assigned := range c.assignedPartitions {
		revoked := false
		for _, p := range partitions {
			if assigned == p {
				revoked = true
				break
			}
		}
		if !revoked {
			remaining = append(remaining, assigned)
		}
	}
	c.assignedPartitions = remaining
	c.mu.Unlock()

	if cb != nil {
		cb.OnRevoked(context.Background(), partitions)
	}
}

// ProducedRecords returns a copy of all acknowledged records.
func (c *Client) ProducedRecords() []ProducedRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]ProducedRecord, len(c.producedRecords))
	copy(result, c.producedRecords)
	return result
}

// ProducedRecordsForTopic returns all records produced to a specific topic.
func (c *Client) ProducedRecordsForTopic(topic string) []ProducedRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []ProducedRecord
	for _, r := range c.producedRecords {
		if r.Topic == topic {
			result = append(result, r)
		}
	}
	return result
}

// BufferedCount returns how many Produce calls are waiting for a Flush.
func (c *Client) BufferedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.buffered)
}

// CreateTopicCalls returns how many times CreateTopic was called for name.
func (c *Client) CreateTopicCalls(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.createCalls[name]
}

// Topic returns the TopicSpec a topic was created with.
func (c *Client) Topic(name string) (kafka.TopicSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	spec, ok := c.topics[name]
	return spec, ok
}

// AppliedPlans returns every assignment plan passed to Assign.
func (c *Client) AppliedPlans() []kafka.AssignmentPlan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]kafka.AssignmentPlan, len(c.appliedPlans))
	copy(result, c.appliedPlans)
	return result
}

// PollCalls returns the time of every Poll call.
func (c *Client) PollCalls() []time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]time.Time, len(c.pollCalls))
	copy(result, c.pollCalls)
	return result
}

// CommittedOffset returns the next offset to consume for a partition.
func (c *Client) CommittedOffset(tp kafka.TopicPartition) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	offset, ok := c.committedOffsets[tp]
	return offset, ok
}

// MarkedRecords returns a copy of all records that have been marked.
func (c *Client) MarkedRecords() []kafka.ConsumerRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]kafka.ConsumerRecord, len(c.markedRecords))
	copy(result, c.markedRecords)
	return result
}

// Subscription returns the pattern the client is subscribed to.
func (c *Client) Subscription() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.subscription
}

// AssignedPartitions returns the currently assigned partitions.
func (c *Client) AssignedPartitions() []kafka.TopicPartition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]kafka.TopicPartition, len(c.assignedPartitions))
	copy(result, c.assignedPartitions)
	return result
}

// IsClosed returns whether Close has been called.
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}
