package kafka

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTopicAlreadyExists = errors.New("topic already exists")
	ErrNotSubscribed      = errors.New("consumer is not subscribed")
	ErrAlreadySubscribed  = errors.New("consumer is already subscribed")
)

type Client interface {
	Producer
	Consumer
	Admin
	ChangelogReader

	Ping(ctx context.Context) error
}

type Producer interface {
	// Send produces a record and waits for the broker acknowledgement.
	Send(ctx context.Context, topic string, key, value []byte, headers []Header) error
	// Produce buffers a record and returns immediately. promise, if non-nil,
	// is called once the record is acknowledged or has failed.
	Produce(ctx context.Context, topic string, key, value []byte, headers []Header, promise func(error))
	Flush(ctx context.Context) error
}

type Consumer interface {
	// Subscribe joins the consumer group for every topic matching pattern.
	// Patterns starting with "^" are regular expressions, anything else is
	// a literal topic name.
	Subscribe(pattern string, rebalanceCb RebalanceCallback) error
	// Assign applies an assignment plan computed in response to OnAssigned.
	Assign(ctx context.Context, plan AssignmentPlan) error
	// Poll waits at most timeout for a single record. It returns (nil, nil)
	// when nothing arrived in time.
	Poll(ctx context.Context, timeout time.Duration) (*ConsumerRecord, error)
	MarkRecords(records ...ConsumerRecord)
	Close()
}

type Admin interface {
	CreateTopic(ctx context.Context, spec TopicSpec) error
	TopicExists(ctx context.Context, name string) (bool, error)
}

// ChangelogReader replays a topic from its earliest retained offset up to
// the high watermark observed when the call started.
type ChangelogReader interface {
	ReadChangelog(ctx context.Context, topic string) ([]ConsumerRecord, error)
}

type RebalanceCallback interface {
	OnAssigned(ctx context.Context, partitions []TopicPartition)
	OnRevoked(ctx context.Context, partitions []TopicPartition)
}

// IsPattern reports whether a subscription string is a regular expression.
func IsPattern(s string) bool {
	return len(s) > 0 && s[0] == '^'
}
