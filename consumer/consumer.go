package consumer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
	"github.com/hugolhafner/go-transit/serde"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrClosed         = errors.New("consumer is closed")
	ErrAlreadyRunning = errors.New("consumer is already running")
)

var _ kafka.RebalanceCallback = (*rebalanceListener)(nil)

// Consumer drains records matching a topic pattern into a Handler.
//
// Run alternates between two states. While DRAINING it polls once per cycle
// and starts the next cycle immediately as long as a record was handled.
// The first cycle without a handled record moves it to IDLE, where it waits
// for the idle interval before draining again. Cancellation is observed on
// every transition and never interrupts a poll in flight.
type Consumer struct {
	client  kafka.Consumer
	pattern string
	handler Handler
	config  config

	logger    logger.Logger
	telemetry *otel.Telemetry
	attrs     metric.MeasurementOption

	state     atomic.Int32
	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// New subscribes to pattern and returns a consumer ready to Run. Patterns
// starting with "^" are matched as regular expressions.
func New(client kafka.Consumer, pattern string, handler Handler, opts ...Option) (*Consumer, error) {
	if pattern == "" {
		return nil, errors.New("consumer: topic pattern is required")
	}
	if handler == nil {
		return nil, errors.New("consumer: handler is required")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Consumer{
		client:    client,
		pattern:   pattern,
		handler:   handler,
		config:    cfg,
		logger:    cfg.logger.With("component", cfg.name, "pattern", pattern),
		telemetry: cfg.telemetry,
		attrs:     metric.WithAttributeSet(attribute.NewSet(otel.AttrComponent.String(cfg.name))),
	}

	if err := client.Subscribe(pattern, &rebalanceListener{c: c}); err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", pattern, err)
	}
	// the client may already have assigned partitions during Subscribe
	c.state.CompareAndSwap(int32(StateUnsubscribed), int32(StateSubscribed))

	c.logger.Info("Consumer subscribed", "reset", cfg.reset.String())
	return c, nil
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
}

// Run drains and idles until ctx is cancelled, Close is called or the handler
// fails. Cancellation and Close return nil; a handler failure is returned.
func (c *Consumer) Run(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	c.logger.Info("Consumer started")

	var emptyCycles uint
	for {
		if c.stopRequested(ctx) {
			return nil
		}

		c.transition(StateDraining)
		progressed, err := c.drainOnce(ctx)
		if err != nil {
			c.logger.Error("Handler failed, stopping consumer", "error", err)
			return err
		}

		if progressed {
			emptyCycles = 0
			continue
		}

		if c.stopRequested(ctx) {
			return nil
		}

		c.transition(StateIdle)
		c.telemetry.IdleWaits.Add(ctx, 1, c.attrs)
		wait := c.config.idleBackoff.Next(emptyCycles)
		emptyCycles++

		if err := c.config.sleep(ctx, wait); err != nil {
			c.logger.Info("Consumer cancelled while idle")
			return nil
		}
	}
}

func (c *Consumer) stopRequested(ctx context.Context) bool {
	if c.closed.Load() {
		c.logger.Info("Consumer closed, stopping")
		return true
	}
	if ctx.Err() != nil {
		c.logger.Info("Context cancelled, stopping consumer")
		return true
	}
	return false
}

func (c *Consumer) transition(s State) {
	if c.State() == StateClosed {
		return
	}
	c.setState(s)
}

// drainOnce polls once and hands a record, if any, to the handler. It
// reports whether a record was handled.
func (c *Consumer) drainOnce(ctx context.Context) (bool, error) {
	pollCtx := context.WithoutCancel(ctx)

	start := time.Now()
	rec, err := c.client.Poll(pollCtx, c.config.pollTimeout)

	status := otel.StatusSuccess
	switch {
	case err != nil:
		status = otel.StatusError
	case rec == nil:
		status = otel.StatusEmpty
	}
	c.telemetry.PollDuration.Record(
		ctx, time.Since(start).Seconds(),
		c.attrs, metric.WithAttributes(otel.AttrPollStatus.String(status)),
	)

	if err != nil {
		c.logger.Warn("Poll failed", "error", err)
		return false, nil
	}
	if rec == nil {
		c.logger.Debug("No message received")
		return false, nil
	}

	return c.handle(ctx, *rec)
}

func (c *Consumer) handle(ctx context.Context, rec kafka.ConsumerRecord) (bool, error) {
	partition := strconv.FormatInt(int64(rec.Partition), 10)

	ctx = c.telemetry.Propagator.Extract(ctx, otel.NewHeaderCarrier(&rec.Headers))
	ctx, span := c.telemetry.Tracer.Start(
		ctx, rec.Topic+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationTypeProcess,
			semconv.MessagingDestinationName(rec.Topic),
			semconv.MessagingDestinationPartitionID(partition),
			semconv.MessagingKafkaOffsetKey.Int64(rec.Offset),
		),
	)
	defer span.End()

	c.telemetry.MessagesConsumed.Add(
		ctx, 1, metric.WithAttributes(
			semconv.MessagingDestinationName(rec.Topic),
			semconv.MessagingDestinationPartitionID(partition),
		),
	)

	start := time.Now()
	err := c.handler.Handle(ctx, rec)
	c.telemetry.HandlerDuration.Record(ctx, time.Since(start).Seconds(), c.attrs)

	if err == nil {
		c.client.MarkRecords(rec)
		return true, nil
	}

	span.RecordError(err)

	if serde.IsDeserializationError(err) {
		c.telemetry.Errors.Add(ctx, 1, c.attrs, metric.WithAttributes(otel.AttrErrorPhase.String("serde")))
		c.logger.Error(
			"Skipping record that could not be decoded",
			"error", err,
			"topic", rec.Topic,
			"partition", rec.Partition,
			"offset", rec.Offset,
		)
		c.client.MarkRecords(rec)
		return false, nil
	}

	span.SetStatus(codes.Error, err.Error())
	c.telemetry.Errors.Add(ctx, 1, c.attrs, metric.WithAttributes(otel.AttrErrorPhase.String("processing")))
	return false, fmt.Errorf("handle %s offset %d: %w", rec.TopicPartition(), rec.Offset, err)
}

// Close releases the client. It is safe to call more than once and from a
// different goroutine than Run.
func (c *Consumer) Close() {
	c.closeOnce.Do(
		func() {
			c.closed.Store(true)
			c.setState(StateClosed)
			c.client.Close()
			c.logger.Info("Shutting down consumer")
		},
	)
}

type rebalanceListener struct {
	c *Consumer
}

func (l *rebalanceListener) OnAssigned(ctx context.Context, partitions []kafka.TopicPartition) {
	c := l.c
	plan := ComputeAssignment(partitions, c.config.reset)

	if err := c.client.Assign(ctx, plan); err != nil {
		c.logger.Error("Failed to apply assignment", "error", err, "partitions", len(partitions))
		return
	}

	if s := c.State(); s == StateUnsubscribed || s == StateSubscribed {
		c.setState(StateAssigned)
	}
	c.logger.Info("Partitions assigned", "partitions", len(partitions), "reset", c.config.reset.String())
}

func (l *rebalanceListener) OnRevoked(_ context.Context, partitions []kafka.TopicPartition) {
	l.c.logger.Info("Partitions revoked", "partitions", len(partitions))
}
