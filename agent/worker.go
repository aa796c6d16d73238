package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/go-transit/errorhandler"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
)

// partitionWorker processes records for a single partition in its own
// goroutine, one at a time and in log order.
type partitionWorker struct {
	component    string
	partition    kafka.TopicPartition
	pipeline     recordProcessor
	consumer     kafka.Consumer
	errorHandler errorhandler.Handler
	telemetry    *otel.Telemetry
	logger       logger.Logger

	recordCh     chan kafka.ConsumerRecord
	doneCh       chan struct{}
	stopCh       chan struct{}
	errCh        chan error
	drainTimeout time.Duration

	mu      sync.RWMutex
	stopped bool
}

func newPartitionWorker(
	component string,
	partition kafka.TopicPartition,
	p recordProcessor,
	consumer kafka.Consumer,
	errorHandler errorhandler.Handler,
	bufferSize int,
	drainTimeout time.Duration,
	errCh chan error,
	l logger.Logger,
	tel *otel.Telemetry,
) *partitionWorker {
	return &partitionWorker{
		component:    component,
		partition:    partition,
		pipeline:     p,
		consumer:     consumer,
		errorHandler: errorHandler,
		telemetry:    tel,
		logger: l.With(
			"component", "partition-worker",
			"topic", partition.Topic,
			"partition", partition.Partition,
		),
		recordCh:     make(chan kafka.ConsumerRecord, bufferSize),
		doneCh:       make(chan struct{}),
		stopCh:       make(chan struct{}),
		errCh:        errCh,
		drainTimeout: drainTimeout,
	}
}

func (w *partitionWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// run exits on the first record that fails, so later records of the
// partition are never marked ahead of it.
func (w *partitionWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.logger.Debug("Partition worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Context cancelled, draining remaining records")
			drainCtx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
			w.drain(drainCtx)
			cancel()
			return

		case <-w.stopCh:
			w.logger.Debug("Stop signal received, returning without drain")
			return

		case rec := <-w.recordCh:
			if err := w.processRecord(ctx, rec); err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return
				}
				w.logger.Error("Error processing record", "error", err, "offset", rec.Offset)
				emitError(w.errCh, w.logger, fmt.Errorf("worker %v: fatal processing error: %w", w.partition, err))
				return
			}
		}
	}
}

// drain processes any records still queued before stopping
func (w *partitionWorker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Warn("Drain context cancelled, stopping drain")
			return
		case rec := <-w.recordCh:
			if err := w.processRecord(ctx, rec); err != nil {
				w.logger.Error("Error processing record during drain, exiting...", "error", err, "offset", rec.Offset)
				emitError(
					w.errCh, w.logger,
					fmt.Errorf("worker %v: fatal processing error during drain: %w", w.partition, err),
				)
				return
			}
		default:
			return
		}
	}
}

func (w *partitionWorker) processRecord(ctx context.Context, rec kafka.ConsumerRecord) error {
	return processRecordWithRetry(
		ctx, w.component, rec, w.pipeline, w.consumer, w.errorHandler, w.telemetry, w.logger,
	)
}

// Submit queues a record, blocking while the queue is full.
func (w *partitionWorker) Submit(ctx context.Context, record kafka.ConsumerRecord) error {
	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		return fmt.Errorf("worker for partition %v is stopped", w.partition)
	}
	w.mu.RUnlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stopCh:
		return fmt.Errorf("worker for partition %v is stopping", w.partition)
	case <-w.doneCh:
		return fmt.Errorf("worker for partition %v has exited", w.partition)
	case w.recordCh <- record:
		return nil
	}
}

// Stop signals the worker to stop and returns immediately
func (w *partitionWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	w.stopped = true
	close(w.stopCh)
}

func (w *partitionWorker) WaitForStop(timeout time.Duration) error {
	select {
	case <-w.doneCh:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for partition worker %v to stop", w.partition)
	}
}

func (w *partitionWorker) Partition() kafka.TopicPartition {
	return w.partition
}

func (w *partitionWorker) QueueDepth() int {
	return len(w.recordCh)
}
