package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugolhafner/go-transit/consumer"
	"github.com/hugolhafner/go-transit/errorhandler"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
	"github.com/hugolhafner/go-transit/processor"
	"github.com/hugolhafner/go-transit/serde"
	"github.com/hugolhafner/go-transit/table"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
)

// Client is the broker surface an agent needs: it consumes the source topic
// and produces to the sink.
type Client interface {
	kafka.Consumer
	kafka.Producer
}

// Config describes one source to sink transformation.
type Config[KIn, VIn any, KOut comparable, VOut any] struct {
	// Name labels logs, metrics and error contexts. Defaults to the sink topic.
	Name string

	SourceTopic string
	SinkTopic   string

	// KeyDeserialiser may be nil, in which case processors see the zero key.
	KeyDeserialiser   serde.Deserialiser[KIn]
	ValueDeserialiser serde.Deserialiser[VIn]

	// KeySerialiser and ValueSerialiser default to the table's serdes when a
	// table is set. A nil KeySerialiser produces records without a key.
	KeySerialiser   serde.Serialiser[KOut]
	ValueSerialiser serde.Serialiser[VOut]

	Processor processor.Supplier[KIn, VIn, KOut, VOut]

	// Table, when set, receives every acknowledged output. Its changelog
	// topic must be the sink topic.
	Table *table.Table[KOut, VOut]
}

func (c *Config[KIn, VIn, KOut, VOut]) validate() error {
	if c.SourceTopic == "" || c.SinkTopic == "" {
		return errors.New("agent: source and sink topics are required")
	}
	if c.Processor == nil {
		return errors.New("agent: processor supplier is required")
	}
	if c.Table != nil {
		if c.Table.Topic() != c.SinkTopic {
			return fmt.Errorf(
				"agent: table changelog %q must be the sink topic %q", c.Table.Topic(), c.SinkTopic,
			)
		}
		if c.KeySerialiser == nil {
			c.KeySerialiser = c.Table.KeySerde()
		}
		if c.ValueSerialiser == nil {
			c.ValueSerialiser = c.Table.ValueSerde()
		}
	}
	if c.ValueDeserialiser == nil || c.ValueSerialiser == nil {
		return errors.New("agent: value serdes are required")
	}
	if c.Name == "" {
		c.Name = c.SinkTopic
	}
	return nil
}

var _ kafka.RebalanceCallback = (*Agent[any, any, string, any])(nil)

// Agent consumes the source topic with one worker per assigned partition.
// Each worker handles a record completely, including the sink
// acknowledgement and the table update, before taking the next one.
type Agent[KIn, VIn any, KOut comparable, VOut any] struct {
	client       Client
	config       Config[KIn, VIn, KOut, VOut]
	opts         options
	errorHandler errorhandler.Handler

	workers   map[kafka.TopicPartition]*partitionWorker
	pipelines map[kafka.TopicPartition]recordProcessor
	mu        sync.RWMutex

	errCh  chan error
	runCtx context.Context
	cancel context.CancelFunc

	running     atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	releaseOnce sync.Once

	logger    logger.Logger
	telemetry *otel.Telemetry
	attrs     metric.MeasurementOption
}

func New[KIn, VIn any, KOut comparable, VOut any](
	client Client, cfg Config[KIn, VIn, KOut, VOut], opts ...Option,
) (*Agent[KIn, VIn, KOut, VOut], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	l := o.logger.With("component", "agent", "agent", cfg.Name)

	handler := o.errorHandler
	if handler == nil {
		handler = errorhandler.Default(l, o.maxProduceAttempts, o.produceBackoff)
	}

	return &Agent[KIn, VIn, KOut, VOut]{
		client:       client,
		config:       cfg,
		opts:         o,
		errorHandler: handler,
		workers:      make(map[kafka.TopicPartition]*partitionWorker),
		pipelines:    make(map[kafka.TopicPartition]recordProcessor),
		errCh:        make(chan error, 1),
		logger:       l,
		telemetry:    o.telemetry,
		attrs:        metric.WithAttributeSet(attribute.NewSet(otel.AttrComponent.String(cfg.Name))),
	}, nil
}

// Run subscribes to the source topic and blocks until the context is
// cancelled, Close is called or a worker fails.
func (a *Agent[KIn, VIn, KOut, VOut]) Run(ctx context.Context) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)
	defer a.shutdown()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.runCtx, a.cancel = runCtx, cancel
	a.mu.Unlock()

	if err := a.client.Subscribe(a.config.SourceTopic, a); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", a.config.SourceTopic, err)
	}

	a.logger.Info("Agent started", "source", a.config.SourceTopic, "sink", a.config.SinkTopic)

	var errAttempts uint
	for {
		select {
		case err := <-a.errCh:
			a.logger.Error("Fatal error received in Run()", "error", err)
			return err

		case <-runCtx.Done():
			a.logger.Info("Context cancelled, shutting down")
			return nil

		default:
			if err := a.doPoll(runCtx); err != nil {
				a.logger.Warn("Poll error", "error", err)
				select {
				case <-runCtx.Done():
					return nil
				case <-time.After(a.opts.pollErrorBackoff.Next(errAttempts)):
				}
				errAttempts++
			} else {
				errAttempts = 0
			}
		}
	}
}

func (a *Agent[KIn, VIn, KOut, VOut]) doPoll(ctx context.Context) error {
	tel := a.telemetry
	pollStart := time.Now()

	rec, err := a.client.Poll(ctx, a.opts.pollTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		tel.PollDuration.Record(
			ctx, time.Since(pollStart).Seconds(), a.attrs,
			metric.WithAttributes(otel.AttrPollStatus.String(otel.StatusError)),
		)
		return fmt.Errorf("failed to poll: %w", err)
	}

	if rec == nil {
		tel.PollDuration.Record(
			ctx, time.Since(pollStart).Seconds(), a.attrs,
			metric.WithAttributes(otel.AttrPollStatus.String(otel.StatusEmpty)),
		)
		return nil
	}

	tel.PollDuration.Record(
		ctx, time.Since(pollStart).Seconds(), a.attrs,
		metric.WithAttributes(otel.AttrPollStatus.String(otel.StatusSuccess)),
	)
	tel.MessagesConsumed.Add(
		ctx, 1, metric.WithAttributes(
			semconv.MessagingDestinationName(rec.Topic),
			semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(rec.Partition), 10)),
		),
	)

	tp := rec.TopicPartition()
	worker, ok := a.getWorker(tp)
	if !ok {
		a.logger.Warn(
			"No worker for partition, may have been rebalanced",
			"topic", tp.Topic,
			"partition", tp.Partition,
		)
		return nil
	}

	if err := worker.Submit(ctx, *rec); err != nil && ctx.Err() == nil {
		a.logger.Warn("Failed to submit record to worker", "error", err, "partition", tp.Partition)
	}
	return nil
}

func (a *Agent[KIn, VIn, KOut, VOut]) getWorker(tp kafka.TopicPartition) (*partitionWorker, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	worker, ok := a.workers[tp]
	return worker, ok
}

func (a *Agent[KIn, VIn, KOut, VOut]) OnAssigned(ctx context.Context, partitions []kafka.TopicPartition) {
	a.logger.Info("Partitions assigned", "partitions", partitions)

	plan := consumer.ComputeAssignment(partitions, a.opts.reset)
	if err := a.client.Assign(ctx, plan); err != nil {
		a.logger.Error("Failed to apply assignment", "error", err)
		emitError(a.errCh, a.logger, fmt.Errorf("failed to assign partitions: %w", err))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	started := 0
	for _, tp := range partitions {
		if _, exists := a.workers[tp]; exists {
			a.logger.Warn("Worker already exists for partition", "partition", tp)
			continue
		}

		p := newPipeline(a.config, a.client, a.telemetry)
		worker := newPartitionWorker(
			a.config.Name,
			tp,
			p,
			a.client,
			a.errorHandler,
			a.opts.channelBufferSize,
			a.opts.workerShutdownTimeout,
			a.errCh,
			a.logger,
			a.telemetry,
		)

		a.workers[tp] = worker
		a.pipelines[tp] = p
		worker.Start(a.runCtx)
		started++

		a.logger.Debug("Started worker for partition", "partition", tp)
	}

	a.telemetry.WorkersActive.Add(ctx, int64(started), a.attrs)
}

func (a *Agent[KIn, VIn, KOut, VOut]) OnRevoked(ctx context.Context, partitions []kafka.TopicPartition) {
	a.logger.Info("Partitions revoked", "partitions", partitions)

	a.mu.Lock()
	workersToStop := make([]*partitionWorker, 0, len(partitions))
	for _, tp := range partitions {
		if worker, exists := a.workers[tp]; exists {
			worker.Stop()
			workersToStop = append(workersToStop, worker)
		}
	}
	a.mu.Unlock()

	a.waitForWorkers(workersToStop)

	a.mu.Lock()
	for _, tp := range partitions {
		a.closePipeline(tp)
		delete(a.workers, tp)
	}
	a.mu.Unlock()

	a.telemetry.WorkersActive.Add(ctx, -int64(len(workersToStop)), a.attrs)
	a.logger.Debug("Completed handling partition revocation")
}

func (a *Agent[KIn, VIn, KOut, VOut]) waitForWorkers(workers []*partitionWorker) {
	var wg sync.WaitGroup
	for _, worker := range workers {
		wg.Add(1)
		go func(w *partitionWorker) {
			defer wg.Done()
			if err := w.WaitForStop(a.opts.workerShutdownTimeout); err != nil {
				a.logger.Warn("Timeout waiting for worker to stop", "partition", w.Partition(), "error", err)
			}
		}(worker)
	}
	wg.Wait()
}

// closePipeline must be called with mu held.
func (a *Agent[KIn, VIn, KOut, VOut]) closePipeline(tp kafka.TopicPartition) {
	p, ok := a.pipelines[tp]
	if !ok {
		return
	}
	if err := p.Close(); err != nil {
		a.logger.Error("Failed to close processor", "partition", tp, "error", err)
	}
	delete(a.pipelines, tp)
}

// shutdown waits for workers to finish queued records and flushes the producer.
func (a *Agent[KIn, VIn, KOut, VOut]) shutdown() {
	a.logger.Info("Shutting down agent")

	a.mu.RLock()
	allWorkers := make([]*partitionWorker, 0, len(a.workers))
	for _, worker := range a.workers {
		allWorkers = append(allWorkers, worker)
	}
	a.mu.RUnlock()

	a.waitForWorkers(allWorkers)

	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.client.Flush(flushCtx); err != nil {
		a.logger.Error("Failed to flush producer during shutdown", "error", err)
	}

	a.mu.Lock()
	for tp := range a.workers {
		a.closePipeline(tp)
		delete(a.workers, tp)
	}
	a.mu.Unlock()

	a.telemetry.WorkersActive.Add(context.Background(), -int64(len(allWorkers)), a.attrs)

	if a.closed.Load() {
		a.release()
	}
	a.logger.Info("Agent shutdown complete")
}

func (a *Agent[KIn, VIn, KOut, VOut]) release() {
	a.releaseOnce.Do(a.client.Close)
}

// Close stops a running agent and releases the client once Run has
// finished shutting down. It is safe to call more than once.
func (a *Agent[KIn, VIn, KOut, VOut]) Close() {
	a.closeOnce.Do(
		func() {
			a.closed.Store(true)

			a.mu.RLock()
			cancel := a.cancel
			a.mu.RUnlock()

			if cancel != nil && a.running.Load() {
				cancel()
				return
			}
			a.release()
		},
	)
}

// WorkerCount returns the number of active partition workers
func (a *Agent[KIn, VIn, KOut, VOut]) WorkerCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.workers)
}

// WorkerQueueDepths returns the queue depth for each partition worker
func (a *Agent[KIn, VIn, KOut, VOut]) WorkerQueueDepths() map[kafka.TopicPartition]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	depths := make(map[kafka.TopicPartition]int, len(a.workers))
	for tp, worker := range a.workers {
		depths[tp] = worker.QueueDepth()
	}
	return depths
}
