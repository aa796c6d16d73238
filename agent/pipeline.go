package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hugolhafner/go-transit/errorhandler"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/otel"
	"github.com/hugolhafner/go-transit/processor"
	"github.com/hugolhafner/go-transit/record"
	"github.com/hugolhafner/go-transit/serde"
	"github.com/hugolhafner/go-transit/table"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
)

// recordProcessor runs a single consumed record to completion.
type recordProcessor interface {
	Process(ctx context.Context, rec kafka.ConsumerRecord) error
	Close() error
}

// pipeline owns one processor instance and carries a record from the source
// serdes through the processor to the sink and the table.
type pipeline[KIn, VIn any, KOut comparable, VOut any] struct {
	source string
	sink   string

	keyDe   serde.Deserialiser[KIn]
	valueDe serde.Deserialiser[VIn]
	keySer  serde.Serialiser[KOut]
	valSer  serde.Serialiser[VOut]

	proc     processor.Processor[KIn, VIn, KOut, VOut]
	producer kafka.Producer
	table    *table.Table[KOut, VOut]

	telemetry *otel.Telemetry
	forwarded int
}

func newPipeline[KIn, VIn any, KOut comparable, VOut any](
	cfg Config[KIn, VIn, KOut, VOut], producer kafka.Producer, tel *otel.Telemetry,
) *pipeline[KIn, VIn, KOut, VOut] {
	p := &pipeline[KIn, VIn, KOut, VOut]{
		source:    cfg.SourceTopic,
		sink:      cfg.SinkTopic,
		keyDe:     cfg.KeyDeserialiser,
		valueDe:   cfg.ValueDeserialiser,
		keySer:    cfg.KeySerialiser,
		valSer:    cfg.ValueSerialiser,
		proc:      cfg.Processor(),
		producer:  producer,
		table:     cfg.Table,
		telemetry: tel,
	}
	p.proc.Init(processor.ForwardFunc[KOut, VOut](p.forward))
	return p
}

func (p *pipeline[KIn, VIn, KOut, VOut]) Process(ctx context.Context, rec kafka.ConsumerRecord) error {
	var key KIn
	if p.keyDe != nil && rec.Key != nil {
		var err error
		if key, err = serde.DeserialiseKey(p.keyDe, rec.Topic, rec.Key); err != nil {
			return &SerdeError{Cause: err}
		}
	}

	value, err := serde.DeserialiseValue(p.valueDe, rec.Topic, rec.Value)
	if err != nil {
		return &SerdeError{Cause: err}
	}

	p.forwarded = 0
	in := &record.Record[KIn, VIn]{Key: key, Value: value, Metadata: record.MetadataFrom(rec)}

	if err := p.proc.Process(ctx, in); err != nil {
		if phaseOf(err) == errorhandler.PhaseProcessing {
			return &ProcessError{Cause: err}
		}
		return err
	}

	if p.forwarded == 0 {
		return &ProcessError{Cause: ErrNoOutput}
	}
	return nil
}

// forward serialises r, waits for the sink to acknowledge it and then folds
// it into the table.
func (p *pipeline[KIn, VIn, KOut, VOut]) forward(ctx context.Context, r *record.Record[KOut, VOut]) error {
	var key []byte
	if p.keySer != nil {
		var err error
		if key, err = serde.SerialiseKey(p.keySer, p.sink, r.Key); err != nil {
			return &SerdeError{Cause: err}
		}
	}

	value, err := serde.SerialiseValue(p.valSer, p.sink, r.Value)
	if err != nil {
		return &SerdeError{Cause: err}
	}

	var headers []kafka.Header
	p.telemetry.Propagator.Inject(ctx, otel.NewHeaderCarrier(&headers))

	start := time.Now()
	err = p.producer.Send(ctx, p.sink, key, value, headers)

	status := otel.StatusSuccess
	if err != nil {
		status = otel.StatusError
	}
	p.telemetry.ProduceDuration.Record(
		ctx, time.Since(start).Seconds(), metric.WithAttributes(
			semconv.MessagingDestinationName(p.sink),
			otel.AttrProduceStatus.String(status),
		),
	)

	if err != nil {
		return &ProductionError{Cause: fmt.Errorf("send to %s: %w", p.sink, err), Topic: p.sink}
	}

	p.telemetry.MessagesProduced.Add(ctx, 1, metric.WithAttributes(semconv.MessagingDestinationName(p.sink)))

	if p.table != nil {
		p.table.Put(r.Key, r.Value)
	}
	p.forwarded++
	return nil
}

func (p *pipeline[KIn, VIn, KOut, VOut]) Close() error {
	if err := p.proc.Close(); err != nil {
		return fmt.Errorf("close processor for %s: %w", p.source, err)
	}
	return nil
}
