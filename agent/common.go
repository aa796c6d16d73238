package agent

import (
	"context"
	"strconv"
	"time"

	"github.com/hugolhafner/go-transit/errorhandler"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
	"go.opentelemetry.io/otel/trace"
)

// emitError emits an error to the provided channel without blocking
func emitError(errCh chan<- error, l logger.Logger, err error) {
	select {
	case errCh <- err:
	default:
		l.Error("Error channel full, dropping error", "error", err)
	}
}

// processRecordWithRetry runs rec through p, consulting handler on every
// failure. On all non-error return paths the record is marked as consumed.
func processRecordWithRetry(
	ctx context.Context,
	component string,
	rec kafka.ConsumerRecord,
	p recordProcessor,
	consumer kafka.Consumer,
	handler errorhandler.Handler,
	tel *otel.Telemetry,
	l logger.Logger,
) error {
	partition := strconv.FormatInt(int64(rec.Partition), 10)

	carrier := otel.NewHeaderCarrier(&rec.Headers)
	ctx = tel.Propagator.Extract(ctx, carrier)

	processStart := time.Now()
	ctx, span := tel.Tracer.Start(
		ctx, rec.Topic+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationTypeProcess,
			semconv.MessagingDestinationName(rec.Topic),
			semconv.MessagingDestinationPartitionID(partition),
			semconv.MessagingKafkaOffsetKey.Int64(rec.Offset),
			semconv.MessagingMessageBodySize(len(rec.Value)),
		),
	)
	defer span.End()

	ec := errorhandler.NewErrorContext(rec, nil).WithComponent(component)
	recordProcessStatus := func(status string) {
		span.SetAttributes(attribute.Int("transit.process.attempts", ec.Attempt))
		tel.HandlerDuration.Record(
			ctx, time.Since(processStart).Seconds(), metric.WithAttributes(
				otel.AttrComponent.String(component),
				semconv.MessagingDestinationName(rec.Topic),
				semconv.MessagingDestinationPartitionID(partition),
				otel.AttrProcessStatus.String(status),
			),
		)
	}

	for {
		select {
		case <-ctx.Done():
			l.Warn("Context cancelled while processing record", "offset", rec.Offset, "error", ctx.Err())
			span.SetStatus(codes.Error, ctx.Err().Error())
			return ctx.Err()
		default:
		}

		err := p.Process(ctx, rec)
		if err == nil {
			l.Debug("Record processed successfully", "offset", rec.Offset)
			consumer.MarkRecords(rec)
			recordProcessStatus(otel.StatusSuccess)
			return nil
		}

		ec = ec.WithError(err).WithPhase(phaseOf(err))

		span.RecordError(err)
		tel.Errors.Add(
			ctx, 1, metric.WithAttributes(
				otel.AttrComponent.String(component),
				semconv.MessagingDestinationName(rec.Topic),
				otel.AttrErrorPhase.String(ec.Phase.String()),
			),
		)

		action := handler.Handle(ctx, ec)

		tel.ErrorHandlerActions.Add(
			ctx, 1, metric.WithAttributes(
				otel.AttrErrorAction.String(action.Type().String()),
				semconv.MessagingDestinationName(rec.Topic),
				otel.AttrErrorPhase.String(ec.Phase.String()),
			),
		)

		switch action.Type() {
		case errorhandler.ActionTypeFail:
			recordProcessStatus(otel.StatusFailed)
			span.SetStatus(codes.Error, err.Error())
			return err

		case errorhandler.ActionTypeRetry:
			l.Debug("Retrying record", "attempt", ec.Attempt, "offset", rec.Offset, "phase", ec.Phase.String())
			ec = ec.IncrementAttempt()

			if ec.Attempt%10 == 0 {
				l.Warn(
					"Record seen high number of retry attempts, consider bounding retries in the error handler",
					"attempt", ec.Attempt, "topic", rec.Topic, "offset", rec.Offset, "partition", rec.Partition,
				)
			}
			continue

		case errorhandler.ActionTypeContinue:
			l.Debug("Skipping failed record", "offset", rec.Offset)
			consumer.MarkRecords(rec)
			recordProcessStatus(otel.StatusSkipped)
			return nil

		default:
			l.Error(
				"Unknown error handler action, failing record",
				"error", err,
				"topic", rec.Topic,
				"offset", rec.Offset,
				"partition", rec.Partition,
				"attempt", ec.Attempt,
			)
			recordProcessStatus(otel.StatusFailed)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
}
