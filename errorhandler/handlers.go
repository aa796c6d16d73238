package errorhandler

import (
	"context"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-transit/logger"
)

func recordFields(ec ErrorContext) []any {
	return []any{
		"error", ec.Error,
		"phase", ec.Phase.String(),
		"topic", ec.Record.Topic,
		"partition", ec.Record.Partition,
		"offset", ec.Record.Offset,
		"attempt", ec.Attempt,
		"component", ec.Component,
	}
}

// LogAndContinue logs the error and skips the record.
func LogAndContinue(l logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			l.Error("error processing record, skipping", recordFields(ec)...)
			return ActionContinue{}
		},
	)
}

// LogAndFail logs the error and stops processing.
func LogAndFail(l logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			l.Error("error processing record, failing", recordFields(ec)...)
			return ActionFail{}
		},
	)
}

// SilentFail stops processing without logging.
func SilentFail() Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			return ActionFail{}
		},
	)
}

// WithMaxAttempts waits out the backoff for the current attempt and asks for a
// retry until maxAttempts is reached, after which fallback decides.
func WithMaxAttempts(maxAttempts int, b backoff.Backoff, fallback Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			if ec.Attempt >= maxAttempts {
				return fallback.Handle(ctx, ec)
			}

			select {
			case <-ctx.Done():
				return ActionFail{}
			case <-time.After(b.Next(uint(ec.Attempt))):
			}

			return ActionRetry{}
		},
	)
}

// ActionLogger logs the action decided by the next handler.
func ActionLogger(l logger.Logger, level logger.LogLevel, next Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			action := next.Handle(ctx, ec)
			l.Log(level, "error handler decision", append([]any{"action", action.Type().String()}, recordFields(ec)...)...)
			return action
		},
	)
}

// Default skips undecodable records, fails on processing errors and retries
// production errors up to maxAttempts before failing.
func Default(l logger.Logger, maxAttempts int, b backoff.Backoff) Handler {
	fail := LogAndFail(l)
	return NewPhaseRouter(
		fail,
		OnSerde(LogAndContinue(l)),
		OnProduction(WithMaxAttempts(maxAttempts, b, fail)),
	)
}
