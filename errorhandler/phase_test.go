//go:build unit

package errorhandler_test

import (
	"context"
	"testing"

	"github.com/hugolhafner/go-transit/errorhandler"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/stretchr/testify/require"
)

func TestErrorPhase_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "unknown", errorhandler.PhaseUnknown.String())
	require.Equal(t, "serde", errorhandler.PhaseSerde.String())
	require.Equal(t, "processing", errorhandler.PhaseProcessing.String())
	require.Equal(t, "production", errorhandler.PhaseProduction.String())
	require.Equal(t, "unknown", errorhandler.ErrorPhase(99).String())
}

func always(a errorhandler.Action) errorhandler.Handler {
	return errorhandler.HandlerFunc(
		func(_ context.Context, _ errorhandler.ErrorContext) errorhandler.Action {
			return a
		},
	)
}

func inPhase(phase errorhandler.ErrorPhase) errorhandler.ErrorContext {
	return errorhandler.NewErrorContext(kafka.ConsumerRecord{}, nil).WithPhase(phase)
}

func TestPhaseRouter(t *testing.T) {
	t.Parallel()

	full := errorhandler.NewPhaseRouter(
		always(errorhandler.ActionFail{}),
		errorhandler.OnSerde(always(errorhandler.ActionContinue{})),
		errorhandler.OnProcessing(always(errorhandler.ActionRetry{})),
		errorhandler.OnProduction(always(errorhandler.ActionContinue{})),
	)
	fallbackOnly := errorhandler.NewPhaseRouter(always(errorhandler.ActionRetry{}))
	nilRoutes := errorhandler.NewPhaseRouter(
		always(errorhandler.ActionContinue{}),
		errorhandler.OnSerde(nil),
		errorhandler.OnProduction(nil),
	)

	tests := []struct {
		name   string
		router *errorhandler.PhaseRouter
		phase  errorhandler.ErrorPhase
		want   errorhandler.ActionType
	}{
		{"serde route", full, errorhandler.PhaseSerde, errorhandler.ActionTypeContinue},
		{"processing route", full, errorhandler.PhaseProcessing, errorhandler.ActionTypeRetry},
		{"production route", full, errorhandler.PhaseProduction, errorhandler.ActionTypeContinue},
		{"unknown phase", full, errorhandler.PhaseUnknown, errorhandler.ActionTypeFail},
		{"unrecognised phase", full, errorhandler.ErrorPhase(42), errorhandler.ActionTypeFail},
		{"fallback for serde", fallbackOnly, errorhandler.PhaseSerde, errorhandler.ActionTypeRetry},
		{"fallback for production", fallbackOnly, errorhandler.PhaseProduction, errorhandler.ActionTypeRetry},
		{"nil route ignored", nilRoutes, errorhandler.PhaseSerde, errorhandler.ActionTypeContinue},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				t.Parallel()
				action := tt.router.Handle(context.Background(), inPhase(tt.phase))
				require.Equal(t, tt.want, action.Type())
			},
		)
	}
}

func TestPhaseRouter_NilFallbackFailsSilently(t *testing.T) {
	t.Parallel()

	router := errorhandler.NewPhaseRouter(nil)
	action := router.Handle(context.Background(), inPhase(errorhandler.PhaseProcessing))
	require.IsType(t, errorhandler.ActionFail{}, action)
}

func TestPhaseRouter_LaterRouteWins(t *testing.T) {
	t.Parallel()

	router := errorhandler.NewPhaseRouter(
		nil,
		errorhandler.OnProduction(always(errorhandler.ActionFail{})),
		errorhandler.OnProduction(always(errorhandler.ActionRetry{})),
	)

	action := router.Handle(context.Background(), inPhase(errorhandler.PhaseProduction))
	require.IsType(t, errorhandler.ActionRetry{}, action)
}

func TestPhaseRouter_PassesErrorContext(t *testing.T) {
	t.Parallel()

	var captured errorhandler.ErrorContext
	router := errorhandler.NewPhaseRouter(
		always(errorhandler.ActionFail{}),
		errorhandler.OnSerde(
			errorhandler.HandlerFunc(
				func(_ context.Context, ec errorhandler.ErrorContext) errorhandler.Action {
					captured = ec
					return errorhandler.ActionContinue{}
				},
			),
		),
	)

	ec := errorhandler.NewErrorContext(
		kafka.ConsumerRecord{Topic: "arm.jdbc.v1.stations", Partition: 3, Offset: 42}, nil,
	).WithPhase(errorhandler.PhaseSerde).WithComponent("stations")

	router.Handle(context.Background(), ec)

	require.Equal(t, "arm.jdbc.v1.stations", captured.Record.Topic)
	require.Equal(t, int32(3), captured.Record.Partition)
	require.Equal(t, int64(42), captured.Record.Offset)
	require.Equal(t, "stations", captured.Component)
	require.Equal(t, errorhandler.PhaseSerde, captured.Phase)
}
