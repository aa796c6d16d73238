//go:build unit

package agent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hugolhafner/go-transit/errorhandler"
	"github.com/stretchr/testify/require"
)

func TestPhaseOf(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		name string
		err  error
		want errorhandler.ErrorPhase
	}{
		{"serde", &SerdeError{Cause: cause}, errorhandler.PhaseSerde},
		{"wrapped serde", fmt.Errorf("map: %w", &SerdeError{Cause: cause}), errorhandler.PhaseSerde},
		{"production", &ProductionError{Cause: cause, Topic: "out"}, errorhandler.PhaseProduction},
		{"process", &ProcessError{Cause: cause}, errorhandler.PhaseProcessing},
		{"unclassified", cause, errorhandler.PhaseProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, phaseOf(tt.err))
			require.ErrorIs(t, tt.err, cause)
		})
	}
}

func TestErrorMessagesPassThrough(t *testing.T) {
	cause := errors.New("send to out: broker down")

	require.Equal(t, cause.Error(), (&ProductionError{Cause: cause}).Error())
	require.Equal(t, cause.Error(), (&SerdeError{Cause: cause}).Error())
	require.Equal(t, cause.Error(), (&ProcessError{Cause: cause}).Error())
}
