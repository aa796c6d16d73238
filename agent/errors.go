package agent

import (
	"errors"

	"github.com/hugolhafner/go-transit/errorhandler"
)

var (
	ErrAlreadyRunning = errors.New("agent is already running")
	ErrClosed         = errors.New("agent is closed")
	ErrNoOutput       = errors.New("processor forwarded no record")
)

// ProcessError wraps a failure returned by the processor itself.
type ProcessError struct {
	Cause error
}

func (e *ProcessError) Error() string {
	return e.Cause.Error()
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// SerdeError wraps a key or value (de)serialisation failure on either side of
// the processor.
type SerdeError struct {
	Cause error
}

func (e *SerdeError) Error() string {
	return e.Cause.Error()
}

func (e *SerdeError) Unwrap() error {
	return e.Cause
}

// ProductionError wraps a failed send to the sink topic.
type ProductionError struct {
	Cause error
	Topic string
}

func (e *ProductionError) Error() string {
	return e.Cause.Error()
}

func (e *ProductionError) Unwrap() error {
	return e.Cause
}

// phaseOf classifies err for the error handler. Unclassified errors count as
// processing errors.
func phaseOf(err error) errorhandler.ErrorPhase {
	var (
		se *SerdeError
		pe *ProductionError
	)
	switch {
	case errors.As(err, &se):
		return errorhandler.PhaseSerde
	case errors.As(err, &pe):
		return errorhandler.PhaseProduction
	default:
		return errorhandler.PhaseProcessing
	}
}
