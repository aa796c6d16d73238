package errorhandler

import (
	"github.com/hugolhafner/go-transit/kafka"
)

// ErrorContext carries what a handler needs to decide on a failed record.
type ErrorContext struct {
	Record kafka.ConsumerRecord
	Error  error

	// Attempt is the current attempt number, 1 indexed.
	Attempt int

	// Component names the agent or consumer the error surfaced in.
	Component string

	Phase ErrorPhase
}

func NewErrorContext(record kafka.ConsumerRecord, err error) ErrorContext {
	return ErrorContext{
		Record:  record.Copy(),
		Error:   err,
		Attempt: 1,
	}
}

func (ec ErrorContext) WithError(err error) ErrorContext {
	ec.Error = err
	return ec
}

func (ec ErrorContext) WithComponent(name string) ErrorContext {
	ec.Component = name
	return ec
}

func (ec ErrorContext) WithPhase(phase ErrorPhase) ErrorContext {
	ec.Phase = phase
	return ec
}

func (ec ErrorContext) IncrementAttempt() ErrorContext {
	ec.Attempt++
	return ec
}

func (ec ErrorContext) WithAttempt(attempt int) ErrorContext {
	ec.Attempt = attempt
	return ec
}
