package logger

type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// Base is the minimal surface a logging backend has to provide.
type Base interface {
	Level() LogLevel
	Log(level LogLevel, msg string, kv ...any)
	With(kv ...any) Base
}

type Logger interface {
	Level() LogLevel
	Log(level LogLevel, msg string, kv ...any)
	With(kv ...any) Logger
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type NoopLogger struct{}

func (n *NoopLogger) Log(level LogLevel, msg string, kv ...any) {
	// no operation
}

func (n *NoopLogger) Level() LogLevel {
	return InfoLevel
}

func (n *NoopLogger) With(kv ...any) Base {
	return n
}

func NewNoopLogger() Logger {
	return WrapLogger(&NoopLogger{})
}
