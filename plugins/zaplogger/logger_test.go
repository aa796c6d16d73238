//go:build unit

package zaplogger_test

import (
	"errors"
	"testing"

	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/plugins/zaplogger"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_LogWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zaplogger.New(zap.New(core))

	l.With("component", "consumer").Warn("poll failed", "topic", "stations", "error", errors.New("boom"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, zapcore.WarnLevel, entry.Level)
	require.Equal(t, "poll failed", entry.Message)

	ctx := entry.ContextMap()
	require.Equal(t, "consumer", ctx["component"])
	require.Equal(t, "stations", ctx["topic"])
	require.Equal(t, "boom", ctx["error"])
}

func TestZapLogger_Level(t *testing.T) {
	core, _ := observer.New(zapcore.WarnLevel)
	l := zaplogger.New(zap.New(core))

	require.Equal(t, logger.WarnLevel, l.Level())
}

func TestZapLogger_OddKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zaplogger.New(zap.New(core))

	l.Info("dangling", "key")

	require.Equal(t, 1, logs.Len())
	require.Empty(t, logs.All()[0].Context)
}
