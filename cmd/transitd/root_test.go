//go:build unit

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hugolhafner/go-transit/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"provision", "transform", "dashboard", "weather"}, names)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("topics:\n  version: 0\n"), 0o600))

	root := newRootCmd()
	root.SetArgs([]string{"--config", path, "weather"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topics.version")
}

func TestNewZapLogger(t *testing.T) {
	zl, err := newZapLogger(config.LogConfig{Level: "warn"})
	require.NoError(t, err)

	assert.False(t, zl.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, zl.Core().Enabled(zapcore.WarnLevel))

	_, err = newZapLogger(config.LogConfig{Level: "loud"})
	require.Error(t, err)
}

func TestApp_Init(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Topics.Version = 3
	cfg.Topics.Partitions = 6

	a := &app{}
	require.NoError(t, a.init(cfg))

	assert.Equal(t, "arm.faust.v3.stations.transformed", a.topics.StationsTransformed)
	assert.NotNil(t, a.telemetry)

	specs := topicSpecs(a)
	require.Len(t, specs, 4)
	for _, s := range specs {
		assert.Equal(t, int32(6), s.Partitions)
		assert.Equal(t, int16(1), s.ReplicationFactor)
	}
	assert.Equal(t, "arm.jdbc.v3.stations", specs[0].Name)
}

func TestApp_Serdes(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	a := &app{}
	require.NoError(t, a.init(cfg))

	s, err := a.serdes()
	require.NoError(t, err)
	assert.NotNil(t, s.Transformed)

	a.cfg.Consumer.UseAvro = true
	s, err = a.serdes()
	require.NoError(t, err)
	assert.NotNil(t, s.Station)
}
