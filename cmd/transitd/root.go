package main

import (
	"fmt"

	"github.com/hugolhafner/go-transit/config"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/otel"
	"github.com/hugolhafner/go-transit/plugins/zaplogger"
	"github.com/hugolhafner/go-transit/schema"
	"github.com/hugolhafner/go-transit/transit"
	"github.com/spf13/cobra"
	gootel "go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app carries what every subcommand needs once the config is loaded.
type app struct {
	cfg       *config.Config
	zap       *zap.Logger
	logger    logger.Logger
	telemetry *otel.Telemetry
	topics    transit.Topics
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile  string
		logLevel string
		a        = &app{}
	)

	root := &cobra.Command{
		Use:           "transitd",
		Short:         "Transit station pipeline",
		Long:          `transitd provisions the station topics, transforms raw station rows and serves the dashboard metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			return a.init(cfg)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.zap != nil {
				_ = a.zap.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./transit.yaml)")
	root.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newProvisionCmd(a),
		newTransformCmd(a),
		newDashboardCmd(a),
		newWeatherCmd(a),
	)

	return root
}

func (a *app) init(cfg *config.Config) error {
	zl, err := newZapLogger(cfg.Log)
	if err != nil {
		return err
	}

	tel, err := otel.NewTelemetry(
		gootel.GetTracerProvider(), gootel.GetMeterProvider(), gootel.GetTextMapPropagator(),
	)
	if err != nil {
		return fmt.Errorf("create telemetry: %w", err)
	}

	a.cfg = cfg
	a.zap = zl
	a.logger = zaplogger.New(zl)
	a.telemetry = tel
	a.topics = transit.TopicsFor(cfg.Topics.Version)
	return nil
}

func newZapLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

// newClient returns a franz-go client; clients that subscribe need a group
// of their own.
func (a *app) newClient(group string) (*kafka.KgoClient, error) {
	if group == "" {
		group = a.cfg.Kafka.GroupID
	}

	client, err := kafka.NewKgoClient(
		kafka.WithBootstrapServers(a.cfg.Kafka.Brokers),
		kafka.WithGroupID(group),
		kafka.WithAutoOffsetReset(a.cfg.Kafka.AutoOffsetReset),
		kafka.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return client, nil
}

func (a *app) serdes() (transit.Serdes, error) {
	if !a.cfg.Consumer.UseAvro {
		return transit.JSONSerdes(), nil
	}

	var reg schema.Registry
	if a.cfg.SchemaRegistry.URL != "" {
		r, err := schema.NewConfluentRegistry(a.cfg.SchemaRegistry.URL)
		if err != nil {
			return transit.Serdes{}, fmt.Errorf("schema registry: %w", err)
		}
		reg = r
	}
	return transit.AvroSerdes(reg)
}
