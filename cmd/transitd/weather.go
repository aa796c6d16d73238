package main

import (
	"context"

	"github.com/hugolhafner/go-transit/producer"
	"github.com/hugolhafner/go-transit/provision"
	"github.com/hugolhafner/go-transit/serde"
	"github.com/hugolhafner/go-transit/transit"
	"github.com/spf13/cobra"
)

func newWeatherCmd(a *app) *cobra.Command {
	var reading transit.WeatherReading

	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Publish a weather reading",
		RunE: func(cmd *cobra.Command, args []string) error {
			return publishWeather(cmd.Context(), a, reading)
		},
	}

	cmd.Flags().Float64Var(&reading.Temperature, "temperature", transit.DefaultTemperature, "temperature in fahrenheit")
	cmd.Flags().StringVar(&reading.Status, "status", transit.DefaultWeatherStatus, "weather status")
	return cmd
}

func publishWeather(ctx context.Context, a *app, reading transit.WeatherReading) error {
	client, err := a.newClient("")
	if err != nil {
		return err
	}
	defer client.Close()

	prov := provision.NewTopicProvisioner(
		client, nil, provision.WithLogger(a.logger), provision.WithTelemetry(a.telemetry),
	)
	p, err := producer.New[string, transit.WeatherReading](
		ctx, client, prov, a.topics.Weather, nil, serde.JSON[transit.WeatherReading](),
		producer.WithPartitions(a.cfg.Topics.Partitions),
		producer.WithReplicas(a.cfg.Topics.Replicas),
		producer.WithLogger(a.logger),
		producer.WithTelemetry(a.telemetry),
	)
	if err != nil {
		return err
	}

	if err := p.Publish(ctx, "", reading); err != nil {
		return err
	}
	return p.Close(ctx)
}
