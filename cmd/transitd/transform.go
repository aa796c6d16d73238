package main

import (
	"context"
	"fmt"

	"github.com/hugolhafner/go-transit/agent"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/provision"
	"github.com/hugolhafner/go-transit/table"
	"github.com/hugolhafner/go-transit/transit"
	"github.com/spf13/cobra"
)

func newTransformCmd(a *app) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Derive station lines and maintain the stations table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd.Context(), a, group)
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "consumer group (default is kafka.groupID)")
	return cmd
}

func runTransform(ctx context.Context, a *app, group string) error {
	s, err := a.serdes()
	if err != nil {
		return err
	}

	client, err := a.newClient(group)
	if err != nil {
		return err
	}

	sink := kafka.TopicSpec{
		Name:              a.topics.StationsTransformed,
		Partitions:        a.cfg.Topics.Partitions,
		ReplicationFactor: a.cfg.Topics.Replicas,
	}
	prov := provision.NewTopicProvisioner(
		client, nil, provision.WithLogger(a.logger), provision.WithTelemetry(a.telemetry),
	)
	if err := prov.Ensure(ctx, sink); err != nil {
		client.Close()
		return err
	}

	tbl, err := transit.NewStationsTable(
		a.topics, s, table.WithLogger(a.logger), table.WithTelemetry(a.telemetry),
	)
	if err != nil {
		client.Close()
		return err
	}
	if err := tbl.Restore(ctx, client); err != nil {
		client.Close()
		return fmt.Errorf("restore stations table: %w", err)
	}

	ag, err := transit.NewStationAgent(
		client, a.topics, s, tbl,
		agent.WithLogger(a.logger),
		agent.WithTelemetry(a.telemetry),
		agent.WithResetToEarliest(a.cfg.Consumer.ResetToEarliest),
		agent.WithPollTimeout(a.cfg.Consumer.PollTimeout),
	)
	if err != nil {
		client.Close()
		return err
	}
	defer ag.Close()

	return ag.Run(ctx)
}
