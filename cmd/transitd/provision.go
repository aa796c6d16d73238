package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/provision"
	"github.com/hugolhafner/go-transit/transit"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

type provisionFlags struct {
	skipTable     bool
	skipConnector bool
	skipKSQL      bool
}

func newProvisionCmd(a *app) *cobra.Command {
	var f provisionFlags

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the source table, topics, connector and KSQL tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd.Context(), a, f)
		},
	}

	cmd.Flags().BoolVar(&f.skipTable, "skip-table", false, "do not create the Postgres stations table")
	cmd.Flags().BoolVar(&f.skipConnector, "skip-connector", false, "do not create the JDBC source connector")
	cmd.Flags().BoolVar(&f.skipKSQL, "skip-ksql", false, "do not run the turnstile KSQL statements")

	return cmd
}

// runProvision attempts every step and reports all failures together.
func runProvision(ctx context.Context, a *app, f provisionFlags) error {
	registry := provision.NewRegistry()
	opts := []provision.Option{
		provision.WithLogger(a.logger),
		provision.WithTelemetry(a.telemetry),
	}

	var errs []error

	if !f.skipTable {
		if err := ensureSourceTable(ctx, a, registry, opts); err != nil {
			errs = append(errs, err)
		}
	}

	client, err := a.newClient("")
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	defer client.Close()

	if err := ensureTopics(ctx, a, client, registry, opts); err != nil {
		errs = append(errs, err)
	}

	if !f.skipConnector {
		c := transit.StationsConnector(
			a.topics, transit.ConnectorSettings{
				Name:          a.cfg.Connect.ConnectorName,
				ConnectionURL: a.cfg.Connect.DatabaseURL,
				User:          a.cfg.Connect.User,
				Password:      a.cfg.Connect.Password,
				PollInterval:  a.cfg.Connect.PollInterval,
			},
		)
		if err := provision.NewConnectorProvisioner(a.cfg.Connect.URL, registry, opts...).Ensure(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("connector %s: %w", c.Name, err))
		}
	}

	if !f.skipKSQL {
		stmt := transit.TurnstileStatement(a.topics)
		if err := provision.NewQueryProvisioner(a.cfg.KSQL.URL, client, registry, opts...).Ensure(ctx, stmt); err != nil {
			errs = append(errs, fmt.Errorf("statement %s: %w", stmt.Name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	a.logger.Info("Provisioning complete", "resources", registry.Names())
	return nil
}

func ensureSourceTable(ctx context.Context, a *app, registry *provision.Registry, opts []provision.Option) error {
	pool, err := pgxpool.New(ctx, a.cfg.Postgres.ConnString)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := provision.NewSourceTableProvisioner(pool, registry, opts...).Ensure(ctx, transit.StationsTable); err != nil {
		return fmt.Errorf("table %s: %w", transit.StationsTable.Name, err)
	}
	return nil
}

func topicSpecs(a *app) []kafka.TopicSpec {
	names := []string{
		a.topics.Stations,
		a.topics.StationsTransformed,
		a.topics.Turnstile,
		a.topics.Weather,
	}

	specs := make([]kafka.TopicSpec, 0, len(names))
	for _, name := range names {
		specs = append(
			specs, kafka.TopicSpec{
				Name:              name,
				Partitions:        a.cfg.Topics.Partitions,
				ReplicationFactor: a.cfg.Topics.Replicas,
			},
		)
	}
	return specs
}

func ensureTopics(
	ctx context.Context, a *app, admin kafka.Admin, registry *provision.Registry, opts []provision.Option,
) error {
	p := provision.NewTopicProvisioner(admin, registry, opts...)

	var errs []error
	for _, spec := range topicSpecs(a) {
		if err := p.Ensure(ctx, spec); err != nil {
			errs = append(errs, fmt.Errorf("topic %s: %w", spec.Name, err))
		}
	}
	return errors.Join(errs...)
}
