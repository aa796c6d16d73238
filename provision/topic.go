package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/otel"
	"go.opentelemetry.io/otel/metric"
)

var ErrInvalidTopic = errors.New("invalid topic spec")

// Provisioner ensures a topic exists before it is first written to.
type Provisioner interface {
	Ensure(ctx context.Context, spec kafka.TopicSpec) error
}

var _ Provisioner = (*TopicProvisioner)(nil)

type TopicProvisioner struct {
	admin    kafka.Admin
	registry *Registry
	config   config
}

func NewTopicProvisioner(admin kafka.Admin, registry *Registry, opts ...Option) *TopicProvisioner {
	if registry == nil {
		registry = NewRegistry()
	}

	return &TopicProvisioner{
		admin:    admin,
		registry: registry,
		config:   newConfig(opts),
	}
}

func validate(spec kafka.TopicSpec) error {
	switch {
	case spec.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidTopic)
	case spec.Partitions < 1:
		return fmt.Errorf("%w: %s needs at least one partition", ErrInvalidTopic, spec.Name)
	case spec.ReplicationFactor < 1:
		return fmt.Errorf("%w: %s needs a replication factor of at least one", ErrInvalidTopic, spec.Name)
	}
	return nil
}

// Ensure creates the topic unless this process already attempted to. The
// name is claimed before the broker is contacted, so a failed attempt is not
// repeated. A topic that already exists on the broker is not an error; any
// other failure is logged and returned.
func (p *TopicProvisioner) Ensure(ctx context.Context, spec kafka.TopicSpec) error {
	if err := validate(spec); err != nil {
		return err
	}

	log := p.config.logger.With("topic", spec.Name)

	if !p.registry.Claim(spec.Name) {
		log.Debug("Topic already provisioned")
		return nil
	}

	err := p.admin.CreateTopic(ctx, spec)

	status := otel.ProvisionCreated
	switch {
	case err == nil:
		log.Info("Created topic", "partitions", spec.Partitions, "replication_factor", spec.ReplicationFactor)
	case errors.Is(err, kafka.ErrTopicAlreadyExists):
		status = otel.ProvisionExists
		log.Info("Topic already exists")
		err = nil
	default:
		status = otel.ProvisionFailed
		log.Error("Failed to create topic", "error", err)
		err = fmt.Errorf("create topic %s: %w", spec.Name, err)
	}

	p.config.telemetry.ProvisionAttempts.Add(
		ctx, 1, metric.WithAttributes(
			otel.AttrResourceKind.String(otel.ResourceTopic),
			otel.AttrProvisionStatus.String(status),
		),
	)

	return err
}
