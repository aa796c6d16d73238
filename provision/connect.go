package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hugolhafner/go-transit/otel"
	"go.opentelemetry.io/otel/metric"
)

var ErrInvalidConnector = errors.New("invalid connector")

// Connector is a Kafka Connect connector definition.
type Connector struct {
	Name   string            `json:"name"`
	Config map[string]string `json:"config"`
}

// JDBCSource describes an incrementing JDBC source connector that streams
// new rows of a single table into topics named TopicPrefix + table.
type JDBCSource struct {
	Name               string
	ConnectionURL      string
	User               string
	Password           string
	Table              string
	IncrementingColumn string
	TopicPrefix        string
	BatchMaxRows       int
	PollInterval       time.Duration
}

func JDBCSourceConnector(src JDBCSource) Connector {
	batch := src.BatchMaxRows
	if batch <= 0 {
		batch = 500
	}
	poll := src.PollInterval
	if poll <= 0 {
		poll = 10 * time.Second
	}

	return Connector{
		Name: src.Name,
		Config: map[string]string{
			"connector.class":                "io.confluent.connect.jdbc.JdbcSourceConnector",
			"topic.prefix":                   src.TopicPrefix,
			"mode":                           "incrementing",
			"incrementing.column.name":       src.IncrementingColumn,
			"table.whitelist":                src.Table,
			"batch.max.rows":                 strconv.Itoa(batch),
			"connection.url":                 src.ConnectionURL,
			"connection.user":                src.User,
			"connection.password":            src.Password,
			"poll.interval.ms":               strconv.FormatInt(poll.Milliseconds(), 10),
			"key.converter":                  "org.apache.kafka.connect.json.JsonConverter",
			"key.converter.schemas.enable":   "false",
			"value.converter":                "org.apache.kafka.connect.json.JsonConverter",
			"value.converter.schemas.enable": "false",
		},
	}
}

// ConnectorProvisioner ensures connectors exist on a Kafka Connect cluster.
type ConnectorProvisioner struct {
	baseURL  string
	registry *Registry
	config   config
}

func NewConnectorProvisioner(baseURL string, registry *Registry, opts ...Option) *ConnectorProvisioner {
	if registry == nil {
		registry = NewRegistry()
	}

	return &ConnectorProvisioner{
		baseURL:  strings.TrimRight(baseURL, "/"),
		registry: registry,
		config:   newConfig(opts),
	}
}

// Ensure creates the connector when Kafka Connect does not know it yet. An
// existing connector is left untouched.
func (p *ConnectorProvisioner) Ensure(ctx context.Context, c Connector) error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidConnector)
	}

	log := p.config.logger.With("connector", c.Name)
	if !p.registry.Claim("connector/" + c.Name) {
		log.Debug("Connector already provisioned")
		return nil
	}

	status, err := p.ensure(ctx, c)
	switch {
	case err != nil:
		log.Error("Failed to create connector", "error", err)
	case status == otel.ProvisionExists:
		log.Debug("Connector already exists, skipping")
	default:
		log.Info("Created connector")
	}

	p.config.telemetry.ProvisionAttempts.Add(
		ctx, 1, metric.WithAttributes(
			otel.AttrResourceKind.String(otel.ResourceConnector),
			otel.AttrProvisionStatus.String(status),
		),
	)

	return err
}

func (p *ConnectorProvisioner) ensure(ctx context.Context, c Connector) (string, error) {
	header := http.Header{"Accept": []string{"application/json"}}

	existing, err := do(ctx, p.config, http.MethodGet, p.baseURL+"/connectors/"+url.PathEscape(c.Name), header, nil)
	if err != nil {
		return otel.ProvisionFailed, err
	}
	if existing.status == http.StatusOK {
		return otel.ProvisionExists, nil
	}

	body, err := json.Marshal(c)
	if err != nil {
		return otel.ProvisionFailed, fmt.Errorf("encode connector: %w", err)
	}

	header.Set("Content-Type", "application/json")
	created, err := do(ctx, p.config, http.MethodPost, p.baseURL+"/connectors", header, body)
	if err != nil {
		return otel.ProvisionFailed, err
	}

	switch {
	case isSuccess(created.status):
		return otel.ProvisionCreated, nil
	case created.status == http.StatusConflict:
		return otel.ProvisionExists, nil
	default:
		return otel.ProvisionFailed, fmt.Errorf(
			"kafka connect returned %d: %s", created.status, strings.TrimSpace(string(created.body)),
		)
	}
}
