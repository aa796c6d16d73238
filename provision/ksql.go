package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/otel"
	"go.opentelemetry.io/otel/metric"
)

const ksqlContentType = "application/vnd.ksql.v1+json"

var ErrInvalidStatement = errors.New("invalid ksql statement")

// Statement is a batch of KSQL statements that together create one derived
// table. SentinelTopic is the topic that exists once the batch has run.
type Statement struct {
	Name              string
	SQL               string
	SentinelTopic     string
	StreamsProperties map[string]string
}

type ksqlRequest struct {
	KSQL              string            `json:"ksql"`
	StreamsProperties map[string]string `json:"streamsProperties,omitempty"`
}

// QueryProvisioner runs KSQL statements against the KSQL REST API.
type QueryProvisioner struct {
	baseURL  string
	admin    kafka.Admin
	registry *Registry
	config   config
}

func NewQueryProvisioner(baseURL string, admin kafka.Admin, registry *Registry, opts ...Option) *QueryProvisioner {
	if registry == nil {
		registry = NewRegistry()
	}

	return &QueryProvisioner{
		baseURL:  strings.TrimRight(baseURL, "/"),
		admin:    admin,
		registry: registry,
		config:   newConfig(opts),
	}
}

// Ensure executes the statement unless its sentinel topic already exists.
func (p *QueryProvisioner) Ensure(ctx context.Context, stmt Statement) error {
	if stmt.Name == "" || strings.TrimSpace(stmt.SQL) == "" {
		return fmt.Errorf("%w: name and sql are required", ErrInvalidStatement)
	}

	log := p.config.logger.With("statement", stmt.Name)
	if !p.registry.Claim("query/" + stmt.Name) {
		log.Debug("Statement already provisioned")
		return nil
	}

	status, err := p.ensure(ctx, stmt)
	switch {
	case err != nil:
		log.Error("Failed to execute statement", "error", err)
	case status == otel.ProvisionExists:
		log.Debug("Statement output already exists, skipping", "topic", stmt.SentinelTopic)
	default:
		log.Info("Executed statement")
	}

	p.config.telemetry.ProvisionAttempts.Add(
		ctx, 1, metric.WithAttributes(
			otel.AttrResourceKind.String(otel.ResourceQuery),
			otel.AttrProvisionStatus.String(status),
		),
	)

	return err
}

func (p *QueryProvisioner) ensure(ctx context.Context, stmt Statement) (string, error) {
	if stmt.SentinelTopic != "" && p.admin != nil {
		exists, err := p.admin.TopicExists(ctx, stmt.SentinelTopic)
		if err != nil {
			p.config.logger.Warn("Could not check sentinel topic", "topic", stmt.SentinelTopic, "error", err)
		} else if exists {
			return otel.ProvisionExists, nil
		}
	}

	body, err := json.Marshal(ksqlRequest{KSQL: stmt.SQL, StreamsProperties: stmt.StreamsProperties})
	if err != nil {
		return otel.ProvisionFailed, fmt.Errorf("encode statement: %w", err)
	}

	header := http.Header{
		"Content-Type": []string{ksqlContentType},
		"Accept":       []string{ksqlContentType},
	}
	resp, err := do(ctx, p.config, http.MethodPost, p.baseURL+"/ksql", header, body)
	if err != nil {
		return otel.ProvisionFailed, err
	}

	if !isSuccess(resp.status) {
		return otel.ProvisionFailed, fmt.Errorf(
			"ksql returned %d: %s", resp.status, strings.TrimSpace(string(resp.body)),
		)
	}
	return otel.ProvisionCreated, nil
}
