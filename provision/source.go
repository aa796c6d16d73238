package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hugolhafner/go-transit/otel"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/metric"
)

var ErrInvalidTable = errors.New("invalid table")

// Execer is satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
}

// Table is a relational table a CDC connector reads from.
type Table struct {
	Name    string
	Columns []Column
}

// DDL renders an idempotent CREATE TABLE statement.
func (t Table) DDL() (string, error) {
	if t.Name == "" || len(t.Columns) == 0 {
		return "", fmt.Errorf("%w: name and columns are required", ErrInvalidTable)
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" || c.Type == "" {
			return "", fmt.Errorf("%w: column in %s is missing a name or type", ErrInvalidTable, t.Name)
		}
		def := c.Name + " " + c.Type
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		cols = append(cols, def)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(cols, ", ")), nil
}

// SourceTableProvisioner creates source tables in Postgres.
type SourceTableProvisioner struct {
	db       Execer
	registry *Registry
	config   config
}

func NewSourceTableProvisioner(db Execer, registry *Registry, opts ...Option) *SourceTableProvisioner {
	if registry == nil {
		registry = NewRegistry()
	}

	return &SourceTableProvisioner{
		db:       db,
		registry: registry,
		config:   newConfig(opts),
	}
}

func (p *SourceTableProvisioner) Ensure(ctx context.Context, t Table) error {
	ddl, err := t.DDL()
	if err != nil {
		return err
	}

	log := p.config.logger.With("table", t.Name)
	if !p.registry.Claim("table/" + t.Name) {
		log.Debug("Table already provisioned")
		return nil
	}

	status := otel.ProvisionCreated
	if _, err = p.db.Exec(ctx, ddl); err != nil {
		status = otel.ProvisionFailed
		log.Error("Failed to create table", "error", err)
		err = fmt.Errorf("create table %s: %w", t.Name, err)
	} else {
		log.Info("Ensured table")
	}

	p.config.telemetry.ProvisionAttempts.Add(
		ctx, 1, metric.WithAttributes(
			otel.AttrResourceKind.String(otel.ResourceTable),
			otel.AttrProvisionStatus.String(status),
		),
	)

	return err
}
