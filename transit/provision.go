package transit

import (
	"fmt"
	"time"

	"github.com/hugolhafner/go-transit/provision"
)

// StationsTable is the Postgres table the JDBC connector streams from.
var StationsTable = provision.Table{
	Name: "stations",
	Columns: []provision.Column{
		{Name: "stop_id", Type: "INTEGER", PrimaryKey: true},
		{Name: "direction_id", Type: "VARCHAR(1) NOT NULL"},
		{Name: "stop_name", Type: "VARCHAR(70) NOT NULL"},
		{Name: "station_name", Type: "VARCHAR(70) NOT NULL"},
		{Name: "station_descriptive_name", Type: "VARCHAR(200) NOT NULL"},
		{Name: "station_id", Type: "INTEGER NOT NULL"},
		{Name: "\"order\"", Type: "INTEGER"},
		{Name: "red", Type: "BOOLEAN NOT NULL"},
		{Name: "blue", Type: "BOOLEAN NOT NULL"},
		{Name: "green", Type: "BOOLEAN NOT NULL"},
	},
}

// ConnectorSettings locates the database the stations connector reads.
type ConnectorSettings struct {
	Name          string
	ConnectionURL string
	User          string
	Password      string
	PollInterval  time.Duration
}

// StationsConnector streams new rows of StationsTable into topics.Stations.
func StationsConnector(topics Topics, s ConnectorSettings) provision.Connector {
	name := s.Name
	if name == "" {
		name = "stations"
	}

	return provision.JDBCSourceConnector(
		provision.JDBCSource{
			Name:               name,
			ConnectionURL:      s.ConnectionURL,
			User:               s.User,
			Password:           s.Password,
			Table:              StationsTable.Name,
			IncrementingColumn: "stop_id",
			TopicPrefix:        StationsPrefix(topics.Version),
			BatchMaxRows:       500,
			PollInterval:       s.PollInterval,
		},
	)
}

// TurnstileStatement creates the turnstile table over the turnstile topic
// and the per-station summary derived from it.
func TurnstileStatement(topics Topics) provision.Statement {
	sql := fmt.Sprintf(
		`CREATE TABLE turnstile (
    station_id INT,
    station_name VARCHAR,
    line VARCHAR
) WITH (
    kafka_topic='%s',
    value_format='AVRO',
    key='station_id'
);

CREATE TABLE turnstile_summary
WITH (value_format='JSON') AS
    SELECT station_id,
        COUNT(station_id) AS count
    FROM turnstile
    GROUP BY station_id;`, topics.Turnstile,
	)

	return provision.Statement{
		Name:              "turnstile_summary",
		SQL:               sql,
		SentinelTopic:     topics.TurnstileSummary,
		StreamsProperties: map[string]string{"ksql.streams.auto.offset.reset": "earliest"},
	}
}
