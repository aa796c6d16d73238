package transit

import (
	"fmt"

	"github.com/hugolhafner/go-transit/agent"
	"github.com/hugolhafner/go-transit/processor/builtins"
	"github.com/hugolhafner/go-transit/schema"
	"github.com/hugolhafner/go-transit/serde"
	"github.com/hugolhafner/go-transit/table"
)

// Serdes selects the value encodings of the station topics.
type Serdes struct {
	Station     serde.Serde[Station]
	Transformed serde.Serde[TransformedStation]
	Turnstile   serde.Serde[Turnstile]
}

// JSONSerdes matches a JDBC connector running the JSON converter without
// schemas.
func JSONSerdes() Serdes {
	return Serdes{
		Station:     serde.JSON[Station](),
		Transformed: serde.JSON[TransformedStation](),
		Turnstile:   serde.JSON[Turnstile](),
	}
}

// AvroSerdes validates every value against its schema and, when reg is not
// nil, uses the schema registry wire format.
func AvroSerdes(reg schema.Registry) (Serdes, error) {
	var opts []serde.AvroOption
	if reg != nil {
		opts = append(opts, serde.WithSchemaRegistry(reg, serde.TopicValueSubject))
	}

	station, err := serde.Avro[Station](StationSchema, opts...)
	if err != nil {
		return Serdes{}, fmt.Errorf("station schema: %w", err)
	}
	transformed, err := serde.Avro[TransformedStation](TransformedStationSchema, opts...)
	if err != nil {
		return Serdes{}, fmt.Errorf("transformed station schema: %w", err)
	}
	turnstile, err := serde.Avro[Turnstile](TurnstileSchema, opts...)
	if err != nil {
		return Serdes{}, fmt.Errorf("turnstile schema: %w", err)
	}

	return Serdes{Station: station, Transformed: transformed, Turnstile: turnstile}, nil
}

// StationKeySerde encodes station ids as JSON numbers.
func StationKeySerde() serde.Serde[int] {
	return serde.JSON[int]()
}

// NewStationsTable returns the table of transformed stations keyed by
// station id, backed by the transformed topic.
func NewStationsTable(
	topics Topics, s Serdes, opts ...table.Option,
) (*table.Table[int, TransformedStation], error) {
	return table.New(topics.StationsTransformed, StationKeySerde(), s.Transformed, opts...)
}

// StationAgent turns raw station rows into transformed stations.
type StationAgent = agent.Agent[string, Station, int, TransformedStation]

func NewStationAgent(
	client agent.Client, topics Topics, s Serdes, tbl *table.Table[int, TransformedStation], opts ...agent.Option,
) (*StationAgent, error) {
	return agent.New(
		client, agent.Config[string, Station, int, TransformedStation]{
			Name:              "stations",
			SourceTopic:       topics.Stations,
			SinkTopic:         topics.StationsTransformed,
			KeyDeserialiser:   serde.String(),
			ValueDeserialiser: s.Station,
			Processor:         builtins.Map(TransformStation),
			Table:             tbl,
		}, opts...,
	)
}
