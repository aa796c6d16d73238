package transit

import "fmt"

// Topics names every topic of one deployment version. Bumping the version
// gives a fresh set of topics without touching the old ones.
type Topics struct {
	Version int

	// Stations receives rows of the stations table from the JDBC connector.
	Stations string
	// StationsTransformed is the agent's sink and the changelog of its table.
	StationsTransformed string
	// StationsTable names the agent's materialized table.
	StationsTable string
	Turnstile     string
	Weather       string
	// TurnstileSummary is created by KSQL, which upper-cases table names.
	TurnstileSummary string
}

// StationsPrefix is the topic prefix the JDBC connector prepends to the
// table name.
func StationsPrefix(version int) string {
	return fmt.Sprintf("arm.jdbc.v%d.", version)
}

func TopicsFor(version int) Topics {
	return Topics{
		Version:             version,
		Stations:            StationsPrefix(version) + StationsTable.Name,
		StationsTransformed: fmt.Sprintf("arm.faust.v%d.stations.transformed", version),
		StationsTable:       fmt.Sprintf("arm.faust.v%d.stations.table", version),
		Turnstile:           fmt.Sprintf("arm.stations.v%d.turnstile", version),
		Weather:             fmt.Sprintf("arm.weather.v%d", version),
		TurnstileSummary:    "TURNSTILE_SUMMARY",
	}
}
