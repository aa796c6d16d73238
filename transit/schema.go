package transit

// StationSchema is the Avro schema of Station.
const StationSchema = `{
  "type": "record",
  "name": "station",
  "namespace": "org.chicago.cta",
  "fields": [
    {"name": "stop_id", "type": "int"},
    {"name": "direction_id", "type": "string"},
    {"name": "stop_name", "type": "string"},
    {"name": "station_name", "type": "string"},
    {"name": "station_descriptive_name", "type": "string"},
    {"name": "station_id", "type": "int"},
    {"name": "order", "type": "int"},
    {"name": "red", "type": "boolean"},
    {"name": "blue", "type": "boolean"},
    {"name": "green", "type": "boolean"}
  ]
}`

const TransformedStationSchema = `{
  "type": "record",
  "name": "transformed_station",
  "namespace": "org.chicago.cta",
  "fields": [
    {"name": "station_id", "type": "int"},
    {"name": "station_name", "type": "string"},
    {"name": "order", "type": "int"},
    {"name": "line", "type": "string"}
  ]
}`

// TurnstileSchema is the value schema of turnstile events; the KSQL turnstile
// table reads it.
const TurnstileSchema = `{
  "type": "record",
  "name": "turnstile",
  "namespace": "org.chicago.cta",
  "fields": [
    {"name": "station_id", "type": "int"},
    {"name": "station_name", "type": "string"},
    {"name": "line", "type": "string"}
  ]
}`

// Turnstile is one passenger entry at a station.
type Turnstile struct {
	StationID   int    `json:"station_id"`
	StationName string `json:"station_name"`
	Line        Line   `json:"line"`
}
