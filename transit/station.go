package transit

import (
	"context"
)

type Line string

const (
	LineRed   Line = "red"
	LineBlue  Line = "blue"
	LineGreen Line = "green"
	// LineNone is written when a station carries no line flag.
	LineNone Line = "null"
)

// Lines lists the real lines in priority order.
var Lines = []Line{LineRed, LineBlue, LineGreen}

// Station is a row of the stations table as streamed by the JDBC connector.
type Station struct {
	StopID                 int    `json:"stop_id"`
	DirectionID            string `json:"direction_id"`
	StopName               string `json:"stop_name"`
	StationName            string `json:"station_name"`
	StationDescriptiveName string `json:"station_descriptive_name"`
	StationID              int    `json:"station_id"`
	Order                  int    `json:"order"`
	Red                    bool   `json:"red"`
	Blue                   bool   `json:"blue"`
	Green                  bool   `json:"green"`
}

type TransformedStation struct {
	StationID   int    `json:"station_id"`
	StationName string `json:"station_name"`
	Order       int    `json:"order"`
	Line        Line   `json:"line"`
}

// DeriveLine picks red over blue over green. A station with no flag set maps
// to LineNone.
func DeriveLine(red, blue, green bool) Line {
	switch {
	case red:
		return LineRed
	case blue:
		return LineBlue
	case green:
		return LineGreen
	default:
		return LineNone
	}
}

// TransformStation keys the output by station id so the table holds the
// latest line per station. The input key is ignored.
func TransformStation(_ context.Context, _ string, s Station) (int, TransformedStation, error) {
	return s.StationID, TransformedStation{
		StationID:   s.StationID,
		StationName: s.StationName,
		Order:       s.Order,
		Line:        DeriveLine(s.Red, s.Blue, s.Green),
	}, nil
}
