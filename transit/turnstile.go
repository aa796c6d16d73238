package transit

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strconv"
	"sync"

	"github.com/hugolhafner/go-transit/consumer"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/serde"
)

var _ consumer.Handler = (*TurnstileSummary)(nil)

// TurnstileSummary mirrors the KSQL turnstile_summary table: the number of
// entries seen per station.
type TurnstileSummary struct {
	mu     sync.RWMutex
	counts map[int]int64
}

// summaryRow is a row of the summary table. KSQL upper-cases column names.
type summaryRow struct {
	StationID *int  `json:"STATION_ID"`
	Count     int64 `json:"COUNT"`
}

func NewTurnstileSummary() *TurnstileSummary {
	return &TurnstileSummary{counts: make(map[int]int64)}
}

// Handle returns a *serde.DeserializationError for rows it cannot read so the
// consumer skips them.
func (s *TurnstileSummary) Handle(_ context.Context, rec kafka.ConsumerRecord) error {
	var row summaryRow
	err := json.Unmarshal(rec.Value, &row)
	if err == nil && row.StationID == nil {
		// the key carries the station id when the row omits it
		var id int
		if id, err = strconv.Atoi(string(rec.Key)); err == nil {
			row.StationID = &id
		} else {
			err = errors.New("station id missing")
		}
	}
	if err != nil {
		return &serde.DeserializationError{Topic: rec.Topic, Part: serde.PartValue, Err: err}
	}

	s.mu.Lock()
	s.counts[*row.StationID] = row.Count
	s.mu.Unlock()
	return nil
}

func (s *TurnstileSummary) Count(stationID int) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[stationID]
}

func (s *TurnstileSummary) Counts() map[int]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.counts)
}
