package transit

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/hugolhafner/go-transit/consumer"
	"github.com/hugolhafner/go-transit/record"
	"github.com/hugolhafner/go-transit/serde"
)

// LineBoard tracks which line each station belongs to, fed from the
// transformed stations topic. A station that changes line moves boards.
type LineBoard struct {
	mu       sync.RWMutex
	stations map[int]TransformedStation
}

func NewLineBoard() *LineBoard {
	return &LineBoard{stations: make(map[int]TransformedStation)}
}

// Handler decodes transformed station records with valueDe before updating
// the board. Pass an Avro deserialiser for schema-validated topics.
func (b *LineBoard) Handler(valueDe serde.Deserialiser[TransformedStation]) consumer.Handler {
	return consumer.Typed[string, TransformedStation](nil, valueDe, b.Update)
}

func (b *LineBoard) Update(_ context.Context, r record.Record[string, TransformedStation]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stations[r.Value.StationID] = r.Value
	return nil
}

// Stations returns the stations on line ordered by their position on it.
func (b *LineBoard) Stations(line Line) []TransformedStation {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []TransformedStation
	for _, s := range b.stations {
		if s.Line == line {
			out = append(out, s)
		}
	}

	slices.SortFunc(
		out, func(a, b TransformedStation) int {
			if c := cmp.Compare(a.Order, b.Order); c != 0 {
				return c
			}
			return cmp.Compare(a.StationID, b.StationID)
		},
	)
	return out
}

func (b *LineBoard) Counts() map[Line]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := make(map[Line]int, len(Lines)+1)
	for _, s := range b.stations {
		counts[s.Line]++
	}
	return counts
}
