package transit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/hugolhafner/go-transit/consumer"
	"github.com/hugolhafner/go-transit/kafka"
	"github.com/hugolhafner/go-transit/logger"
)

const (
	DefaultTemperature   = 70.0
	DefaultWeatherStatus = "sunny"
)

var _ consumer.Handler = (*Weather)(nil)

// Weather keeps the latest reading from the weather topic. A reading that
// cannot be parsed is logged and the previous values stay in place.
type Weather struct {
	mu          sync.RWMutex
	temperature float64
	status      string
	logger      logger.Logger
}

// WeatherReading is the value published to the weather topic.
type WeatherReading struct {
	Temperature float64 `json:"temperature"`
	Status      string  `json:"status"`
}

type weatherReading struct {
	Temperature *float64 `json:"temperature"`
	Status      *string  `json:"status"`
}

func NewWeather(l logger.Logger) *Weather {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &Weather{
		temperature: DefaultTemperature,
		status:      DefaultWeatherStatus,
		logger:      l.With("component", "weather"),
	}
}

func (w *Weather) Handle(_ context.Context, rec kafka.ConsumerRecord) error {
	var r weatherReading
	err := json.Unmarshal(rec.Value, &r)
	if err == nil && (r.Temperature == nil || r.Status == nil) {
		err = errors.New("temperature and status are required")
	}
	if err != nil {
		w.logger.Error("Weather message could not be processed", "error", err, "offset", rec.Offset)
		return nil
	}

	w.mu.Lock()
	w.temperature = *r.Temperature
	w.status = *r.Status
	w.mu.Unlock()
	return nil
}

func (w *Weather) Current() (temperature float64, status string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.temperature, w.status
}
