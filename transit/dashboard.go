package transit

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var _ prometheus.Collector = (*DashboardCollector)(nil)

// DashboardCollector exposes the dashboard views as gauges, read at scrape
// time.
type DashboardCollector struct {
	weather   *Weather
	lines     *LineBoard
	turnstile *TurnstileSummary

	temperature  *prometheus.Desc
	status       *prometheus.Desc
	lineStations *prometheus.Desc
	entries      *prometheus.Desc
}

func NewDashboardCollector(w *Weather, lines *LineBoard, summary *TurnstileSummary) *DashboardCollector {
	return &DashboardCollector{
		weather:   w,
		lines:     lines,
		turnstile: summary,
		temperature: prometheus.NewDesc(
			"transit_weather_temperature_fahrenheit",
			"Latest reported temperature.",
			nil, nil,
		),
		status: prometheus.NewDesc(
			"transit_weather_status",
			"Latest reported weather status, 1 for the current status.",
			[]string{"status"}, nil,
		),
		lineStations: prometheus.NewDesc(
			"transit_line_stations",
			"Stations currently assigned to each line.",
			[]string{"line"}, nil,
		),
		entries: prometheus.NewDesc(
			"transit_station_turnstile_entries",
			"Turnstile entries per station from the summary table.",
			[]string{"station_id"}, nil,
		),
	}
}

func (c *DashboardCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.temperature
	ch <- c.status
	ch <- c.lineStations
	ch <- c.entries
}

func (c *DashboardCollector) Collect(ch chan<- prometheus.Metric) {
	if c.weather != nil {
		temperature, status := c.weather.Current()
		ch <- prometheus.MustNewConstMetric(c.temperature, prometheus.GaugeValue, temperature)
		ch <- prometheus.MustNewConstMetric(c.status, prometheus.GaugeValue, 1, status)
	}

	if c.lines != nil {
		counts := c.lines.Counts()
		for _, line := range []Line{LineRed, LineBlue, LineGreen, LineNone} {
			ch <- prometheus.MustNewConstMetric(
				c.lineStations, prometheus.GaugeValue, float64(counts[line]), string(line),
			)
		}
	}

	if c.turnstile != nil {
		for id, n := range c.turnstile.Counts() {
			ch <- prometheus.MustNewConstMetric(
				c.entries, prometheus.GaugeValue, float64(n), strconv.Itoa(id),
			)
		}
	}
}
