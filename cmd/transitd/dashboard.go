package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hugolhafner/go-transit/consumer"
	"github.com/hugolhafner/go-transit/logger"
	"github.com/hugolhafner/go-transit/transit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newDashboardCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Follow weather, line and turnstile topics and serve them as metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Metrics.Addr = addr
			}
			return runDashboard(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&addr, "metrics-addr", "", "listen address for /metrics (default is metrics.addr)")
	return cmd
}

type dashboardFeed struct {
	name    string
	topic   string
	handler consumer.Handler
}

func runDashboard(ctx context.Context, a *app) error {
	s, err := a.serdes()
	if err != nil {
		return err
	}

	weather := transit.NewWeather(a.logger)
	lines := transit.NewLineBoard()
	summary := transit.NewTurnstileSummary()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		transit.NewDashboardCollector(weather, lines, summary),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	feeds := []dashboardFeed{
		{name: "weather", topic: a.topics.Weather, handler: weather},
		{name: "lines", topic: a.topics.StationsTransformed, handler: lines.Handler(s.Transformed)},
		{name: "turnstile-summary", topic: a.topics.TurnstileSummary, handler: summary},
	}

	consumers := make([]*consumer.Consumer, 0, len(feeds))
	defer func() {
		for _, c := range consumers {
			c.Close()
		}
	}()

	for _, f := range feeds {
		c, err := a.newFeedConsumer(f)
		if err != nil {
			return err
		}
		consumers = append(consumers, c)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		g.Go(func() error { return c.Run(gctx) })
	}
	g.Go(func() error { return serveMetrics(gctx, a.cfg.Metrics.Addr, reg, a.logger) })

	return g.Wait()
}

func (a *app) newFeedConsumer(f dashboardFeed) (*consumer.Consumer, error) {
	client, err := a.newClient(a.cfg.Kafka.GroupID + "-dashboard-" + f.name)
	if err != nil {
		return nil, err
	}

	c, err := consumer.New(
		client, f.topic, f.handler,
		consumer.WithName(f.name),
		consumer.WithResetToEarliest(a.cfg.Consumer.ResetToEarliest),
		consumer.WithIdleSleep(a.cfg.Consumer.IdleSleep),
		consumer.WithPollTimeout(a.cfg.Consumer.PollTimeout),
		consumer.WithLogger(a.logger),
		consumer.WithTelemetry(a.telemetry),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%s consumer: %w", f.name, err)
	}
	return c, nil
}

// serveMetrics serves reg on /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, l logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
