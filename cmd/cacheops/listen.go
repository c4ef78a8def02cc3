package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/jonwraymond/cacheops/cache"
	"github.com/jonwraymond/cacheops/health"
	"github.com/jonwraymond/cacheops/observe/exporters"
	"github.com/jonwraymond/cacheops/stats"
)

// listener bundles the HTTP surface served next to a polling run: the
// Prometheus scrape endpoint fed by the poll sink, plus the health
// endpoints probing each configured server.
type listener struct {
	handler  http.Handler
	exporter *stats.Exporter
	shutdown func()
}

func newListener(client *cache.Client, cfg cache.Config) (*listener, error) {
	reader, err := exporters.NewMetricsReader(context.Background(), "prometheus")
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	exporter, err := stats.NewExporter(provider.Meter("cacheops"))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	agg := health.NewAggregator()
	for _, server := range client.Servers() {
		agg.Register(server, health.NewEndpointChecker(health.EndpointCheckerConfig{
			Endpoint:    server,
			DialTimeout: cfg.DialTimeout,
			OpTimeout:   cfg.OpTimeout,
		}))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.RegisterHandlers(mux, agg)

	return &listener{
		handler:  mux,
		exporter: exporter,
		shutdown: func() {
			_ = exporter.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = provider.Shutdown(ctx)
		},
	}, nil
}
