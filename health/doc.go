// Package health probes cache servers and exposes the results over HTTP.
//
// A Checker reports one component's health as a Result carrying a
// Status of Healthy, Degraded, or Unhealthy. Two checkers cover the
// cache domain. EndpointChecker probes a single server with a
// set-then-get round trip under a random key. ClientChecker asks a
// cache.Client about every server in its pool and degrades, rather
// than fails, when caching is disabled.
//
// Per-server checkers combine under an Aggregator:
//
//	agg := health.NewAggregator()
//	for _, server := range cfg.Servers {
//	    agg.Register(server, health.NewEndpointChecker(
//	        health.EndpointCheckerConfig{Endpoint: server}))
//	}
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// Any unhealthy check makes the overall status unhealthy; otherwise any
// degraded check makes it degraded.
//
// # Probe endpoints
//
// RegisterHandlers mounts the standard probe set on a mux:
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//
// /healthz answers liveness and never consults the servers. /readyz
// runs every check and stays ready while the status is degraded, since
// a cache on a subset of its servers still serves traffic. /health
// returns per-check JSON and maps unhealthy to 503.
package health
