package health

import (
	"context"
	"slices"
	"sync"
	"time"
)

// defaultCheckTimeout caps a full CheckAll pass.
const defaultCheckTimeout = 10 * time.Second

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout is the maximum time to wait for all checks.
	// Default: 10 seconds.
	Timeout time.Duration

	// Parallel runs health checks in parallel when true.
	// Default: true.
	Parallel bool
}

// registration pairs a checker with the name it was registered under.
type registration struct {
	name    string
	checker Checker
}

// Aggregator combines multiple health checkers into a single composite
// check. Typical use registers one EndpointChecker per cache server
// plus a ClientChecker for the composite view.
type Aggregator struct {
	config AggregatorConfig

	mu       sync.RWMutex
	registry []registration // registration order
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	cfg := AggregatorConfig{
		Timeout:  defaultCheckTimeout,
		Parallel: true,
	}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Timeout <= 0 {
			cfg.Timeout = defaultCheckTimeout
		}
	}
	return &Aggregator{config: cfg}
}

// Register adds a health checker under the given name. Registering an
// existing name replaces the checker and keeps its position.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, reg := range a.registry {
		if reg.name == name {
			a.registry[i].checker = checker
			return
		}
	}
	a.registry = append(a.registry, registration{name: name, checker: checker})
}

// Unregister removes a health checker by name.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.registry = slices.DeleteFunc(a.registry, func(r registration) bool {
		return r.name == name
	})
}

// CheckerNames returns the registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.registry))
	for i, reg := range a.registry {
		names[i] = reg.name
	}
	return names
}

// Check runs a single named health check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	var checker Checker
	for _, reg := range a.registry {
		if reg.name == name {
			checker = reg.checker
			break
		}
	}
	a.mu.RUnlock()

	if checker == nil {
		return Result{}, ErrCheckerNotFound
	}
	return a.runCheck(ctx, checker), nil
}

// CheckAll runs every registered health check and returns the results
// keyed by registered name. The whole pass shares one deadline.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	regs := slices.Clone(a.registry)
	a.mu.RUnlock()

	results := make(map[string]Result, len(regs))
	if len(regs) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	if !a.config.Parallel {
		for _, reg := range regs {
			results[reg.name] = a.runCheck(ctx, reg.checker)
		}
		return results
	}

	collected := make([]Result, len(regs))
	var wg sync.WaitGroup
	wg.Add(len(regs))
	for i, reg := range regs {
		go func(i int, checker Checker) {
			defer wg.Done()
			collected[i] = a.runCheck(ctx, checker)
		}(i, reg.checker)
	}
	wg.Wait()

	for i, reg := range regs {
		results[reg.name] = collected[i]
	}
	return results
}

// OverallStatus computes the overall health status from a set of results.
// Any unhealthy check makes the whole unhealthy; otherwise any degraded
// check makes it degraded; an empty set is healthy.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// runCheck executes one checker, stamping duration and enforcing the
// context deadline. The checker goroutine writes to a buffered channel
// so an abandoned check cannot block.
func (a *Aggregator) runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)

	go func() {
		result := checker.Check(ctx)
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		done <- result
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}

// Checker returns the aggregator as a single composite Checker named
// "aggregate", suitable for nesting into another aggregator.
func (a *Aggregator) Checker() Checker {
	return composite{agg: a}
}

type composite struct {
	agg *Aggregator
}

func (c composite) Name() string { return "aggregate" }

func (c composite) Check(ctx context.Context) Result {
	results := c.agg.CheckAll(ctx)
	status := c.agg.OverallStatus(results)

	details := make(map[string]any, len(results))
	for name, result := range results {
		details[name] = map[string]any{
			"status":   result.Status.String(),
			"message":  result.Message,
			"duration": result.Duration.String(),
		}
	}

	var message string
	switch status {
	case StatusHealthy:
		message = "all checks passed"
	case StatusDegraded:
		message = "some checks degraded"
	case StatusUnhealthy:
		message = "some checks failed"
	}

	return Result{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}
