// Package middleware provides observability middleware for the reactor
// scheduler.
//
// Each middleware wraps reactor steps (mount, tick, evaluate, commit,
// effect, cleanup, unmount) and is installed with reactor.WithMiddleware.
//
// # Prometheus Metrics
//
//	m := middleware.NewMetrics(middleware.WithNamespace("myapp"))
//	rt := reactor.New(
//	    reactor.WithMiddleware(m),
//	    reactor.WithErrorHandler(m.Report),
//	)
//	http.Handle("/metrics", promhttp.Handler())
//
// Metrics collected:
//   - reactor_steps_total: steps by kind and status
//   - reactor_step_duration_seconds: step duration histogram by kind
//   - reactor_step_errors_total: failed steps by kind and error type
//   - reactor_ticks_total: ticks that evaluated at least one instance
//   - reactor_mounted_instances: instances currently mounted
//   - reactor_reported_errors_total: errors passed to Report by type
//
// # OpenTelemetry
//
// OpenTelemetry starts one span per step. Spans of evaluate, commit, effect
// and cleanup steps are children of their tick or mount span.
//
//	rt := reactor.New(reactor.WithMiddleware(
//	    middleware.OpenTelemetry(middleware.WithTracerName("checkout")),
//	))
package middleware
