package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/reactor/pkg/reactor"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reactor").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for step duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "reactor",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a reactor.Middleware that records Prometheus metrics for
// scheduler steps. Its Report method can be installed as the runtime's
// error handler.
type Metrics struct {
	stepsTotal     *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	stepErrors     *prometheus.CounterVec
	ticksTotal     prometheus.Counter
	mounted        prometheus.Gauge
	reportedErrors *prometheus.CounterVec
}

// NewMetrics registers the reactor metrics with the configured registry.
// It panics if they are already registered there, like promauto does.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "steps_total",
			Help:        "Total number of scheduler steps by kind and status",
			ConstLabels: config.ConstLabels,
		}, []string{"step", "status"}),

		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "step_duration_seconds",
			Help:        "Scheduler step duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"step"}),

		stepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "step_errors_total",
			Help:        "Total number of failed scheduler steps by error type",
			ConstLabels: config.ConstLabels,
		}, []string{"step", "error_type"}),

		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "ticks_total",
			Help:        "Total number of ticks that evaluated at least one instance",
			ConstLabels: config.ConstLabels,
		}),

		mounted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mounted_instances",
			Help:        "Number of mounted instances",
			ConstLabels: config.ConstLabels,
		}),

		reportedErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reported_errors_total",
			Help:        "Total number of errors reported by the runtime by type",
			ConstLabels: config.ConstLabels,
		}, []string{"error_type"}),
	}
}

// Prometheus creates a Metrics middleware. Use NewMetrics when Report is
// also needed.
func Prometheus(opts ...MetricsOption) reactor.Middleware {
	return NewMetrics(opts...)
}

// Handle implements reactor.Middleware.
func (m *Metrics) Handle(ctx context.Context, step reactor.Step, next func(context.Context) error) error {
	kind := step.Kind.String()

	switch step.Kind {
	case reactor.StepMount:
		m.mounted.Inc()
	case reactor.StepUnmount:
		m.mounted.Dec()
	case reactor.StepTick:
		m.ticksTotal.Inc()
	}

	start := time.Now()
	err := next(ctx)
	m.stepDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
		m.stepErrors.WithLabelValues(kind, categorizeError(err)).Inc()
	}
	m.stepsTotal.WithLabelValues(kind, status).Inc()

	return err
}

// Report counts an error passed to the runtime's error handler.
func (m *Metrics) Report(err error) {
	if err == nil {
		return
	}
	m.reportedErrors.WithLabelValues(categorizeError(err)).Inc()
}

// categorizeError maps err to a low-cardinality label.
func categorizeError(err error) string {
	var (
		arity     *reactor.ArityMismatchError
		unmounted *reactor.UnmountedUpdateError
		missing   *reactor.MissingTargetError
		runaway   *reactor.RunawayReevaluationError
		hook      *reactor.HookOrderError
		callback  *reactor.CallbackError
		slot      *reactor.SlotRangeError
		commit    *reactor.CommitError
		eval      *reactor.EvaluationError
		panicked  *reactor.PanicError
	)
	switch {
	case errors.As(err, &arity):
		return "arity_mismatch"
	case errors.As(err, &unmounted):
		return "unmounted_update"
	case errors.As(err, &missing):
		return "missing_target"
	case errors.As(err, &runaway):
		return "runaway"
	case errors.As(err, &hook):
		return "hook_order"
	case errors.As(err, &callback):
		return "callback"
	case errors.As(err, &slot):
		return "slot_range"
	case errors.As(err, &commit):
		return "commit"
	case errors.As(err, &eval):
		if errors.As(err, &panicked) {
			return "panic"
		}
		return "evaluation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
