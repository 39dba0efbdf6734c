// Package metrics exposes Prometheus collectors for the bridge, the intent
// dispatcher and the invoke gateway.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morezero/intent-bridge/pkg/intent"
	"github.com/morezero/intent-bridge/pkg/response"
)

const logPrefix = "metrics:metrics"

const namespace = "intent_bridge"

// Collector owns the bridge's metrics and the registry they are exposed from.
type Collector struct {
	registry *prometheus.Registry

	dispatches     *prometheus.CounterVec
	invocations    *prometheus.CounterVec
	invokeDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector on a fresh registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Completed intents by type and delivery outcome.",
		}, []string{"type", "outcome", "failed"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Gateway invocations by method and result code.",
		}, []string{"method", "code"}),
		invokeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invoke_duration_seconds",
			Help:      "Gateway invocation latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	for _, col := range []prometheus.Collector{c.dispatches, c.invocations, c.invokeDuration} {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("%s - failed to register collector: %w", logPrefix, err)
		}
	}
	return c, nil
}

// RegisterRuntimeGauges exposes the pending request and in-flight flow counts.
func (c *Collector) RegisterRuntimeGauges(pending, inFlight func() int) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Direct-return requests waiting for the host.",
		}, func() float64 { return float64(pending()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_flows",
			Help:      "Fire-and-forget flows not yet dispatched.",
		}, func() float64 { return float64(inFlight()) }),
	}
	for _, g := range gauges {
		if err := c.registry.Register(g); err != nil {
			return fmt.Errorf("%s - failed to register gauge: %w", logPrefix, err)
		}
	}
	return nil
}

var _ intent.Observer = (*Collector)(nil)

// ObserveDispatch implements intent.Observer.
func (c *Collector) ObserveDispatch(_ context.Context, entity *intent.Entity, outcome response.Outcome, procErr error) {
	failed := "false"
	if procErr != nil {
		failed = "true"
	}
	c.dispatches.WithLabelValues(string(entity.Type), outcome.String(), failed).Inc()
}

// ObserveInvoke records one gateway invocation. code is empty on success.
func (c *Collector) ObserveInvoke(method, code string, elapsed time.Duration) {
	if code == "" {
		code = "OK"
	}
	c.invocations.WithLabelValues(method, code).Inc()
	c.invokeDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
