package poller

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry            *prometheus.Registry
	ordersResolvedTotal *prometheus.CounterVec
	transientRetries    prometheus.Counter
	offRampPaidTotal    prometheus.Counter
	openOrders          prometheus.Gauge
	openOffRampOrders   prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	resolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_orders_resolved_total",
		Help: "Orders reaching a terminal resolution",
	}, []string{"outcome"})

	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_transient_lookup_retries_total",
		Help: "Confirmation/execution lookups deferred due to transient errors",
	})

	paid := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_offramp_paid_total",
		Help: "Off-ramp orders confirmed paid",
	})

	open := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_open_orders",
		Help: "On-ramp orders awaiting destination execution",
	})

	openOffRamp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_open_offramp_orders",
		Help: "Off-ramp orders not yet paid",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(resolved, retries, paid, open, openOffRamp)

	return &metricsRegistry{
		registry:            r,
		ordersResolvedTotal: resolved,
		transientRetries:    retries,
		offRampPaidTotal:    paid,
		openOrders:          open,
		openOffRampOrders:   openOffRamp,
	}
}

// Handler exposes the poller metrics for scraping.
func (m *metricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incResolved(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.ordersResolvedTotal.WithLabelValues(outcome).Inc()
}
