package metrics

import (
	"net/http"

	"storefront-service/internal/orders"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// ServerMetrics holds the HTTP and order counters. It implements orders.Recorder.
type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	OrdersPlaced   prometheus.Counter
	OrderValue     prometheus.Counter
	OrdersRejected *prometheus.CounterVec
	UnitsRestored  prometheus.Counter

	gatherer prometheus.Gatherer
}

var _ orders.Recorder = (*ServerMetrics)(nil)

// NewServerMetrics registers every collector on reg. A nil reg means a fresh registry.
func NewServerMetrics(service string, reg *prometheus.Registry) *ServerMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &ServerMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "orders_placed_total",
			Help:      "Orders persisted in Processing state.",
		}),
		OrderValue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "orders_value_total",
			Help:      "Sum of declared order totals, in the smallest currency unit.",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "orders_rejected_total",
			Help:      "Order placements that failed, by reason.",
		}, []string{"reason"}),
		UnitsRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "stock_units_restored_total",
			Help:      "Units returned to stock by compensation or cancellation.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.OrdersPlaced, m.OrderValue, m.OrdersRejected, m.UnitsRestored)
	return m
}

func (m *ServerMetrics) OrderPlaced(o orders.Order) {
	m.OrdersPlaced.Inc()
	if o.TotalAmount > 0 {
		m.OrderValue.Add(float64(o.TotalAmount))
	}
}

func (m *ServerMetrics) OrderRejected(reason string) {
	m.OrdersRejected.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) StockRestored(units int) {
	m.UnitsRestored.Add(float64(units))
}

// Handler serves the collectors registered by NewServerMetrics.
func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
