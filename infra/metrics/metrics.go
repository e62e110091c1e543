// Package metrics exposes prometheus collectors for book activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OrdersAccepted  *prometheus.CounterVec
	OrdersRejected  *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
	Trades          prometheus.Counter
	TradedQuantity  prometheus.Counter
	RestingOrders   prometheus.Gauge
	PriceLevels     *prometheus.GaugeVec
	SessionOpen     prometheus.Gauge
	SubmitLatency   prometheus.Histogram
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		OrdersAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "book_orders_accepted_total", Help: "Orders accepted by side",
		}, []string{"side"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "book_orders_rejected_total", Help: "Orders rejected by reason",
		}, []string{"reason"}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "book_orders_cancelled_total", Help: "Explicit cancels that removed an order",
		}),
		Trades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "book_trades_total", Help: "Trades emitted",
		}),
		TradedQuantity: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "book_traded_quantity_total", Help: "Quantity traded",
		}),
		RestingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "book_resting_orders", Help: "Orders resting in the book",
		}),
		PriceLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "book_price_levels", Help: "Price levels per side",
		}, []string{"side"}),
		SessionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "book_session_open", Help: "1 while the trading session is open",
		}),
		SubmitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "book_submit_latency_seconds",
			Help:    "Time spent inside a submission, matching included",
			Buckets: prometheus.ExponentialBuckets(1e-7, 4, 12),
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_published_total", Help: "Trade events acknowledged by the broker",
		}),
		OutboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_publish_failures_total", Help: "Failed publish attempts",
		}),
	}
}

// Register adds all collectors plus the go and process collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.OrdersAccepted, m.OrdersRejected, m.OrdersCancelled,
		m.Trades, m.TradedQuantity, m.RestingOrders, m.PriceLevels,
		m.SessionOpen, m.SubmitLatency, m.OutboxPublished, m.OutboxFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Published and Failed let the outbox broadcaster report through m.
func (m *Metrics) Published() { m.OutboxPublished.Inc() }

func (m *Metrics) Failed() { m.OutboxFailures.Inc() }
