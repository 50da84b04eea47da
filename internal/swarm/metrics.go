package swarm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the Prometheus side of status aggregation (spec.md
// section 4.11's named time-series metrics), labeled per bot_id so a
// Grafana dashboard can break down the swarm by character. Grounded
// on the ocx-backend's escrow.Metrics shape (a constructor building a
// set of GaugeVecs updated from a single observe-style call site), but
// registered against a private prometheus.Registry rather than the
// package-global DefaultRegisterer: escrow.Metrics is constructed
// once per process, while a swarm Manager may be constructed
// repeatedly in tests, and the default registerer panics on a
// duplicate metric name.
type Metrics struct {
	registry      *prometheus.Registry
	netWorth      *prometheus.GaugeVec
	credits       *prometheus.GaugeVec
	holdsUsed     *prometheus.GaugeVec
	turnsLeft     *prometheus.GaugeVec
	tradeFailures *prometheus.GaugeVec
}

// NewMetrics constructs and registers the swarm's Prometheus
// collectors against a fresh private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		netWorth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tw2kbot",
			Subsystem: "swarm",
			Name:      "net_worth_estimate",
			Help:      "Estimated net worth of a bot; cargo holdings are not valued, so it equals the credit balance.",
		}, []string{"bot_id"}),
		credits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tw2kbot",
			Subsystem: "swarm",
			Name:      "credits",
			Help:      "Last-verified credit balance of a bot.",
		}, []string{"bot_id"}),
		holdsUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tw2kbot",
			Subsystem: "swarm",
			Name:      "holds_used",
			Help:      "Cargo holds currently occupied.",
		}, []string{"bot_id"}),
		turnsLeft: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tw2kbot",
			Subsystem: "swarm",
			Name:      "turns_remaining",
			Help:      "Turns remaining in the bot's current session.",
		}, []string{"bot_id"}),
		tradeFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tw2kbot",
			Subsystem: "swarm",
			Name:      "trade_failures_total",
			Help:      "Cumulative trade-gate rejections by reason.",
		}, []string{"bot_id", "reason"}),
	}
	m.registry.MustRegister(m.netWorth, m.credits, m.holdsUsed, m.turnsLeft, m.tradeFailures)
	return m
}

// Registry exposes the metrics registry for wiring a /metrics HTTP
// handler (promhttp.HandlerFor) in rest.go.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observe(s BotStatus) {
	m.netWorth.WithLabelValues(s.ID).Set(float64(s.NetWorthEstimate))
	m.credits.WithLabelValues(s.ID).Set(float64(s.Credits))
	m.holdsUsed.WithLabelValues(s.ID).Set(float64(s.HoldsUsed))
	m.turnsLeft.WithLabelValues(s.ID).Set(float64(s.TurnsRemaining))
	m.tradeFailures.WithLabelValues(s.ID, "wrong_side").Set(float64(s.TradeFailures.WrongSide))
	m.tradeFailures.WithLabelValues(s.ID, "no_port").Set(float64(s.TradeFailures.NoPort))
	m.tradeFailures.WithLabelValues(s.ID, "no_interaction").Set(float64(s.TradeFailures.NoInteraction))
}
