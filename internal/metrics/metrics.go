// Package metrics exposes the engine's Prometheus instrumentation:
//
//	bot_actions_total{kind}          – position actions decided per tick
//	bot_orders_total{side,status}    – executor outcomes
//	bot_blocks_total{reason}         – guard trips and rejections by reason
//	bot_open_positions               – current open position count
//	bot_equity_usd                   – last reported equity snapshot
//
// Served by the HTTP handler started in cmd/bot at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Actions       *prometheus.CounterVec
	Orders        *prometheus.CounterVec
	Blocks        *prometheus.CounterVec
	OpenPositions prometheus.Gauge
	Equity        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_actions_total",
			Help: "Position actions decided, by kind",
		}, []string{"kind"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Order submissions, by side and terminal status",
		}, []string{"side", "status"}),
		Blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_blocks_total",
			Help: "Blocked or rejected orders, by reason code",
		}, []string{"reason"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Open positions currently tracked",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_equity_usd",
			Help: "Equity in quote currency",
		}),
	}
	reg.MustRegister(m.Actions, m.Orders, m.Blocks, m.OpenPositions, m.Equity)
	return m
}
