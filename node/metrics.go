package node

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the node's ambient observability surface: chain
// height/power, mempool size, and sync cycle outcomes. This is
// observability, not protocol functionality, so it is carried even
// though spec.md's Non-goals exclude "transaction gossip optimization" —
// a different, functional concern.
type Metrics struct {
	height        prometheus.Gauge
	power         prometheus.Gauge
	mempoolSize   prometheus.Gauge
	syncSuccesses prometheus.Counter
	syncFailures  prometheus.Counter
}

// NewMetrics registers the node's gauges/counters against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across package-level test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bazuka_chain_height",
			Help: "Current local chain height.",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bazuka_chain_power",
			Help: "Current accumulated chain power.",
		}),
		mempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bazuka_mempool_size",
			Help: "Number of transactions currently pending in the mempool.",
		}),
		syncSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bazuka_sync_successes_total",
			Help: "Number of heartbeat sync ticks that completed without error.",
		}),
		syncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bazuka_sync_failures_total",
			Help: "Number of heartbeat sync ticks that returned an error.",
		}),
	}
	reg.MustRegister(m.height, m.power, m.mempoolSize, m.syncSuccesses, m.syncFailures)
	return m
}

// Observe refreshes the gauges from the node's current state.
func (m *Metrics) Observe(c *Context) {
	if height, err := c.chain.GetHeight(); err == nil {
		m.height.Set(float64(height))
	}
	if power, err := c.chain.GetPower(); err == nil {
		m.power.Set(float64(power))
	}
	m.mempoolSize.Set(float64(c.MempoolSize()))
}
