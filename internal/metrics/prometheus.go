package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler exposes a Metrics registry for Prometheus scraping.
//
// All counters are exported as a single metric with an `event` label. This
// keeps the in-process registry simple while still allowing per-event
// dashboards on the scrape side. Gauge semantics are used because some
// counters (active_connections, active_rooms) are decremented.
func Handler(m *Metrics) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(&collector{
		metrics: m,
		desc: prometheus.NewDesc(
			"openmeet_signaling_events",
			"Internal signaling event counters.",
			[]string{"event"},
			nil,
		),
	})
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

type collector struct {
	metrics *Metrics
	desc    *prometheus.Desc
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	if c.metrics == nil {
		return
	}
	for name, v := range c.metrics.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(v), name)
	}
}
