package attack

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects Prometheus counters/gauges for a running attack,
// served over --metrics-addr via promhttp.HandlerFor in cmd/poisoner.
type Metrics struct {
	IDsTried        prometheus.Counter
	PacketsForged   prometheus.Counter
	SendErrors      prometheus.Counter
	BurstsCompleted prometheus.Counter
	RoundsStarted   prometheus.Counter
}

// NewMetrics registers a fresh set of attack metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IDsTried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poisoner_ids_tried_total",
			Help: "Transaction IDs enumerated across the forged-response flood.",
		}),
		PacketsForged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poisoner_packets_forged_total",
			Help: "Forged IPv4/UDP datagrams successfully handed to the raw socket.",
		}),
		SendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poisoner_send_errors_total",
			Help: "Forged-packet send attempts that returned an error.",
		}),
		BurstsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poisoner_bursts_completed_total",
			Help: "Completed (spoofed_src_ip, subdomain) bursts.",
		}),
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poisoner_rounds_started_total",
			Help: "Kaminsky rounds started (one fresh random subdomain each).",
		}),
	}

	reg.MustRegister(m.IDsTried, m.PacketsForged, m.SendErrors, m.BurstsCompleted, m.RoundsStarted)
	return m
}
