package plotview

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "plotview"

// Reasons an inbound or outbound notification was dropped.
const (
	dropNoSubscriber = "no_subscriber"
	dropNoPage       = "no_page"
)

type metrics struct {
	events  *prometheus.CounterVec
	updates prometheus.Counter
	dropped *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bridge",
			Name:      "events_total",
			Help:      "Chart events received from the page, by event type.",
		}, []string{"event_type"}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bridge",
			Name:      "updates_total",
			Help:      "Figure updates pushed to the page.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bridge",
			Name:      "dropped_total",
			Help:      "Notifications dropped because nobody was listening.",
		}, []string{"reason"}),
	}
}

func (m *metrics) describe(ch chan<- *prometheus.Desc) {
	m.events.Describe(ch)
	m.updates.Describe(ch)
	m.dropped.Describe(ch)
}

func (m *metrics) collect(ch chan<- prometheus.Metric) {
	m.events.Collect(ch)
	m.updates.Collect(ch)
	m.dropped.Collect(ch)
}
