package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"chatter-client/internal/mutation"
)

// Collector exports mutation outcomes and poller health. It is a
// mutation.Observer and a notification.Recorder.
type Collector struct {
	mutations  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	pollErrors prometheus.Counter
	unread     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatter",
			Name:      "mutations_total",
			Help:      "Optimistic mutations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatter",
			Name:      "mutation_duration_seconds",
			Help:      "Time from optimistic apply to settle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatter",
			Name:      "notification_poll_failures_total",
			Help:      "Unread-count polls that failed.",
		}),
		unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatter",
			Name:      "notifications_unread",
			Help:      "Unread notification badge.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.mutations, c.latency, c.pollErrors, c.unread)
	}
	return c
}

func (c *Collector) Observe(ev mutation.Event) {
	c.mutations.WithLabelValues(ev.Key.Kind, string(ev.Outcome)).Inc()
	c.latency.WithLabelValues(ev.Key.Kind).Observe(ev.Duration.Seconds())
}

func (c *Collector) PollFailed() { c.pollErrors.Inc() }

func (c *Collector) Unread(n int) { c.unread.Set(float64(n)) }
