package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	slotGenerations *prometheus.CounterVec
	selectionsTotal *prometheus.CounterVec
	commitsTotal    *prometheus.CounterVec
	commitLatency   prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		slotGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "slot_generations_total",
			Help:      "Total slot-grid computations",
		}, []string{"outcome"}),
		selectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "session",
			Name:      "slot_selections_total",
			Help:      "Total slot selection attempts",
		}, []string{"status"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "session",
			Name:      "commits_total",
			Help:      "Total booking commit attempts",
		}, []string{"status"}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "session",
			Name:      "commit_latency_seconds",
			Help:      "Latency of booking commits",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotGenerations, m.selectionsTotal, m.commitsTotal, m.commitLatency)
	return m
}

func (m *BookingMetrics) ObserveSlotGeneration(outcome string) {
	if m == nil {
		return
	}
	m.slotGenerations.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSelection(status string) {
	if m == nil {
		return
	}
	m.selectionsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveCommit(status string, seconds float64) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(status).Inc()
	m.commitLatency.Observe(seconds)
}
