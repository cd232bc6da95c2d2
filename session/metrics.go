package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts session traffic. A nil *Metrics is valid and records
// nothing. One Metrics may be shared by many sessions.
type Metrics struct {
	Sent          prometheus.Counter
	WriteFailures prometheus.Counter
	Matched       prometheus.Counter
	Unsolicited   prometheus.Counter
	ReadErrors    prometheus.Counter
	Pending       prometheus.Gauge
	RoundTrip     prometheus.Histogram
}

// NewMetrics creates the session collectors and registers them with reg, if
// reg is not nil.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		Sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "commands_sent_total",
			Help:      "Commands registered for a reply and handed to the codec.",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "write_failures_total",
			Help:      "Commands dropped because encoding or writing failed.",
		}),
		Matched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "replies_matched_total",
			Help:      "Inbound frames delivered to a pending call.",
		}),
		Unsolicited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "unsolicited_frames_total",
			Help:      "Inbound frames that matched no pending call.",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "read_errors_total",
			Help:      "Decode or IO errors on the read half.",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "pending_calls",
			Help:      "Calls written and waiting for a reply.",
		}),
		RoundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "round_trip_seconds",
			Help:      "Time from registering a call to receiving its reply.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.Sent, m.WriteFailures, m.Matched, m.Unsolicited, m.ReadErrors, m.Pending, m.RoundTrip,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) sent() {
	if m == nil {
		return
	}
	m.Sent.Inc()
	m.Pending.Inc()
}

func (m *Metrics) writeFailed() {
	if m == nil {
		return
	}
	m.WriteFailures.Inc()
}

func (m *Metrics) matched(since time.Time) {
	if m == nil {
		return
	}
	m.Matched.Inc()
	m.Pending.Dec()
	m.RoundTrip.Observe(time.Since(since).Seconds())
}

func (m *Metrics) unsolicited() {
	if m == nil {
		return
	}
	m.Unsolicited.Inc()
}

func (m *Metrics) readError() {
	if m == nil {
		return
	}
	m.ReadErrors.Inc()
}

func (m *Metrics) abandoned(n int) {
	if m == nil {
		return
	}
	m.Pending.Sub(float64(n))
}
