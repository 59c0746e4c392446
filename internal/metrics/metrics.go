package metrics

import "github.com/prometheus/client_golang/prometheus"

// Extraction outcomes
const (
	OutcomeOK          = "ok"
	OutcomeLLMError    = "llm_error"
	OutcomeDecodeError = "decode_error"
)

// Metrics exposes counters for the booking conversation flow. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	inboundTotal    *prometheus.CounterVec
	extractionTotal *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	bookingsTotal   *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookbuddy",
			Subsystem: "conversation",
			Name:      "inbound_messages_total",
			Help:      "Inbound chat messages by channel and how they were handled",
		}, []string{"channel", "kind"}),
		extractionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookbuddy",
			Subsystem: "conversation",
			Name:      "extractions_total",
			Help:      "Field extraction calls by outcome",
		}, []string{"outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookbuddy",
			Subsystem: "delivery",
			Name:      "outbound_total",
			Help:      "Outbound sends by channel and status",
		}, []string{"channel", "status"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookbuddy",
			Subsystem: "conversation",
			Name:      "bookings_ready_total",
			Help:      "Conversations that reached a complete booking summary",
		}, []string{"channel"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookbuddy",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Time to handle one inbound message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.extractionTotal, m.outboundTotal, m.bookingsTotal, m.turnLatency)
	return m
}

func (m *Metrics) ObserveInbound(channel, kind string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, kind).Inc()
}

func (m *Metrics) ObserveExtraction(outcome string) {
	if m == nil {
		return
	}
	m.extractionTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveOutbound(channel string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.outboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *Metrics) ObserveBookingReady(channel string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) ObserveTurnLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(channel).Observe(seconds)
}
