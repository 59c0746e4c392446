package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveInbound("telegram", "message")
	m.ObserveInbound("telegram", "message")
	m.ObserveExtraction(OutcomeDecodeError)
	m.ObserveOutbound("telegram", false)
	m.ObserveBookingReady("telegram")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.inboundTotal.WithLabelValues("telegram", "message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractionTotal.WithLabelValues(OutcomeDecodeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboundTotal.WithLabelValues("telegram", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("telegram")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveInbound("telegram", "message")
		m.ObserveExtraction(OutcomeOK)
		m.ObserveOutbound("telegram", true)
		m.ObserveBookingReady("telegram")
		m.ObserveTurnLatency("telegram", 0.1)
	})
}
