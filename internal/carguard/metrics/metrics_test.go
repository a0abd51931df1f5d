package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/metrics"
)

func TestMetrics_Record(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.IncrementOutcome("FACE", "GRANTED")
	m.IncrementOutcome("FACE", "GRANTED")
	m.IncrementOutcome("PIN", "DENIED")
	m.SetAuditChainIntact(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecisionOutcome.WithLabelValues("FACE", "GRANTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecisionOutcome.WithLabelValues("PIN", "DENIED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditChainIntact))

	m.SetAuditChainIntact(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AuditChainIntact))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.IncrementOutcome("FACE", "DENIED")
	m.ObserveDecideLatency("FACE", time.Millisecond)
	m.ObserveMatchScore("PRIMARY", 0.5)
	m.IncrementExtraction("detected")
	m.SetAuditChainIntact(true)
}
