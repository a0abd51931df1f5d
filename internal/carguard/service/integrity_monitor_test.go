package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/service"
)

func TestIntegrityMonitor_DisabledWhenIntervalZero(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	m := service.NewIntegrityMonitor(h.audit, 0, h.metrics, nil)

	m.Start(context.Background())
	// Stop should return immediately.
	m.Stop()
}

func TestIntegrityMonitor_CheckReportsTamper(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 3)
	m := service.NewIntegrityMonitor(h.audit, time.Hour, h.metrics, nil)

	assert.True(t, m.Check(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AuditChainIntact))

	h.backend.Drop(service.AttemptsStream, 1)

	assert.False(t, m.Check(context.Background()))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.AuditChainIntact))
}

func TestIntegrityMonitor_StartAndStop(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 1)
	m := service.NewIntegrityMonitor(h.audit, 10*time.Millisecond, h.metrics, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.AuditChainIntact) == 1
	}, time.Second, 5*time.Millisecond)
	m.Stop()
}
