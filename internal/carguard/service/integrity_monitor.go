package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/metrics"
)

// IntegrityMonitor periodically walks the audit chain and logs tamper
// evidence. An interval of 0 disables it.
type IntegrityMonitor struct {
	audit    *AuditLog
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewIntegrityMonitor(a *AuditLog, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *IntegrityMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrityMonitor{
		audit:    a,
		interval: interval,
		metrics:  m,
		logger:   logger.Named("integrity_monitor"),
		done:     make(chan struct{}),
	}
}

// Start verifies once immediately, then on every tick, until ctx is
// cancelled or Stop is called.
func (m *IntegrityMonitor) Start(ctx context.Context) {
	if m.interval <= 0 {
		m.logger.Info("audit integrity monitor disabled (interval=0)")
		close(m.done)
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)

	m.logger.Info("audit integrity monitor started", zap.Duration("interval", m.interval))
}

// Stop signals the loop to exit and waits for it.
func (m *IntegrityMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}

func (m *IntegrityMonitor) loop(ctx context.Context) {
	defer close(m.done)

	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one verification and reports whether the chain is intact.
func (m *IntegrityMonitor) Check(ctx context.Context) bool {
	report, err := m.audit.Verify(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		m.metrics.SetAuditChainIntact(false)
		m.logger.Error("audit chain verification failed",
			zap.Int("records_checked", report.Records),
			zap.Error(err),
		)
		return false
	}

	m.metrics.SetAuditChainIntact(true)
	m.logger.Debug("audit chain intact",
		zap.Int("records", report.Records),
		zap.Int64("head_seq", report.HeadSeq),
	)
	return true
}
