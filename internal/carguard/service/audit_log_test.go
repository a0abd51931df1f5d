package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/service"
)

func appendN(t *testing.T, h *harness, n int) {
	t.Helper()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		outcome := model.OutcomeDenied
		if i%2 == 0 {
			outcome = model.OutcomeGranted
		}
		_, err := h.audit.Append(context.Background(), model.AccessAttempt{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			SubjectName: fmt.Sprintf("s%d", i),
			Method:      model.MethodFace,
			Outcome:     outcome,
		})
		require.NoError(t, err)
	}
}

func TestAuditLog_AppendFillsDefaults(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	rec, err := h.audit.Append(context.Background(), model.AccessAttempt{Method: model.MethodPIN, Outcome: model.OutcomeDenied})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())
	assert.Equal(t, model.UnknownSubject, rec.SubjectName)
}

func TestAuditLog_QueryNewestFirstWithLimit(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 5)

	got, err := h.audit.Query(context.Background(), nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "s4", got[0].SubjectName)
	assert.Equal(t, "s3", got[1].SubjectName)
	assert.Equal(t, "s2", got[2].SubjectName)
}

func TestAuditLog_QueryFiltersByOutcome(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 6)

	granted := model.OutcomeGranted
	got, err := h.audit.Query(context.Background(), &granted, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, a := range got {
		assert.Equal(t, model.OutcomeGranted, a.Outcome)
	}
	assert.Equal(t, "s4", got[0].SubjectName)
}

func TestAuditLog_RecordsAreSealed(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 1)

	require.NoError(t, h.backend.Scan(context.Background(), service.AttemptsStream, func(data []byte) bool {
		assert.NotContains(t, string(data), "s0")
		assert.NotContains(t, string(data), "GRANTED")
		return true
	}))
}

func TestAuditLog_VerifyIntactChain(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 4)

	report, err := h.audit.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Records)
	assert.EqualValues(t, 4, report.HeadSeq)
}

func TestAuditLog_VerifyEmptyLog(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	report, err := h.audit.Verify(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Records)
}

func TestAuditLog_VerifyDetectsDrop(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 4)

	h.backend.Drop(service.AttemptsStream, 1)

	_, err := h.audit.Verify(context.Background())
	assert.ErrorIs(t, err, service.ErrChainBroken)
}

func TestAuditLog_VerifyDetectsDroppedOldest(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 3)

	h.backend.Drop(service.AttemptsStream, 0)

	_, err := h.audit.Verify(context.Background())
	assert.ErrorIs(t, err, service.ErrChainBroken)
}

func TestAuditLog_VerifyDetectsReorder(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 3)

	var recs [][]byte
	require.NoError(t, h.backend.Scan(context.Background(), service.AttemptsStream, func(data []byte) bool {
		recs = append(recs, data)
		return true
	}))
	// recs is newest first: swap the two oldest.
	h.backend.Tamper(service.AttemptsStream, 0, recs[1])
	h.backend.Tamper(service.AttemptsStream, 1, recs[2])

	_, err := h.audit.Verify(context.Background())
	assert.ErrorIs(t, err, service.ErrChainBroken)
}

func TestAuditLog_VerifyDetectsGarbage(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 3)

	h.backend.Tamper(service.AttemptsStream, 1, []byte("overwritten by hand"))

	_, err := h.audit.Verify(context.Background())
	assert.ErrorIs(t, err, service.ErrChainBroken)

	// Query skips what it cannot read.
	got, err := h.audit.Query(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAuditLog_ChainContinuesAcrossRestart(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	appendN(t, h, 2)

	restarted := service.NewAuditLog(h.backend, h.sealer, nil)
	_, err := restarted.Append(context.Background(), model.AccessAttempt{Method: model.MethodPIN, Outcome: model.OutcomeGranted})
	require.NoError(t, err)

	report, err := restarted.Verify(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.HeadSeq)
}

func TestAuditLog_ConcurrentAppendsAreNotLost(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.audit.Append(ctx, model.AccessAttempt{Method: model.MethodFace, Outcome: model.OutcomeDenied})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	counts, err := h.audit.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, counts.Total)

	_, err = h.audit.Verify(ctx)
	assert.NoError(t, err)
}

func TestAuditLog_AppendSurfacesBackendErrors(t *testing.T) {
	boom := errors.New("disk full")
	h := newHarness(t, harnessOpts{logs: failingLog{err: boom}})

	_, err := h.audit.Append(context.Background(), model.AccessAttempt{Method: model.MethodPIN, Outcome: model.OutcomeDenied})
	assert.ErrorIs(t, err, boom)
}
