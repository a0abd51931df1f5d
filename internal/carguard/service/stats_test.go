package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
)

func TestStats(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := h.gallery.Enroll(ctx, model.EnrolledIdentity{ID: id, DisplayName: id})
		require.NoError(t, err)
	}
	require.NoError(t, h.gallery.SetStatus(ctx, "c", model.StatusRevoked))

	for _, pin := range []string{"1234", "0000", "1111"} {
		_, err := h.access.DecidePIN(ctx, pin)
		require.NoError(t, err)
	}

	got, err := h.stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalIdentities)
	assert.Equal(t, 2, got.ActiveIdentities)
	assert.Equal(t, 3, got.TotalAttempts)
	assert.Equal(t, 1, got.Granted)
	assert.Equal(t, 2, got.Denied)
	assert.Equal(t, 33.3, got.SuccessRate)
}

func TestStats_Empty(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	got, err := h.stats.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.TotalAttempts)
	assert.Zero(t, got.SuccessRate)
}
